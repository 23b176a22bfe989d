package registry

import "fmt"

// slotIndex is the ordered tab bar. pos is re-derived after every change so
// that slot lookups never go stale.
type slotIndex struct {
	order []int64
	pos   map[int64]int
}

func newSlotIndex() *slotIndex {
	return &slotIndex{pos: make(map[int64]int)}
}

func (s *slotIndex) len() int {
	return len(s.order)
}

func (s *slotIndex) append(id int64) {
	if _, ok := s.pos[id]; ok {
		return
	}
	s.order = append(s.order, id)
	s.pos[id] = len(s.order) - 1
}

func (s *slotIndex) remove(id int64) bool {
	i, ok := s.pos[id]
	if !ok {
		return false
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.pos, id)
	s.reindex(i)
	return true
}

// move takes the id at from and inserts it at to, shifting the ids between.
func (s *slotIndex) move(from, to int) error {
	if from < 0 || from >= len(s.order) || to < 0 || to >= len(s.order) {
		return fmt.Errorf("%w: move %d -> %d with %d slots", ErrSlotOutOfRange, from, to, len(s.order))
	}
	if from == to {
		return nil
	}

	id := s.order[from]
	s.order = append(s.order[:from], s.order[from+1:]...)
	s.order = append(s.order[:to], append([]int64{id}, s.order[to:]...)...)

	lo := from
	if to < lo {
		lo = to
	}
	s.reindex(lo)
	return nil
}

func (s *slotIndex) reindex(from int) {
	for i := from; i < len(s.order); i++ {
		s.pos[s.order[i]] = i
	}
}

func (s *slotIndex) at(slot int) (int64, bool) {
	if slot < 0 || slot >= len(s.order) {
		return 0, false
	}
	return s.order[slot], true
}

func (s *slotIndex) of(id int64) (int, bool) {
	i, ok := s.pos[id]
	return i, ok
}

func (s *slotIndex) ids() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

// check verifies that order and pos agree. Used by tests.
func (s *slotIndex) check() error {
	if len(s.order) != len(s.pos) {
		return fmt.Errorf("slot order has %d entries, position map %d", len(s.order), len(s.pos))
	}
	for i, id := range s.order {
		if p, ok := s.pos[id]; !ok || p != i {
			return fmt.Errorf("id %d at slot %d maps to %d", id, i, p)
		}
	}
	return nil
}

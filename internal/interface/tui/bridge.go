package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/acctabs/internal/core/session"
)

// sender is the part of *tea.Program the bridge uses
type sender interface {
	Send(msg tea.Msg)
}

// Bridge turns registry notifications into tea messages. The registry calls
// it from its loop goroutine, so every method only queues and returns.
type Bridge struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
	quit    chan struct{}
	once    sync.Once
}

// NewBridge returns a bridge that holds messages until Attach
func NewBridge() *Bridge {
	return &Bridge{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Attach starts forwarding queued and future messages to p
func (b *Bridge) Attach(p sender) {
	go b.pump(p)
}

// Close stops forwarding. Messages still queued are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.quit) })
}

func (b *Bridge) pump(p sender) {
	for {
		select {
		case <-b.quit:
			return
		case <-b.wake:
		}

		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		for _, msg := range batch {
			select {
			case <-b.quit:
				return
			default:
			}
			p.Send(msg)
		}
	}
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	b.pending = append(b.pending, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) OnSessionAdded(id int64, label string) {
	b.send(sessionAddedMsg{id: id, label: label})
}

func (b *Bridge) OnSessionRemoved(id int64) {
	b.send(sessionRemovedMsg{id: id})
}

func (b *Bridge) OnSlotOrderChanged(ids []int64) {
	b.send(slotOrderMsg{ids: append([]int64(nil), ids...)})
}

func (b *Bridge) OnLockStateChanged(id int64, state session.LockState) {
	b.send(lockStateMsg{id: id, state: state})
}

func (b *Bridge) OnZoomChanged(id int64, percent int) {
	b.send(zoomMsg{id: id, percent: percent})
}

func (b *Bridge) OnCrash(id int64, reason string) {
	b.send(crashMsg{id: id, reason: reason})
}

func (b *Bridge) OnLabelChanged(id int64, label string) {
	b.send(labelMsg{id: id, label: label})
}

func (b *Bridge) OnTeardownIncomplete(id int64, path string, err error) {
	b.send(teardownMsg{id: id, path: path, err: err})
}

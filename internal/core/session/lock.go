package session

import (
	"github.com/neilberkman/acctabs/internal/core/credential"
)

// LockState is the visibility state of a session.
type LockState int

const (
	Unlocked LockState = iota
	Locked
	// Unlocking is held while the content view is being brought up after a
	// successful credential check.
	Unlocking
)

func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	default:
		return "unknown"
	}
}

// LockMachine gates a session's content behind its password digest.
// It is not safe for concurrent use; the registry loop owns it.
type LockMachine struct {
	state LockState
	guard *credential.Guard
}

// NewLockMachine starts Locked when digest is set, Unlocked otherwise.
func NewLockMachine(guard *credential.Guard, digest string) *LockMachine {
	if guard == nil {
		guard = credential.Default()
	}
	state := Unlocked
	if digest != "" {
		state = Locked
	}
	return &LockMachine{state: state, guard: guard}
}

// State returns the current state.
func (m *LockMachine) State() LockState {
	return m.state
}

// Visible reports whether the content view should be shown.
func (m *LockMachine) Visible() bool {
	return m.state == Unlocked
}

// Lock hides the session. It returns false when already locked.
func (m *LockMachine) Lock() bool {
	if m.state == Locked {
		return false
	}
	m.state = Locked
	return true
}

// Unlock verifies secret against digest and then runs enter, which brings the
// content view up. A rejected secret or a failing enter leaves the machine Locked.
// Unlocking an unlocked machine is a no-op.
func (m *LockMachine) Unlock(secret, digest string, enter func() error) error {
	if m.state == Unlocked {
		return nil
	}
	if err := m.guard.Check(secret, digest); err != nil {
		return err
	}

	m.state = Unlocking
	if enter != nil {
		if err := enter(); err != nil {
			m.state = Locked
			return err
		}
	}
	m.state = Unlocked
	return nil
}

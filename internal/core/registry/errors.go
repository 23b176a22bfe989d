package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded matches any *CapacityError
	ErrCapacityExceeded = errors.New("session capacity exceeded")

	// ErrSessionNotFound is returned for ids not in the registry, including
	// ids whose removal already started
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionLocked is returned for operations that need visible content
	ErrSessionLocked = errors.New("session is locked")

	// ErrSlotOutOfRange is returned for slot positions outside the tab bar
	ErrSlotOutOfRange = errors.New("slot out of range")

	// ErrClosed is returned once Close has started
	ErrClosed = errors.New("registry closed")

	// ErrEmptySecret is returned when setting a blank password; use ClearPassword instead
	ErrEmptySecret = errors.New("password must not be empty")
)

// CapacityError is returned by Add when the registry is full
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cannot open more than %d sessions", e.Limit)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// RenderCrash describes an abnormal render process termination. It is
// reported to the presenter and recovered by a scheduled reload.
type RenderCrash struct {
	AccountID int64
	ExitCode  int
	Reason    string
}

func (e *RenderCrash) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("render process for account %d crashed (exit %d): %s", e.AccountID, e.ExitCode, e.Reason)
	}
	return fmt.Sprintf("render process for account %d crashed (exit %d)", e.AccountID, e.ExitCode)
}

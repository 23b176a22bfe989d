// Package contentview hosts the embedded web content for each account.
//
// An Engine creates one View per live session. Views report page loads and
// render process terminations through the handler passed to Create; the
// handler may be called from any goroutine.
package contentview

import "errors"

// ErrDisposed is returned when a disposed view is asked to do work.
var ErrDisposed = errors.New("content view disposed")

// Status describes how a render process ended.
type Status int

const (
	StatusNormal Status = iota
	StatusAbnormal
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusAbnormal:
		return "abnormal"
	default:
		return "unknown"
	}
}

// EventKind identifies a view event.
type EventKind int

const (
	LoadFinished EventKind = iota
	RenderProcessTerminated
)

// Event is emitted by a View.
type Event struct {
	Kind EventKind

	// LoadFinished
	OK bool

	// RenderProcessTerminated
	Status   Status
	ExitCode int
	Reason   string
}

// Options configure a new View.
type Options struct {
	StoragePath string
	UserAgent   string
	Zoom        float64
}

// View is a single account's web content.
type View interface {
	Navigate(url string) error
	SetZoomFactor(factor float64) error
	// Stop abandons an in-flight navigation.
	Stop()
	// Dispose releases the view. Further calls return ErrDisposed.
	Dispose() error
}

// Concealer is implemented by views that can hide their content without
// being torn down. Views that cannot are released while their session is
// locked and created again on unlock.
type Concealer interface {
	SetHidden(hidden bool) error
}

// Engine creates views.
type Engine interface {
	Create(opts Options, handler func(Event)) (View, error)
}

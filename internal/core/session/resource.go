// Package session holds the per-account runtime pieces: the content view
// resource, the lock state machine and the display label.
package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/models"
)

// ErrNotMaterialized is returned when navigating a resource with no live view.
var ErrNotMaterialized = errors.New("session has no live content view")

// ResourceInitError reports a content view that could not be created.
// The resource stays without a view and can be retried later.
type ResourceInitError struct {
	AccountID int64
	Err       error
}

func (e *ResourceInitError) Error() string {
	return fmt.Sprintf("content view for account %d could not be created: %v", e.AccountID, e.Err)
}

func (e *ResourceInitError) Unwrap() error {
	return e.Err
}

// ZoomStore persists zoom changes.
type ZoomStore interface {
	UpdateZoom(id int64, factor float64) error
}

// EventFunc receives view events tagged with the generation of the view that
// produced them. It is called from the view's goroutines.
type EventFunc func(gen uint64, ev contentview.Event)

// Resource owns one account's content view. At most one view exists at a time.
// It is not safe for concurrent use; the registry loop owns it.
type Resource struct {
	id          int64
	storagePath string
	userAgent   string
	engine      contentview.Engine
	store       ZoomStore
	onEvent     EventFunc

	zoom    float64
	view    contentview.View
	gen     uint64
	target  string
	pending bool
}

// NewResource builds a resource for account. No view is created until Materialize.
func NewResource(account models.Account, engine contentview.Engine, store ZoomStore, userAgent string, onEvent EventFunc) *Resource {
	if onEvent == nil {
		onEvent = func(uint64, contentview.Event) {}
	}
	return &Resource{
		id:          account.ID,
		storagePath: account.StoragePath,
		userAgent:   userAgent,
		engine:      engine,
		store:       store,
		onEvent:     onEvent,
		zoom:        models.ClampZoom(account.ZoomFactor),
	}
}

func (r *Resource) ID() int64           { return r.id }
func (r *Resource) StoragePath() string { return r.storagePath }
func (r *Resource) Zoom() float64       { return r.zoom }
func (r *Resource) Live() bool          { return r.view != nil }
func (r *Resource) Pending() bool       { return r.pending }
func (r *Resource) Target() string      { return r.target }

// Generation identifies the current view; events from older views are stale.
func (r *Resource) Generation() uint64 { return r.gen }

// Materialize creates the content view bound to the storage directory.
// It is a no-op when a view is already live.
func (r *Resource) Materialize() error {
	if r.view != nil {
		return nil
	}
	if err := os.MkdirAll(r.storagePath, 0700); err != nil {
		return &ResourceInitError{AccountID: r.id, Err: err}
	}

	r.gen++
	gen := r.gen
	view, err := r.engine.Create(contentview.Options{
		StoragePath: r.storagePath,
		UserAgent:   r.userAgent,
		Zoom:        r.zoom,
	}, func(ev contentview.Event) {
		r.onEvent(gen, ev)
	})
	if err != nil {
		return &ResourceInitError{AccountID: r.id, Err: err}
	}
	if err := view.SetZoomFactor(r.zoom); err != nil {
		_ = view.Dispose()
		return &ResourceInitError{AccountID: r.id, Err: err}
	}

	r.view = view
	r.pending = false
	return nil
}

// Navigate points the view at target. A navigation to the pending target is
// coalesced; a different target stops the pending one first.
func (r *Resource) Navigate(target string) error {
	if r.view == nil {
		return ErrNotMaterialized
	}
	if r.pending {
		if target == r.target {
			return nil
		}
		r.view.Stop()
	}

	r.target = target
	if err := r.view.Navigate(target); err != nil {
		r.pending = false
		return fmt.Errorf("navigate: %w", err)
	}
	r.pending = true
	return nil
}

// Reload navigates to the current target again.
func (r *Resource) Reload() error {
	if r.target == "" {
		return ErrNotMaterialized
	}
	return r.Navigate(r.target)
}

// SetZoom clamps factor, applies it to the live view and persists it.
// It returns the applied value.
func (r *Resource) SetZoom(factor float64) (float64, error) {
	z := models.ClampZoom(factor)
	r.zoom = z
	if r.view != nil {
		if err := r.view.SetZoomFactor(z); err != nil {
			return z, fmt.Errorf("apply zoom: %w", err)
		}
	}
	if r.store != nil {
		if err := r.store.UpdateZoom(r.id, z); err != nil {
			return z, fmt.Errorf("persist zoom: %w", err)
		}
	}
	return z, nil
}

// Hide takes the content off screen. A view that cannot conceal itself is
// released; Materialize brings it back.
func (r *Resource) Hide() error {
	if r.view == nil {
		return nil
	}
	if c, ok := r.view.(contentview.Concealer); ok {
		return c.SetHidden(true)
	}
	return r.Release()
}

// Show reveals a view hidden by Hide. It is a no-op without a live view.
func (r *Resource) Show() error {
	if r.view == nil {
		return nil
	}
	if c, ok := r.view.(contentview.Concealer); ok {
		return c.SetHidden(false)
	}
	return nil
}

// HandleEvent updates navigation state for an event and reports whether the
// event belongs to the current view.
func (r *Resource) HandleEvent(gen uint64, ev contentview.Event) bool {
	if r.view == nil || gen != r.gen {
		return false
	}
	switch ev.Kind {
	case contentview.LoadFinished, contentview.RenderProcessTerminated:
		r.pending = false
	}
	return true
}

// Release stops any in-flight navigation and disposes the view. Idempotent.
func (r *Resource) Release() error {
	if r.view == nil {
		return nil
	}
	view := r.view
	r.view = nil
	r.gen++
	if r.pending {
		view.Stop()
		r.pending = false
	}
	return view.Dispose()
}

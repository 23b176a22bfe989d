package contentview

import (
	"sync"
	"time"
)

// Headless is an Engine that renders nothing. Navigations complete after
// LoadDelay and render processes never terminate. It backs the "none" engine
// and lets the registry run on machines without a browser.
type Headless struct {
	LoadDelay time.Duration
}

// Create returns a headless view.
func (h *Headless) Create(opts Options, handler func(Event)) (View, error) {
	return &headlessView{
		delay:   h.LoadDelay,
		zoom:    opts.Zoom,
		handler: handler,
	}, nil
}

type headlessView struct {
	delay   time.Duration
	handler func(Event)

	mu       sync.Mutex
	url      string
	zoom     float64
	timer    *time.Timer
	hidden   bool
	disposed bool
}

func (v *headlessView) Navigate(url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	v.url = url
	v.timer = time.AfterFunc(v.delay, func() {
		v.mu.Lock()
		disposed := v.disposed
		v.mu.Unlock()
		if !disposed {
			v.handler(Event{Kind: LoadFinished, OK: true})
		}
	})
	return nil
}

func (v *headlessView) SetZoomFactor(factor float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	v.zoom = factor
	return nil
}

func (v *headlessView) SetHidden(hidden bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	v.hidden = hidden
	return nil
}

func (v *headlessView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

func (v *headlessView) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.disposed = true
	return nil
}

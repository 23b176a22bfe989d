package registry

import "github.com/neilberkman/acctabs/internal/core/session"

// Presenter receives one-way notifications from the registry loop.
//
// Methods are called on the loop goroutine and must not call back into the
// Registry synchronously; hand the notification off (a channel, a tea.Cmd)
// and return.
type Presenter interface {
	OnSessionAdded(id int64, label string)
	OnSessionRemoved(id int64)
	OnSlotOrderChanged(ids []int64)
	OnLockStateChanged(id int64, state session.LockState)
	OnZoomChanged(id int64, percent int)
	OnCrash(id int64, reason string)
	OnLabelChanged(id int64, label string)
	OnTeardownIncomplete(id int64, path string, err error)
}

// NopPresenter ignores every notification
type NopPresenter struct{}

func (NopPresenter) OnSessionAdded(int64, string)                {}
func (NopPresenter) OnSessionRemoved(int64)                      {}
func (NopPresenter) OnSlotOrderChanged([]int64)                  {}
func (NopPresenter) OnLockStateChanged(int64, session.LockState) {}
func (NopPresenter) OnZoomChanged(int64, int)                    {}
func (NopPresenter) OnCrash(int64, string)                       {}
func (NopPresenter) OnLabelChanged(int64, string)                {}
func (NopPresenter) OnTeardownIncomplete(int64, string, error)   {}

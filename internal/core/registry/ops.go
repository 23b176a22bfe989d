package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/credential"
	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/neilberkman/acctabs/internal/core/session"
	"go.uber.org/zap"
)

// Add creates an account, opens its session in the next slot and returns its id.
// A session whose view cannot be created is still added, Locked.
func (r *Registry) Add(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.exec(ctx, func() error {
		if len(r.sessions) >= r.cfg.MaxSessions {
			return &CapacityError{Limit: r.cfg.MaxSessions}
		}

		acct, err := r.store.CreateAccount(name)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		id = acct.ID

		e := r.attach(*acct)
		r.metrics.AccountsAdded.Inc()
		r.logger.Info("account added",
			zap.Int64("account_id", id),
			zap.String("storage_path", acct.StoragePath))

		r.presenter.OnSessionAdded(id, e.label)
		r.presenter.OnLockStateChanged(id, e.lock.State())
		r.presenter.OnSlotOrderChanged(r.slots.ids())
		r.bringUp(e)
		r.updateGauges()
		return nil
	})
	return id, err
}

// Remove takes the session out of the registry, deletes its record, releases
// its view and starts deleting its storage in the background. A second call
// for the same id returns ErrSessionNotFound.
func (r *Registry) Remove(ctx context.Context, id int64) (*Teardown, error) {
	var td *Teardown
	err := r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}

		// Index first so nothing can address the session any more
		slot, _ := r.slots.of(id)
		delete(r.sessions, id)
		r.slots.remove(id)
		stopReload(e)
		r.presenter.OnSessionRemoved(id)
		r.presenter.OnSlotOrderChanged(r.slots.ids())

		path, err := r.store.DeleteAccount(id)
		if err != nil {
			// The record is still there, so the session stays too
			r.restore(e, slot)
			return fmt.Errorf("failed to delete account %d: %w", id, err)
		}
		if path == "" {
			path = e.account.StoragePath
		}

		if err := e.res.Release(); err != nil {
			r.logger.Warn("failed to release content view",
				zap.Int64("account_id", id),
				zap.Error(err))
		}

		r.metrics.AccountsRemoved.Inc()
		r.updateGauges()
		r.logger.Info("account removed", zap.Int64("account_id", id))

		td = newTeardown(id, path)
		r.startTeardown(td)
		return nil
	})
	return td, err
}

// restore puts a session taken out by Remove back at slot
func (r *Registry) restore(e *entry, slot int) {
	id := e.account.ID
	r.sessions[id] = e
	r.slots.append(id)
	if last := r.slots.len() - 1; slot < last {
		_ = r.slots.move(last, slot)
	}
	r.presenter.OnSessionAdded(id, e.label)
	r.presenter.OnLockStateChanged(id, e.lock.State())
	r.presenter.OnSlotOrderChanged(r.slots.ids())
	r.logger.Warn("account kept after failed delete", zap.Int64("account_id", id))
}

func (r *Registry) startTeardown(td *Teardown) {
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		err := r.deleter.Delete(context.Background(), td.StoragePath)
		if !r.post(func() { r.finishTeardown(td, err) }) {
			td.finish(err)
		}
	}()
}

func (r *Registry) finishTeardown(td *Teardown, err error) {
	if err != nil {
		r.metrics.TeardownIncomplete.Inc()
		r.logger.Warn("storage teardown incomplete, directory left behind",
			zap.Int64("account_id", td.ID),
			zap.String("storage_path", td.StoragePath),
			zap.Error(err))
		r.presenter.OnTeardownIncomplete(td.ID, td.StoragePath, err)
	}
	td.finish(err)
}

// Reorder moves the session at fromSlot to toSlot
func (r *Registry) Reorder(ctx context.Context, fromSlot, toSlot int) error {
	return r.exec(ctx, func() error {
		if err := r.slots.move(fromSlot, toSlot); err != nil {
			return err
		}
		if fromSlot != toSlot {
			r.presenter.OnSlotOrderChanged(r.slots.ids())
		}
		return nil
	})
}

// Rename changes the display name. Storage stays where it is.
func (r *Registry) Rename(ctx context.Context, id int64, name string) error {
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		if err := r.store.RenameAccount(id, name); err != nil {
			return fmt.Errorf("failed to rename account: %w", err)
		}
		e.account.Name = strings.TrimSpace(name)
		r.relabel(e)
		return nil
	})
}

// SetPassword sets a new lock secret and locks the session. When a password
// already exists, current must match it.
func (r *Registry) SetPassword(ctx context.Context, id int64, current, secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		if err := r.guard.Check(current, e.account.PasswordDigest); err != nil {
			r.metrics.UnlockRejected.Inc()
			r.logger.Info("password change rejected", zap.Int64("account_id", id))
			return err
		}

		digest, err := r.guard.Hash(secret)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := r.store.SetPasswordDigest(id, digest); err != nil {
			return fmt.Errorf("failed to store password: %w", err)
		}
		e.account.PasswordDigest = digest

		r.lock(e)
		return nil
	})
}

// ClearPassword removes the lock secret and unlocks the session. current
// must match the existing password.
func (r *Registry) ClearPassword(ctx context.Context, id int64, current string) error {
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		if err := r.guard.Check(current, e.account.PasswordDigest); err != nil {
			r.metrics.UnlockRejected.Inc()
			r.logger.Info("password removal rejected", zap.Int64("account_id", id))
			return err
		}
		if err := r.store.SetPasswordDigest(id, ""); err != nil {
			return fmt.Errorf("failed to clear password: %w", err)
		}
		e.account.PasswordDigest = ""
		return r.unlock(e, "")
	})
}

// Lock hides the session behind its placeholder
func (r *Registry) Lock(ctx context.Context, id int64) error {
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		r.lock(e)
		return nil
	})
}

func (r *Registry) lock(e *entry) {
	if !e.lock.Lock() {
		return
	}
	stopReload(e)
	if err := e.res.Hide(); err != nil {
		r.logger.Warn("failed to hide content view",
			zap.Int64("account_id", e.account.ID),
			zap.Error(err))
	}
	r.logger.Debug("session locked", zap.Int64("account_id", e.account.ID))
	r.presenter.OnLockStateChanged(e.account.ID, session.Locked)
	r.relabel(e)
	r.updateGauges()
}

// Unlock shows the session if secret matches its password. A wrong secret
// returns credential.ErrCredentialRejected and leaves it Locked.
func (r *Registry) Unlock(ctx context.Context, id int64, secret string) error {
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		return r.unlock(e, secret)
	})
}

func (r *Registry) unlock(e *entry, secret string) error {
	id := e.account.ID
	if e.lock.State() == session.Unlocked {
		return nil
	}

	err := e.lock.Unlock(secret, e.account.PasswordDigest, func() error {
		r.presenter.OnLockStateChanged(id, session.Unlocking)
		return r.enter(e)
	})
	switch {
	case errors.Is(err, credential.ErrCredentialRejected):
		r.metrics.UnlockRejected.Inc()
		r.logger.Info("unlock rejected", zap.Int64("account_id", id))
		return err
	case err != nil:
		r.logger.Error("unlock failed, session stays locked",
			zap.Int64("account_id", id),
			zap.Error(err))
		r.presenter.OnLockStateChanged(id, session.Locked)
		return err
	}

	r.logger.Debug("session unlocked", zap.Int64("account_id", id))
	r.presenter.OnLockStateChanged(id, session.Unlocked)
	r.relabel(e)
	r.updateGauges()
	return nil
}

// SetZoom clamps, applies and persists a zoom factor and returns the applied value
func (r *Registry) SetZoom(ctx context.Context, id int64, factor float64) (float64, error) {
	return r.zoom(ctx, id, func(float64) float64 { return factor })
}

// ZoomIn steps zoom up by models.ZoomStep
func (r *Registry) ZoomIn(ctx context.Context, id int64) (float64, error) {
	return r.zoom(ctx, id, func(cur float64) float64 { return cur + models.ZoomStep })
}

// ZoomOut steps zoom down by models.ZoomStep
func (r *Registry) ZoomOut(ctx context.Context, id int64) (float64, error) {
	return r.zoom(ctx, id, func(cur float64) float64 { return cur - models.ZoomStep })
}

// ResetZoom returns to models.DefaultZoom
func (r *Registry) ResetZoom(ctx context.Context, id int64) (float64, error) {
	return r.zoom(ctx, id, func(float64) float64 { return models.DefaultZoom })
}

func (r *Registry) zoom(ctx context.Context, id int64, next func(cur float64) float64) (float64, error) {
	var applied float64
	err := r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		z, err := e.res.SetZoom(next(e.res.Zoom()))
		applied = z
		e.account.ZoomFactor = z
		r.presenter.OnZoomChanged(id, models.ZoomPercent(z))
		r.relabel(e)
		return err
	})
	return applied, err
}

// Reload re-navigates the session's view. An unlocked session without a
// live view is brought up instead. Locked sessions return ErrSessionLocked.
func (r *Registry) Reload(ctx context.Context, id int64) error {
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		if e.lock.State() != session.Unlocked {
			return fmt.Errorf("%w: %d", ErrSessionLocked, id)
		}
		if !e.res.Live() {
			return r.enter(e)
		}
		return e.res.Reload()
	})
}

// Activate marks the session as the foreground one
func (r *Registry) Activate(ctx context.Context, id int64) error {
	return r.exec(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		if err := r.store.TouchLastActive(id); err != nil {
			return fmt.Errorf("failed to touch account: %w", err)
		}
		e.account.LastActiveAt = time.Now()
		r.relabel(e)
		return nil
	})
}

// Slots returns the ids in tab order
func (r *Registry) Slots(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.do(ctx, func() error {
		ids = r.slots.ids()
		return nil
	})
	return ids, err
}

// SlotOf returns the tab position of id
func (r *Registry) SlotOf(ctx context.Context, id int64) (int, error) {
	var slot int
	err := r.do(ctx, func() error {
		s, ok := r.slots.of(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
		}
		slot = s
		return nil
	})
	return slot, err
}

// IDAt returns the id in tab position slot
func (r *Registry) IDAt(ctx context.Context, slot int) (int64, error) {
	var id int64
	err := r.do(ctx, func() error {
		v, ok := r.slots.at(slot)
		if !ok {
			return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
		}
		id = v
		return nil
	})
	return id, err
}

// Get returns one session
func (r *Registry) Get(ctx context.Context, id int64) (SessionInfo, error) {
	var info SessionInfo
	err := r.do(ctx, func() error {
		e, err := r.lookup(id)
		if err != nil {
			return err
		}
		info = r.info(e)
		return nil
	})
	return info, err
}

// Snapshot returns every session in tab order
func (r *Registry) Snapshot(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	err := r.do(ctx, func() error {
		for _, id := range r.slots.ids() {
			out = append(out, r.info(r.sessions[id]))
		}
		return nil
	})
	return out, err
}

// handleEvent runs on the loop for every content view event
func (r *Registry) handleEvent(id int64, gen uint64, ev contentview.Event) {
	if r.closing {
		return
	}
	e, ok := r.sessions[id]
	if !ok || !e.res.HandleEvent(gen, ev) {
		return
	}

	switch ev.Kind {
	case contentview.LoadFinished:
		if !ev.OK {
			r.logger.Warn("page load failed", zap.Int64("account_id", id))
		}

	case contentview.RenderProcessTerminated:
		if ev.Status == contentview.StatusNormal {
			r.logger.Info("render process exited", zap.Int64("account_id", id))
			return
		}

		crash := &RenderCrash{AccountID: id, ExitCode: ev.ExitCode, Reason: ev.Reason}
		r.metrics.RenderCrashes.Inc()
		r.presenter.OnCrash(id, crash.Error())

		// A locked session is not brought back until unlock
		if e.lock.State() != session.Unlocked {
			r.logger.Warn("render process crashed while locked",
				zap.Int64("account_id", id),
				zap.Int("exit_code", ev.ExitCode))
			_ = e.res.Release()
			return
		}

		r.logger.Warn("render process crashed, scheduling reload",
			zap.Int64("account_id", id),
			zap.Int("exit_code", ev.ExitCode),
			zap.Duration("delay", r.cfg.ReloadDelay))
		r.scheduleReload(e)
	}
}

// scheduleReload arms the single crash-recovery reload for e
func (r *Registry) scheduleReload(e *entry) {
	if e.reload != nil {
		return
	}
	id := e.account.ID
	e.reload = time.AfterFunc(r.cfg.ReloadDelay, func() {
		r.post(func() { r.fireReload(id, e) })
	})
}

func (r *Registry) fireReload(id int64, e *entry) {
	if r.closing || r.sessions[id] != e || e.reload == nil {
		return
	}
	e.reload = nil
	if e.lock.State() != session.Unlocked {
		return
	}
	r.metrics.CrashReloads.Inc()
	if err := e.res.Reload(); err != nil {
		r.logger.Warn("crash reload failed",
			zap.Int64("account_id", id),
			zap.Error(err))
	}
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/credential"
	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/metrics"
	"github.com/neilberkman/acctabs/internal/core/session"
	"github.com/neilberkman/acctabs/internal/core/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakes

type fakeView struct {
	mu          sync.Mutex
	navigations []string
	zooms       []float64
	stops       int
	disposed    int
	hidden      []bool
	handler     func(contentview.Event)
}

// concealingView hides in place instead of being released on lock
type concealingView struct {
	*fakeView
}

func (v concealingView) SetHidden(h bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hidden = append(v.hidden, h)
	return nil
}

func (v *fakeView) Navigate(url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.navigations = append(v.navigations, url)
	return nil
}

func (v *fakeView) SetZoomFactor(f float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zooms = append(v.zooms, f)
	return nil
}

func (v *fakeView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops++
}

func (v *fakeView) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed++
	return nil
}

func (v *fakeView) emit(ev contentview.Event) {
	v.handler(ev)
}

func (v *fakeView) navCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.navigations)
}

func (v *fakeView) lastZoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.zooms) == 0 {
		return 0
	}
	return v.zooms[len(v.zooms)-1]
}

func (v *fakeView) disposeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disposed
}

func (v *fakeView) hiddenStates() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]bool(nil), v.hidden...)
}

type fakeEngine struct {
	mu      sync.Mutex
	views   map[string][]*fakeView
	err     error
	conceal bool
}

func (e *fakeEngine) Create(opts contentview.Options, handler func(contentview.Event)) (contentview.View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if e.views == nil {
		e.views = make(map[string][]*fakeView)
	}
	v := &fakeView{handler: handler}
	e.views[opts.StoragePath] = append(e.views[opts.StoragePath], v)
	if e.conceal {
		return concealingView{v}, nil
	}
	return v, nil
}

func (e *fakeEngine) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *fakeEngine) viewCount(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.views[path])
}

func (e *fakeEngine) viewFor(path string) *fakeView {
	e.mu.Lock()
	defer e.mu.Unlock()
	vs := e.views[path]
	if len(vs) == 0 {
		return nil
	}
	return vs[len(vs)-1]
}

type recorder struct {
	mu        sync.Mutex
	added     []int64
	removed   []int64
	order     []int64
	states    map[int64]session.LockState
	zooms     []int
	crashes   []int64
	labels    map[int64]string
	teardowns []error
}

func newRecorder() *recorder {
	return &recorder{states: make(map[int64]session.LockState), labels: make(map[int64]string)}
}

func (p *recorder) OnSessionAdded(id int64, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, id)
	p.labels[id] = label
}

func (p *recorder) OnSessionRemoved(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, id)
}

func (p *recorder) OnSlotOrderChanged(ids []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = ids
}

func (p *recorder) OnLockStateChanged(id int64, state session.LockState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[id] = state
}

func (p *recorder) OnZoomChanged(_ int64, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.zooms = append(p.zooms, percent)
}

func (p *recorder) OnCrash(id int64, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crashes = append(p.crashes, id)
}

func (p *recorder) OnLabelChanged(id int64, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels[id] = label
}

func (p *recorder) OnTeardownIncomplete(_ int64, _ string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardowns = append(p.teardowns, err)
}

func (p *recorder) state(id int64) session.LockState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[id]
}

func (p *recorder) orderSnapshot() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.order...)
}

func (p *recorder) crashCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.crashes)
}

// harness

type harness struct {
	reg     *Registry
	store   *db.DB
	engine  *fakeEngine
	rec     *recorder
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, cfg Config, deps Deps) *harness {
	t.Helper()

	database, _ := deps.Store.(*db.DB)
	if deps.Store == nil {
		var err error
		database, err = db.New(filepath.Join(t.TempDir(), "acctabs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = database.Close() })
		deps.Store = database
	}

	engine, _ := deps.Engine.(*fakeEngine)
	if engine == nil {
		engine = &fakeEngine{}
		deps.Engine = engine
	}
	rec := newRecorder()
	deps.Presenter = rec
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if cfg.Teardown.Attempts == 0 {
		cfg.Teardown = storage.Policy{Attempts: 3, Spacing: time.Millisecond}
	}
	if deps.Deleter == nil {
		deps.Deleter = storage.NewDeleter(cfg.Teardown)
	}

	reg, err := Open(context.Background(), cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	return &harness{reg: reg, store: database, engine: engine, rec: rec, metrics: deps.Metrics}
}

func (h *harness) add(t *testing.T, name string) int64 {
	t.Helper()
	id, err := h.reg.Add(context.Background(), name)
	require.NoError(t, err)
	return id
}

func (h *harness) view(t *testing.T, id int64) *fakeView {
	t.Helper()
	info, err := h.reg.Get(context.Background(), id)
	require.NoError(t, err)
	v := h.engine.viewFor(info.StoragePath)
	require.NotNil(t, v, "no view for account %d", id)
	return v
}

// checkInvariants verifies slot and session bookkeeping on the loop
func (h *harness) checkInvariants(t *testing.T) {
	t.Helper()
	r := h.reg
	err := r.do(context.Background(), func() error {
		if err := r.slots.check(); err != nil {
			return err
		}
		if r.slots.len() != len(r.sessions) {
			return fmt.Errorf("%d slots for %d sessions", r.slots.len(), len(r.sessions))
		}
		seen := make(map[int64]bool)
		for _, id := range r.slots.ids() {
			if seen[id] {
				return fmt.Errorf("id %d occupies two slots", id)
			}
			seen[id] = true
			if _, ok := r.sessions[id]; !ok {
				return fmt.Errorf("slot references removed id %d", id)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

var ctx = context.Background()

// tests

func TestAddOpensUnlockedSession(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})

	id := h.add(t, "Work")

	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Unlocked, info.State)
	assert.True(t, info.Live)
	assert.Equal(t, 0, info.Slot)
	assert.Equal(t, "Work", info.Label)
	assert.Equal(t, []string{DefaultTargetURL}, h.view(t, id).navigations)
	assert.Equal(t, []int64{id}, h.rec.order)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AccountsAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsOpen))
}

func TestOpenLoadsLockState(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "acctabs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	open, err := database.CreateAccount("Open")
	require.NoError(t, err)
	guarded, err := database.CreateAccount("Guarded")
	require.NoError(t, err)
	digest, err := credential.Default().Hash("pw")
	require.NoError(t, err)
	require.NoError(t, database.SetPasswordDigest(guarded.ID, digest))

	h := newHarness(t, Config{}, Deps{Store: database})

	openInfo, err := h.reg.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Unlocked, openInfo.State)
	assert.True(t, openInfo.Live)

	guardedInfo, err := h.reg.Get(ctx, guarded.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, guardedInfo.State)
	assert.False(t, guardedInfo.Live)
	assert.Equal(t, "🔒 Guarded", guardedInfo.Label)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SessionsLocked))

	// Most recently active first
	slots, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{guarded.ID, open.ID}, slots)
}

func TestOpenCapsAtMaxSessions(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "acctabs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	for _, name := range []string{"a", "b", "c"} {
		_, err := database.CreateAccount(name)
		require.NoError(t, err)
	}

	h := newHarness(t, Config{MaxSessions: 2}, Deps{Store: database})

	slots, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	h.checkInvariants(t)
}

func TestAddRemoveKeepsSlotsConsistent(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})

	var live []int64
	for round := 0; round < 4; round++ {
		for i := 0; i < 3; i++ {
			live = append(live, h.add(t, fmt.Sprintf("acct-%d-%d", round, i)))
			h.checkInvariants(t)
		}
		// Remove from the middle, then the front
		for _, idx := range []int{len(live) / 2, 0} {
			td, err := h.reg.Remove(ctx, live[idx])
			require.NoError(t, err)
			require.NoError(t, td.Wait(ctx))
			live = append(live[:idx], live[idx+1:]...)
			h.checkInvariants(t)
		}
	}

	slots, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, live, slots)
}

func TestAddBeyondCapacity(t *testing.T) {
	h := newHarness(t, Config{MaxSessions: 8}, Deps{})

	for i := 0; i < 8; i++ {
		h.add(t, fmt.Sprintf("acct %d", i))
	}
	before, err := h.reg.Slots(ctx)
	require.NoError(t, err)

	_, err = h.reg.Add(ctx, "ninth")

	assert.ErrorIs(t, err, ErrCapacityExceeded)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 8, capErr.Limit)

	after, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	accounts, err := h.store.ListAccounts()
	require.NoError(t, err)
	assert.Len(t, accounts, 8)
	assert.Equal(t, 8.0, testutil.ToFloat64(h.metrics.AccountsAdded))
}

func TestSetZoomClampsAndPersists(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Zoom")

	z, err := h.reg.SetZoom(ctx, id, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 0.5, z)
	assert.Equal(t, 0.5, h.view(t, id).lastZoom())
	stored, err := h.store.GetAccount(id)
	require.NoError(t, err)
	assert.Equal(t, 0.5, stored.ZoomFactor)

	z, err = h.reg.SetZoom(ctx, id, 10)
	require.NoError(t, err)
	assert.Equal(t, 3.0, z)
	stored, err = h.store.GetAccount(id)
	require.NoError(t, err)
	assert.Equal(t, 3.0, stored.ZoomFactor)

	z, err = h.reg.ZoomIn(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3.0, z)

	z, err = h.reg.ZoomOut(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2.9, z)

	z, err = h.reg.ResetZoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1.0, z)

	assert.Equal(t, []int{50, 300, 300, 290, 100}, h.rec.zooms)
}

func TestUnlockCorrectSecretNavigates(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "acctabs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	acct, err := database.CreateAccount("Private")
	require.NoError(t, err)
	digest, err := credential.Default().Hash("open sesame")
	require.NoError(t, err)
	require.NoError(t, database.SetPasswordDigest(acct.ID, digest))

	h := newHarness(t, Config{}, Deps{Store: database})
	assert.Nil(t, h.engine.viewFor(acct.StoragePath))

	err = h.reg.Unlock(ctx, acct.ID, "nope")
	assert.ErrorIs(t, err, credential.ErrCredentialRejected)
	info, err := h.reg.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.UnlockRejected))

	require.NoError(t, h.reg.Unlock(ctx, acct.ID, "open sesame"))
	info, err = h.reg.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Unlocked, info.State)
	assert.True(t, info.Live)
	assert.Equal(t, session.Unlocked, h.rec.state(acct.ID))
	assert.Equal(t, []string{DefaultTargetURL}, h.view(t, acct.ID).navigations)
}

func TestPasswordSetClearUnlock(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Round trip")

	require.NoError(t, h.reg.SetPassword(ctx, id, "", "abc"))
	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)
	assert.True(t, info.HasPassword)

	assert.ErrorIs(t, h.reg.ClearPassword(ctx, id, "wrong"), credential.ErrCredentialRejected)
	require.NoError(t, h.reg.ClearPassword(ctx, id, "abc"))
	info, err = h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Unlocked, info.State)
	assert.False(t, info.HasPassword)

	stored, err := h.store.GetAccount(id)
	require.NoError(t, err)
	assert.False(t, stored.HasPassword())

	require.NoError(t, h.reg.Lock(ctx, id))
	require.NoError(t, h.reg.Unlock(ctx, id, "anything"))
	info, err = h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Unlocked, info.State)
}

func TestSetPasswordRequiresCurrentSecret(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Rotate")

	require.NoError(t, h.reg.SetPassword(ctx, id, "", "first"))

	err := h.reg.SetPassword(ctx, id, "wrong", "second")
	assert.ErrorIs(t, err, credential.ErrCredentialRejected)

	require.NoError(t, h.reg.SetPassword(ctx, id, "first", "second"))
	assert.ErrorIs(t, h.reg.Unlock(ctx, id, "first"), credential.ErrCredentialRejected)
	require.NoError(t, h.reg.Unlock(ctx, id, "second"))

	assert.ErrorIs(t, h.reg.SetPassword(ctx, id, "second", ""), ErrEmptySecret)
}

func TestLockHidesConcealableView(t *testing.T) {
	h := newHarness(t, Config{}, Deps{Engine: &fakeEngine{conceal: true}})
	id := h.add(t, "Hidden")

	require.NoError(t, h.reg.Lock(ctx, id))
	require.NoError(t, h.reg.Lock(ctx, id))

	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)
	assert.True(t, info.Live)
	assert.Equal(t, "🔒 Hidden", info.Label)

	require.NoError(t, h.reg.Unlock(ctx, id, ""))
	v := h.view(t, id)
	assert.Equal(t, 1, v.navCount())
	assert.Equal(t, []bool{true, false}, v.hiddenStates())
	assert.Equal(t, 0, v.disposeCount())
}

func TestLockReleasesViewThatCannotHide(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Window")
	first := h.view(t, id)

	require.NoError(t, h.reg.SetPassword(ctx, id, "", "abc"))
	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)
	assert.False(t, info.Live)
	assert.Equal(t, 1, first.disposeCount())

	assert.ErrorIs(t, h.reg.Reload(ctx, id), ErrSessionLocked)
	assert.Equal(t, 1, first.navCount())

	require.NoError(t, h.reg.Unlock(ctx, id, "abc"))
	assert.Equal(t, 2, h.engine.viewCount(info.StoragePath))
	second := h.view(t, id)
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{DefaultTargetURL}, second.navigations)
}

func TestCrashWhileLockedIsNotReloaded(t *testing.T) {
	h := newHarness(t, Config{ReloadDelay: 10 * time.Millisecond}, Deps{Engine: &fakeEngine{conceal: true}})
	id := h.add(t, "Guarded")
	v := h.view(t, id)

	require.NoError(t, h.reg.SetPassword(ctx, id, "", "abc"))
	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal, ExitCode: 139})
	require.Eventually(t, func() bool { return h.rec.crashCount() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)
	assert.False(t, info.Live)
	assert.Equal(t, 1, v.navCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.CrashReloads))

	// Unlock starts a fresh view
	require.NoError(t, h.reg.Unlock(ctx, id, "abc"))
	assert.Equal(t, 1, h.view(t, id).navCount())
	assert.NotSame(t, v, h.view(t, id))
}

func TestLockCancelsPendingReload(t *testing.T) {
	h := newHarness(t, Config{ReloadDelay: 50 * time.Millisecond}, Deps{Engine: &fakeEngine{conceal: true}})
	id := h.add(t, "Quick lock")
	v := h.view(t, id)

	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal, ExitCode: 9})
	require.Eventually(t, func() bool { return h.rec.crashCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.reg.Lock(ctx, id))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, v.navCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.CrashReloads))
}

// failingDelete keeps records in place
type failingDelete struct {
	*db.DB
}

func (f failingDelete) DeleteAccount(int64) (string, error) {
	return "", errors.New("disk I/O error")
}

func TestRemoveKeepsSessionWhenStoreFails(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "acctabs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	h := newHarness(t, Config{}, Deps{Store: failingDelete{database}})
	a := h.add(t, "A")
	b := h.add(t, "B")
	c := h.add(t, "C")
	v := h.view(t, b)

	_, err = h.reg.Remove(ctx, b)
	require.Error(t, err)

	slots, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b, c}, slots)
	info, err := h.reg.Get(ctx, b)
	require.NoError(t, err)
	assert.True(t, info.Live)
	assert.DirExists(t, info.StoragePath)
	assert.Equal(t, 0, v.disposeCount())
	assert.Equal(t, []int64{a, b, c}, h.rec.orderSnapshot())
	h.checkInvariants(t)
}

func TestRemoveWithBusyDirectory(t *testing.T) {
	busy := &os.PathError{Op: "unlinkat", Path: "x", Err: syscall.EBUSY}
	policy := storage.Policy{Attempts: 3, Spacing: time.Millisecond}
	var mu sync.Mutex
	calls := 0
	deleter := &storage.Deleter{
		Policy: policy,
		RemoveAll: func(string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return busy
		},
	}
	h := newHarness(t, Config{Teardown: policy}, Deps{Deleter: deleter})
	id := h.add(t, "Held open")
	path := func() string {
		info, err := h.reg.Get(ctx, id)
		require.NoError(t, err)
		return info.StoragePath
	}()

	td, err := h.reg.Remove(ctx, id)
	require.NoError(t, err)

	// Gone from the index and the store as soon as Remove returns
	_, err = h.reg.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.store.GetAccount(id)
	assert.ErrorIs(t, err, db.ErrAccountNotFound)
	slots, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)

	err = td.Wait(ctx)
	var incomplete *storage.TeardownIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, path, incomplete.Path)
	assert.Equal(t, 3, incomplete.Attempts)

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()

	h.rec.mu.Lock()
	assert.Len(t, h.rec.teardowns, 1)
	h.rec.mu.Unlock()
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TeardownIncomplete))
	assert.Equal(t, 1, h.engine.viewFor(path).disposeCount())

	_, err = h.reg.Remove(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRemoveDeletesStorage(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Temp")
	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	require.DirExists(t, info.StoragePath)

	td, err := h.reg.Remove(ctx, id)
	require.NoError(t, err)
	require.NoError(t, td.Wait(ctx))

	assert.NoDirExists(t, info.StoragePath)
	h.rec.mu.Lock()
	assert.Equal(t, []int64{id}, h.rec.removed)
	h.rec.mu.Unlock()
}

func TestReorderThenRemove(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	a := h.add(t, "A")
	b := h.add(t, "B")
	c := h.add(t, "C")

	require.NoError(t, h.reg.Reorder(ctx, 0, 1))
	slots, err := h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a, c}, slots)

	td, err := h.reg.Remove(ctx, a)
	require.NoError(t, err)
	require.NoError(t, td.Wait(ctx))

	slots, err = h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, c}, slots)

	slot, err := h.reg.SlotOf(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	slot, err = h.reg.SlotOf(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	id, err := h.reg.IDAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, c, id)

	_, err = h.reg.SlotOf(ctx, a)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	h.checkInvariants(t)
}

func TestReorderOutOfRange(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	h.add(t, "Only")

	assert.ErrorIs(t, h.reg.Reorder(ctx, 0, 1), ErrSlotOutOfRange)
	assert.ErrorIs(t, h.reg.Reorder(ctx, -1, 0), ErrSlotOutOfRange)
	_, err := h.reg.IDAt(ctx, 5)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestRenameKeepsStorage(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Before")
	before, err := h.reg.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, h.reg.Rename(ctx, id, "After"))

	after, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "After", after.Name)
	assert.Equal(t, "After", after.Label)
	assert.Equal(t, before.StoragePath, after.StoragePath)

	h.rec.mu.Lock()
	assert.Equal(t, "After", h.rec.labels[id])
	h.rec.mu.Unlock()

	assert.ErrorIs(t, h.reg.Rename(ctx, 999, "x"), ErrSessionNotFound)
}

func TestCrashSchedulesSingleReload(t *testing.T) {
	h := newHarness(t, Config{ReloadDelay: 20 * time.Millisecond}, Deps{})
	id := h.add(t, "Crashy")
	v := h.view(t, id)

	v.emit(contentview.Event{Kind: contentview.LoadFinished, OK: true})
	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal, ExitCode: 139})
	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal, ExitCode: 139})

	require.Eventually(t, func() bool { return v.navCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	// No second reload arrives
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, v.navCount())
	assert.Equal(t, 2, h.rec.crashCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.RenderCrashes))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CrashReloads))
}

func TestNormalTerminationDoesNotReload(t *testing.T) {
	h := newHarness(t, Config{ReloadDelay: 10 * time.Millisecond}, Deps{})
	id := h.add(t, "Closed")
	v := h.view(t, id)

	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusNormal})

	time.Sleep(50 * time.Millisecond)
	_, err := h.reg.Slots(ctx) // flush the loop
	require.NoError(t, err)
	assert.Equal(t, 1, v.navCount())
	assert.Equal(t, 0, h.rec.crashCount())
}

func TestRemoveCancelsPendingReload(t *testing.T) {
	h := newHarness(t, Config{ReloadDelay: 50 * time.Millisecond}, Deps{})
	id := h.add(t, "Doomed")
	v := h.view(t, id)

	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal, ExitCode: 9})
	require.Eventually(t, func() bool { return h.rec.crashCount() == 1 }, time.Second, 5*time.Millisecond)

	td, err := h.reg.Remove(ctx, id)
	require.NoError(t, err)
	require.NoError(t, td.Wait(ctx))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, v.navCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.CrashReloads))
}

func TestStaleEventsAreIgnored(t *testing.T) {
	h := newHarness(t, Config{ReloadDelay: 10 * time.Millisecond}, Deps{})
	id := h.add(t, "Stale")
	v := h.view(t, id)

	td, err := h.reg.Remove(ctx, id)
	require.NoError(t, err)
	require.NoError(t, td.Wait(ctx))

	v.emit(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal})
	_, err = h.reg.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, h.rec.crashCount())
}

func TestViewFailureStartsLocked(t *testing.T) {
	engine := &fakeEngine{err: errors.New("sandbox failure")}
	h := newHarness(t, Config{}, Deps{Engine: engine})

	id, err := h.reg.Add(ctx, "Unlucky")
	require.NoError(t, err)

	info, err := h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)
	assert.False(t, info.Live)

	var initErr *session.ResourceInitError
	require.ErrorAs(t, h.reg.Unlock(ctx, id, ""), &initErr)
	info, err = h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Locked, info.State)

	engine.setErr(nil)
	require.NoError(t, h.reg.Unlock(ctx, id, ""))
	info, err = h.reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Unlocked, info.State)
	assert.True(t, info.Live)
}

func TestActivateTouchesStore(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	a := h.add(t, "A")
	b := h.add(t, "B")

	require.NoError(t, h.reg.Activate(ctx, a))

	accounts, err := h.store.ListAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, a, accounts[0].ID)
	assert.Equal(t, b, accounts[1].ID)
}

func TestCloseReleasesViewsAndRejectsCalls(t *testing.T) {
	h := newHarness(t, Config{}, Deps{})
	id := h.add(t, "Last")
	v := h.view(t, id)

	require.NoError(t, h.reg.Close(ctx))
	require.NoError(t, h.reg.Close(ctx))

	assert.Equal(t, 1, v.disposeCount())
	_, err := h.reg.Add(ctx, "late")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.reg.Slots(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	// Durable state survives
	accounts, err := h.store.ListAccounts()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestSlotIndexMove(t *testing.T) {
	s := newSlotIndex()
	for _, id := range []int64{1, 2, 3, 4} {
		s.append(id)
	}

	require.NoError(t, s.move(3, 0))
	assert.Equal(t, []int64{4, 1, 2, 3}, s.ids())
	require.NoError(t, s.check())

	require.NoError(t, s.move(0, 2))
	assert.Equal(t, []int64{1, 2, 4, 3}, s.ids())
	require.NoError(t, s.check())

	assert.True(t, s.remove(2))
	assert.False(t, s.remove(2))
	assert.Equal(t, []int64{1, 4, 3}, s.ids())
	require.NoError(t, s.check())
}

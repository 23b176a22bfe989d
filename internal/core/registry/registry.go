// Package registry owns every open account session.
//
// A single loop goroutine executes all mutations. Public methods enqueue a
// closure and wait for it; content view events, reload timers and teardown
// results are posted to the same queue, so no two mutations ever interleave.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/credential"
	"github.com/neilberkman/acctabs/internal/core/metrics"
	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/neilberkman/acctabs/internal/core/session"
	"github.com/neilberkman/acctabs/internal/core/storage"
	"go.uber.org/zap"
)

const (
	DefaultMaxSessions = 8
	DefaultTargetURL   = "https://web.whatsapp.com"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	DefaultReloadDelay = 2 * time.Second
)

// Config holds registry policy
type Config struct {
	MaxSessions int
	TargetURL   string
	UserAgent   string
	ReloadDelay time.Duration
	Teardown    storage.Policy
}

// DefaultConfig returns the stock policy
func DefaultConfig() Config {
	return Config{
		MaxSessions: DefaultMaxSessions,
		TargetURL:   DefaultTargetURL,
		UserAgent:   DefaultUserAgent,
		ReloadDelay: DefaultReloadDelay,
		Teardown:    storage.DefaultPolicy,
	}
}

// Store is the durable side of the registry
type Store interface {
	CreateAccount(name string) (*models.Account, error)
	ListAccounts() ([]models.Account, error)
	UpdateZoom(id int64, factor float64) error
	RenameAccount(id int64, name string) error
	SetPasswordDigest(id int64, digest string) error
	DeleteAccount(id int64) (string, error)
	TouchLastActive(id int64) error
}

// Deps are the collaborators of a Registry. Store and Engine are required.
type Deps struct {
	Store     Store
	Engine    contentview.Engine
	Guard     *credential.Guard
	Presenter Presenter
	Labeler   *session.Labeler
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Deleter   *storage.Deleter
}

// SessionInfo is a read-only view of one session
type SessionInfo struct {
	ID          int64
	Name        string
	Label       string
	StoragePath string
	Zoom        float64
	State       session.LockState
	HasPassword bool
	Live        bool
	Slot        int
	LastActive  time.Time
}

type entry struct {
	account models.Account
	res     *session.Resource
	lock    *session.LockMachine
	label   string
	reload  *time.Timer
}

// Registry is the authoritative map from account id to session
type Registry struct {
	cfg       Config
	store     Store
	engine    contentview.Engine
	guard     *credential.Guard
	presenter Presenter
	labeler   *session.Labeler
	logger    *zap.Logger
	metrics   *metrics.Metrics
	deleter   *storage.Deleter

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	// Owned by the loop goroutine
	sessions map[int64]*entry
	slots    *slotIndex
	closing  bool
	bg       sync.WaitGroup
}

// Open loads persisted accounts and starts the registry loop. Only a failure
// to read the store is fatal; sessions whose view cannot be created start Locked.
func Open(ctx context.Context, cfg Config, deps Deps) (*Registry, error) {
	if deps.Store == nil || deps.Engine == nil {
		return nil, errors.New("registry needs a store and a content view engine")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = DefaultTargetURL
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultReloadDelay
	}
	if cfg.Teardown.Attempts <= 0 {
		cfg.Teardown = storage.DefaultPolicy
	}

	r := &Registry{
		cfg:       cfg,
		store:     deps.Store,
		engine:    deps.Engine,
		guard:     deps.Guard,
		presenter: deps.Presenter,
		labeler:   deps.Labeler,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		deleter:   deps.Deleter,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		sessions:  make(map[int64]*entry),
		slots:     newSlotIndex(),
	}
	if r.guard == nil {
		r.guard = credential.Default()
	}
	if r.presenter == nil {
		r.presenter = NopPresenter{}
	}
	if r.labeler == nil {
		r.labeler, _ = session.NewLabeler("")
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.deleter == nil {
		r.deleter = storage.NewDeleter(cfg.Teardown)
	}

	go r.run()

	if err := r.do(ctx, r.load); err != nil {
		_ = r.Close(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	accounts, err := r.store.ListAccounts()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	if len(accounts) > r.cfg.MaxSessions {
		r.logger.Warn("more accounts than session slots, opening the most recent",
			zap.Int("accounts", len(accounts)),
			zap.Int("max_sessions", r.cfg.MaxSessions))
		accounts = accounts[:r.cfg.MaxSessions]
	}

	for _, acct := range accounts {
		e := r.attach(acct)
		r.presenter.OnSessionAdded(acct.ID, e.label)
		r.presenter.OnLockStateChanged(acct.ID, e.lock.State())
		if e.lock.State() == session.Unlocked {
			r.bringUp(e)
		}
	}
	r.presenter.OnSlotOrderChanged(r.slots.ids())
	r.updateGauges()

	r.logger.Info("registry loaded", zap.Int("sessions", len(r.sessions)))
	return nil
}

// run is the control loop
func (r *Registry) run() {
	defer close(r.done)
	for {
		select {
		case <-r.wake:
			r.drain()
		case <-r.quit:
			r.drain()
			return
		}
	}
}

func (r *Registry) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		fn := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()
		fn()
	}
}

// post enqueues fn for the loop. It never blocks and reports false once the
// registry is closed.
func (r *Registry) post(fn func()) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// do runs fn on the loop and waits for its result. If ctx ends first the
// operation may still complete later.
func (r *Registry) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if !r.post(func() { errc <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	}
}

// exec is do for operations that are refused once Close has started
func (r *Registry) exec(ctx context.Context, fn func() error) error {
	return r.do(ctx, func() error {
		if r.closing {
			return ErrClosed
		}
		return fn()
	})
}

func (r *Registry) lookup(id int64) (*entry, error) {
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return e, nil
}

// attach builds the runtime triple for acct and gives it the next slot
func (r *Registry) attach(acct models.Account) *entry {
	id := acct.ID
	e := &entry{
		account: acct,
		lock:    session.NewLockMachine(r.guard, acct.PasswordDigest),
	}
	e.res = session.NewResource(acct, r.engine, r.store, r.cfg.UserAgent, func(gen uint64, ev contentview.Event) {
		r.post(func() { r.handleEvent(id, gen, ev) })
	})
	e.label = r.labeler.Label(acct, e.lock.State() != session.Unlocked)

	r.sessions[id] = e
	r.slots.append(id)
	return e
}

// enter brings the content view up for an unlocked session
func (r *Registry) enter(e *entry) error {
	if e.res.Live() {
		return e.res.Show()
	}
	if err := e.res.Materialize(); err != nil {
		return err
	}
	if err := e.res.Navigate(r.cfg.TargetURL); err != nil {
		_ = e.res.Release()
		return &session.ResourceInitError{AccountID: e.account.ID, Err: err}
	}
	return nil
}

// bringUp starts the view of a session that is Unlocked from the start.
// On failure the session falls back to Locked so a later unlock retries.
func (r *Registry) bringUp(e *entry) {
	if err := r.enter(e); err != nil {
		e.lock.Lock()
		r.logger.Error("content view could not be created",
			zap.Int64("account_id", e.account.ID),
			zap.Error(err))
		r.presenter.OnLockStateChanged(e.account.ID, session.Locked)
		r.relabel(e)
	}
}

func (r *Registry) relabel(e *entry) {
	label := r.labeler.Label(e.account, e.lock.State() != session.Unlocked)
	if label == e.label {
		return
	}
	e.label = label
	r.presenter.OnLabelChanged(e.account.ID, label)
}

func (r *Registry) updateGauges() {
	locked := 0
	for _, e := range r.sessions {
		if e.lock.State() != session.Unlocked {
			locked++
		}
	}
	r.metrics.SetSessions(len(r.sessions), locked)
}

func stopReload(e *entry) {
	if e.reload != nil {
		e.reload.Stop()
		e.reload = nil
	}
}

func (r *Registry) info(e *entry) SessionInfo {
	slot, _ := r.slots.of(e.account.ID)
	return SessionInfo{
		ID:          e.account.ID,
		Name:        e.account.Name,
		Label:       e.label,
		StoragePath: e.account.StoragePath,
		Zoom:        e.res.Zoom(),
		State:       e.lock.State(),
		HasPassword: e.account.HasPassword(),
		Live:        e.res.Live(),
		Slot:        slot,
		LastActive:  e.account.LastActiveAt,
	}
}

// Close releases every content view, waits for pending storage teardowns
// and stops the loop. Durable state is left untouched.
func (r *Registry) Close(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		err = r.do(ctx, func() error {
			r.closing = true
			for _, id := range r.slots.ids() {
				e := r.sessions[id]
				stopReload(e)
				if relErr := e.res.Release(); relErr != nil {
					r.logger.Warn("failed to release content view",
						zap.Int64("account_id", id),
						zap.Error(relErr))
				}
			}
			return nil
		})

		// Teardown goroutines post their results before the loop stops
		r.bg.Wait()

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.quit)
		<-r.done
	})
	return err
}

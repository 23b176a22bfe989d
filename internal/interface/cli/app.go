package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/neilberkman/acctabs/internal/core/config"
	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/credential"
	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/instancelock"
	"github.com/neilberkman/acctabs/internal/core/logging"
	"github.com/neilberkman/acctabs/internal/core/metrics"
	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/neilberkman/acctabs/internal/core/session"
	"github.com/neilberkman/acctabs/internal/core/storage"
	"go.uber.org/zap"
)

// app bundles what every command that mutates accounts needs
type app struct {
	cfg      *config.Config
	database *db.DB
	lock     *instancelock.Lock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// openApp takes the instance lock, then opens the logger and the store.
// Only the interactive UI keeps warnings off the terminal.
func openApp(cfg *config.Config, interactive bool) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock, err := instancelock.Acquire(cfg.DataDir)
	if err != nil {
		if errors.Is(err, instancelock.ErrLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}

	logCfg := logging.DefaultConfig(cfg.LogPath())
	logCfg.Level = cfg.LogLevel
	logCfg.Development = cfg.LogDevelopment
	if !interactive {
		logCfg.StderrLevel = "warn"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	database, err := db.New(cfg.DBPath())
	if err != nil {
		_ = logger.Sync()
		_ = lock.Release()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &app{
		cfg:      cfg,
		database: database,
		lock:     lock,
		logger:   logger,
		metrics:  metrics.New(),
	}, nil
}

func (a *app) Close() {
	_ = a.database.Close()
	_ = a.logger.Sync()
	_ = a.lock.Release()
}

func (a *app) deleter() *storage.Deleter {
	return storage.NewDeleter(a.cfg.TeardownPolicy())
}

// openRegistry wires the registry to engine and presenter
func (a *app) openRegistry(ctx context.Context, engine contentview.Engine, presenter registry.Presenter) (*registry.Registry, error) {
	guard, err := credential.New(a.cfg.DigestScheme)
	if err != nil {
		return nil, err
	}
	labeler, err := session.NewLabeler(a.cfg.LabelTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid label template: %w", err)
	}

	reg, err := registry.Open(ctx, a.cfg.RegistryConfig(), registry.Deps{
		Store:     a.database,
		Engine:    engine,
		Guard:     guard,
		Presenter: presenter,
		Labeler:   labeler,
		Logger:    a.logger,
		Metrics:   a.metrics,
		Deleter:   a.deleter(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return reg, nil
}

// withRegistry runs fn against a registry that renders nothing, for one-shot
// commands. The UI must not be running, the instance lock guarantees that.
func withRegistry(ctx context.Context, fn func(reg *registry.Registry, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.openRegistry(ctx, &contentview.Headless{}, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(context.Background()); err != nil {
			a.logger.Warn("registry close failed", zap.Error(err))
		}
	}()

	return fn(reg, a)
}

// withStore opens the store read-only in spirit, without the instance lock
func withStore(fn func(database *db.DB, cfg *config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := db.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()
	return fn(database, cfg)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}

// explain turns registry errors into something a user can act on
func explain(id int64, err error) error {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		return fmt.Errorf("account %d is not open (unknown id, or beyond max_sessions)", id)
	case errors.Is(err, credential.ErrCredentialRejected):
		return fmt.Errorf("wrong password for account %d", id)
	default:
		return err
	}
}

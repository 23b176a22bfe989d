// Package metrics holds the Prometheus collectors for the session registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Session metrics
	SessionsOpen   prometheus.Gauge
	SessionsLocked prometheus.Gauge

	// Account lifecycle
	AccountsAdded      prometheus.Counter
	AccountsRemoved    prometheus.Counter
	TeardownIncomplete prometheus.Counter

	// Content view health
	RenderCrashes prometheus.Counter
	CrashReloads  prometheus.Counter

	// Lock
	UnlockRejected prometheus.Counter

	registry *prometheus.Registry
}

// New creates collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "acctabs_sessions_open",
			Help: "Number of sessions in the registry",
		}),
		SessionsLocked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "acctabs_sessions_locked",
			Help: "Number of sessions currently locked",
		}),
		AccountsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "acctabs_accounts_added_total",
			Help: "Total number of accounts added",
		}),
		AccountsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "acctabs_accounts_removed_total",
			Help: "Total number of accounts removed",
		}),
		TeardownIncomplete: factory.NewCounter(prometheus.CounterOpts{
			Name: "acctabs_teardown_incomplete_total",
			Help: "Storage directories left behind after removal retries ran out",
		}),
		RenderCrashes: factory.NewCounter(prometheus.CounterOpts{
			Name: "acctabs_render_crashes_total",
			Help: "Abnormal render process terminations",
		}),
		CrashReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "acctabs_crash_reloads_total",
			Help: "Automatic reloads issued after a render crash",
		}),
		UnlockRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "acctabs_unlock_rejected_total",
			Help: "Unlock and password-change attempts with a wrong secret",
		}),
	}
}

// Registry returns the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetSessions updates both session gauges
func (m *Metrics) SetSessions(open, locked int) {
	m.SessionsOpen.Set(float64(open))
	m.SessionsLocked.Set(float64(locked))
}

// Handler serves the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package shutdown

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Wall time of the whole graceful shutdown",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "component_shutdown_duration_seconds",
		Help:    "Wall time to stop one component",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Components that returned an error while stopping",
	}, []string{"component"})
)

// ShutdownFunc stops one component. It should return once ctx expires.
type ShutdownFunc func(context.Context) error

type step struct {
	name string
	fn   ShutdownFunc
}

func (s step) stop(ctx context.Context, logger *zap.Logger) error {
	began := time.Now()
	err := s.fn(ctx)
	took := time.Since(began)
	componentShutdownDuration.WithLabelValues(s.name).Observe(took.Seconds())

	if err != nil {
		shutdownErrors.WithLabelValues(s.name).Inc()
		logger.Error("Component shutdown failed",
			zap.String("component", s.name),
			zap.Duration("elapsed", took),
			zap.Error(err),
		)
		return err
	}
	logger.Info("Component stopped", zap.String("component", s.name), zap.Duration("elapsed", took))
	return nil
}

// Manager stops registered components one at a time, last registered first.
// Register dependencies (database, brokers) before the servers using them.
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []step
}

func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

func (m *Manager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	m.steps = append(m.steps, step{name: name, fn: fn})
	m.mu.Unlock()
}

// RegisterHTTPServer registers anything with an http.Server style Shutdown.
func (m *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	m.Register(name, server.Shutdown)
}

// RegisterCloser registers an io.Closer.
func (m *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	m.Register(name, func(context.Context) error { return closer.Close() })
}

func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT/SIGTERM or until ctx is done, then
// runs Shutdown.
func (m *Manager) WaitForShutdown(ctx context.Context) map[string]error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	<-sigCtx.Done()
	stop()

	if ctx.Err() != nil {
		m.logger.Info("Shutdown requested", zap.Error(context.Cause(ctx)))
	} else {
		m.logger.Info("Shutdown signal received", zap.Duration("timeout", m.timeout))
	}
	return m.Shutdown()
}

// Shutdown stops every component and returns failures keyed by component
// name. A failing or slow component does not stop later ones; once the
// timeout passes they get an already expired context.
func (m *Manager) Shutdown() map[string]error {
	m.mu.Lock()
	steps := append([]step(nil), m.steps...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	began := time.Now()
	errs := make(map[string]error)
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].stop(ctx, m.logger); err != nil {
			errs[steps[i].name] = err
		}
	}

	took := time.Since(began)
	shutdownDuration.Observe(took.Seconds())
	m.logger.Info("Graceful shutdown finished",
		zap.Int("components", len(steps)),
		zap.Int("failed", len(errs)),
		zap.Duration("elapsed", took),
	)
	return errs
}

package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chesslens/chesslens/internal/logging"
)

// Manager coordinates graceful shutdown of application components.
// Components are shut down in reverse order of registration.
type Manager struct {
	logger logging.ContextLogger

	mu    sync.Mutex
	funcs []namedFunc
	once  sync.Once
	done  chan struct{}
}

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

// NewManager creates a shutdown manager.
func NewManager(logger logging.ContextLogger) *Manager {
	return &Manager{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Register adds a shutdown function. Functions run LIFO.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, namedFunc{name: name, fn: fn})
}

// HandleSignals triggers shutdown on SIGINT/SIGTERM.
func (m *Manager) HandleSignals(timeout time.Duration) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		m.logger.Info("received shutdown signal", "signal", sig.String())
		m.Shutdown(timeout)
	}()
}

// Shutdown runs all registered functions in reverse order within timeout.
// Safe to call more than once; only the first call runs.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		m.mu.Lock()
		funcs := make([]namedFunc, len(m.funcs))
		copy(funcs, m.funcs)
		m.mu.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			nf := funcs[i]
			start := time.Now()
			if err := nf.fn(ctx); err != nil {
				m.logger.Error("component shutdown failed",
					"component", nf.name,
					"error", err,
					"elapsed", time.Since(start))
			} else {
				m.logger.Debug("component shut down",
					"component", nf.name,
					"elapsed", time.Since(start))
			}

			if ctx.Err() != nil {
				m.logger.Error("shutdown timed out", "timeout", timeout)
				break
			}
		}

		close(m.done)
	})
}

// Done returns a channel closed when shutdown completes.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until shutdown completes.
func (m *Manager) Wait() {
	<-m.done
}

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chesslens/chesslens/internal/logging"
	"github.com/chesslens/chesslens/internal/retry"
)

// SupervisorConfig configures engine lifecycle management.
type SupervisorConfig struct {
	BinaryPath       string
	WorkingDir       string
	HandshakeTimeout time.Duration
	GraceWindow      time.Duration

	// Options are applied via setoption after every successful handshake.
	Options map[string]string

	// AutoRestart relaunches the engine after a crash. Off by default:
	// a crashed engine is reloaded only by explicit user action.
	AutoRestart bool
}

// Monitor receives engine lifecycle events. *metrics.Collector implements it.
type Monitor interface {
	RecordEngineStatus(running bool)
	RecordEngineReload()
	RecordEngineCrash()
}

// Supervisor owns the engine process and its UCI session. Reload is the
// user-initiated restart path; crashes trigger a relaunch only when
// AutoRestart is set.
type Supervisor struct {
	cfg     SupervisorConfig
	handler Handler
	logger  logging.ContextLogger
	monitor Monitor
	retry   *retry.Backoff

	// OnSession is invoked with every freshly initialized session, before
	// Start or Reload returns. Consumers rebind their analysis pipeline here.
	OnSession func(*Session)

	mu      sync.Mutex
	proc    *Process
	session *Session
}

// NewSupervisor creates a supervisor. monitor may be nil.
func NewSupervisor(cfg SupervisorConfig, handler Handler, logger logging.ContextLogger, monitor Monitor) *Supervisor {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 5 * time.Second
	}

	s := &Supervisor{
		cfg:     cfg,
		logger:  logger,
		monitor: monitor,
		retry: retry.New(retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		}),
	}
	// The supervisor sits between session and consumer so it can observe
	// crashes for the restart policy.
	s.handler = handler
	return s
}

// Start launches the engine and completes the UCI handshake.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.session != nil && s.session.State() != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	s.mu.Unlock()

	return s.launch(ctx)
}

// Session returns the current session, or nil before Start.
func (s *Supervisor) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Running reports whether the engine process is alive and the session usable.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && s.proc.Running() && s.session != nil && s.session.State() != StateStopped
}

// Responsive reports whether the engine answers an isready probe within
// the timeout. Unlike Running, this exercises the protocol, not just the
// process.
func (s *Supervisor) Responsive(timeout time.Duration) bool {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return false
	}
	return session.WaitReady(timeout) == nil
}

// Reload tears the engine down and relaunches it with backoff. This is the
// explicit recovery path after a crash or a stuck engine.
func (s *Supervisor) Reload(ctx context.Context) error {
	s.logger.Info("reloading engine")
	s.stopLocked()

	if s.monitor != nil {
		s.monitor.RecordEngineReload()
	}

	return s.retry.Run(ctx, func(ctx context.Context) error {
		return s.launch(ctx)
	})
}

// Stop terminates the engine gracefully. Idempotent.
func (s *Supervisor) Stop() {
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	s.mu.Lock()
	proc, session := s.proc, s.session
	s.proc, s.session = nil, nil
	s.mu.Unlock()

	if session != nil {
		session.Close()
	}
	if proc != nil {
		_ = proc.Terminate(s.cfg.GraceWindow)
	}
	if s.monitor != nil {
		s.monitor.RecordEngineStatus(false)
	}
}

func (s *Supervisor) launch(ctx context.Context) error {
	proc, err := StartProcess(s.cfg.BinaryPath, s.cfg.WorkingDir, s.logger)
	if err != nil {
		return err
	}

	session := NewSession(proc, &supervisedHandler{sup: s}, s.logger)
	if lm, ok := s.monitor.(LineMonitor); ok {
		session.SetLineMonitor(lm)
	}

	initCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	if err := session.Init(initCtx); err != nil {
		_ = proc.Terminate(s.cfg.GraceWindow)
		return err
	}

	names := make([]string, 0, len(s.cfg.Options))
	for name := range s.cfg.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := session.SetOption(name, s.cfg.Options[name]); err != nil {
			s.logger.Warn("failed to set engine option", "option", name, "error", err)
		}
	}

	s.mu.Lock()
	s.proc = proc
	s.session = session
	s.mu.Unlock()

	if s.monitor != nil {
		s.monitor.RecordEngineStatus(true)
	}
	if s.OnSession != nil {
		s.OnSession(session)
	}
	return nil
}

// supervisedHandler forwards session output to the consumer and lets the
// supervisor apply its restart policy on crash.
type supervisedHandler struct {
	sup *Supervisor
}

func (h *supervisedHandler) HandleInfo(info Info) {
	if h.sup.handler != nil {
		h.sup.handler.HandleInfo(info)
	}
}

func (h *supervisedHandler) HandleBestMove(bm BestMove) {
	if h.sup.handler != nil {
		h.sup.handler.HandleBestMove(bm)
	}
}

func (h *supervisedHandler) HandleCrash(err error) {
	if h.sup.monitor != nil {
		h.sup.monitor.RecordEngineCrash()
		h.sup.monitor.RecordEngineStatus(false)
	}
	if h.sup.handler != nil {
		h.sup.handler.HandleCrash(err)
	}
	if h.sup.cfg.AutoRestart {
		go func() {
			if err := h.sup.Reload(context.Background()); err != nil {
				h.sup.logger.Error("auto-restart failed", "error", err)
			}
		}()
	}
}

// SetHandler installs the consumer of session output. Must be called
// before Start.
func (s *Supervisor) SetHandler(handler Handler) {
	s.handler = handler
}

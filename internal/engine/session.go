package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chesslens/chesslens/internal/logging"
)

// State is the UCI session lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateHandshaking
	StateReady
	StateAnalyzing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateAnalyzing:
		return "analyzing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// transport is the line-oriented I/O a session speaks UCI over. *Process
// implements it; tests substitute an in-memory fake.
type transport interface {
	WriteLine(line string) error
	ReadLine() (string, error)
}

// LineMonitor counts processed protocol lines by kind. Optional;
// *metrics.Collector implements it.
type LineMonitor interface {
	RecordProtocolLine(kind string)
}

// Handler consumes the streamed output of a session. All methods are
// invoked from the session's background reader goroutine.
type Handler interface {
	// HandleInfo receives one parsed info record of the live search.
	HandleInfo(info Info)

	// HandleBestMove receives the search-terminating bestmove.
	HandleBestMove(bm BestMove)

	// HandleCrash is called once when the process dies unexpectedly.
	HandleCrash(err error)
}

// Limits bound a single search. Exactly one of Depth, MoveTimeMS or
// Infinite should be set; Depth wins when several are.
type Limits struct {
	Depth      int
	MoveTimeMS int
	Infinite   bool
}

func (l Limits) goCommand() string {
	switch {
	case l.Depth > 0:
		return fmt.Sprintf("go depth %d", l.Depth)
	case l.MoveTimeMS > 0:
		return fmt.Sprintf("go movetime %d", l.MoveTimeMS)
	default:
		return "go infinite"
	}
}

// String returns a stable identifier for the limits, used as a cache key
// component.
func (l Limits) String() string {
	return l.goCommand()
}

// StartPos is the position argument selecting the standard initial position.
const StartPos = "startpos"

// Session implements the UCI command/response protocol atop a transport.
//
// A dedicated background goroutine started by Init is the only reader of
// engine output; it feeds the parser and dispatches records to the
// Handler. All exported methods are safe for concurrent use and
// non-blocking except Init.
type Session struct {
	proc    transport
	logger  logging.ContextLogger
	handler Handler
	lines   LineMonitor

	mu       sync.Mutex
	state    State
	closing  bool
	id       ID
	options  map[string]Option
	uciokCh  chan struct{}
	readyCh  chan struct{}
	crashErr error
}

// NewSession creates a session over the given transport. The handler
// receives streamed search output and crash notifications.
func NewSession(proc transport, handler Handler, logger logging.ContextLogger) *Session {
	return &Session{
		proc:    proc,
		logger:  logger,
		handler: handler,
		state:   StateUninitialized,
		options: make(map[string]Option),
		uciokCh: make(chan struct{}),
		readyCh: make(chan struct{}),
	}
}

// SetLineMonitor installs a protocol line counter. Must be called before Init.
func (s *Session) SetLineMonitor(m LineMonitor) {
	s.lines = m
}

func (s *Session) recordLine(kind string) {
	if s.lines != nil {
		s.lines.RecordProtocolLine(kind)
	}
}

// Init performs the UCI handshake: uci → (id/option)* → uciok, then
// isready → readyok. It starts the background reader and fails with
// ErrProtocol when the engine does not complete the handshake within the
// context deadline or closes its stream first.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: init in state %s", ErrProtocol, state)
	}
	s.state = StateHandshaking
	s.mu.Unlock()

	go s.readLoop()

	if err := s.proc.WriteLine("uci"); err != nil {
		s.close(err)
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	select {
	case <-s.uciokCh:
	case <-ctx.Done():
		s.close(ctx.Err())
		return fmt.Errorf("%w: no uciok: %v", ErrProtocol, ctx.Err())
	}

	if err := s.crashed(); err != nil {
		return fmt.Errorf("%w: engine closed stream during handshake", ErrProtocol)
	}

	if err := s.proc.WriteLine("isready"); err != nil {
		s.close(err)
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	select {
	case <-s.readyCh:
	case <-ctx.Done():
		s.close(ctx.Err())
		return fmt.Errorf("%w: no readyok: %v", ErrProtocol, ctx.Err())
	}

	if err := s.crashed(); err != nil {
		return fmt.Errorf("%w: engine closed stream during handshake", ErrProtocol)
	}

	s.mu.Lock()
	s.state = StateReady
	id := s.id
	s.mu.Unlock()

	s.logger.Info("uci handshake complete", "name", id.Name, "author", id.Author)
	return nil
}

// ID returns the engine identity from the handshake.
func (s *Session) ID() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Options returns the engine options declared during the handshake.
func (s *Session) Options() map[string]Option {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := make(map[string]Option, len(s.options))
	for k, v := range s.options {
		opts[k] = v
	}
	return opts
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetOption sends a setoption command. Only legal while Ready.
func (s *Session) SetOption(name, value string) error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateReady:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("setoption in state %s", state)
	}
	s.mu.Unlock()

	return s.proc.WriteLine(fmt.Sprintf("setoption name %s value %s", name, value))
}

// Analyze issues a position + go command pair and transitions to
// Analyzing without waiting for output. Parsed info records stream to the
// handler until the terminating bestmove returns the session to Ready.
func (s *Session) Analyze(position string, limits Limits) error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateAnalyzing:
		s.mu.Unlock()
		return ErrSearchInProgress
	case StateReady:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("analyze in state %s", state)
	}
	s.state = StateAnalyzing
	s.mu.Unlock()

	var posCmd string
	if position == StartPos || strings.HasPrefix(position, StartPos+" ") {
		posCmd = "position " + position
	} else {
		posCmd = "position fen " + position
	}

	if err := s.proc.WriteLine(posCmd); err != nil {
		s.setState(StateStopped)
		return err
	}
	if err := s.proc.WriteLine(limits.goCommand()); err != nil {
		s.setState(StateStopped)
		return err
	}
	return nil
}

// StopSearch asks the engine to end the live search. The engine answers
// with the usual bestmove, which flows to the handler.
func (s *Session) StopSearch() error {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateAnalyzing:
	default:
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.proc.WriteLine("stop")
}

// Close marks the session Stopped. The owning supervisor terminates the
// underlying process; a subsequent end-of-stream is then not a crash.
func (s *Session) Close() {
	s.mu.Lock()
	s.closing = true
	s.state = StateStopped
	s.mu.Unlock()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) crashed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crashErr
}

func (s *Session) close(err error) {
	s.mu.Lock()
	s.closing = true
	s.state = StateStopped
	if s.crashErr == nil {
		s.crashErr = err
	}
	s.mu.Unlock()
}

// readLoop is the sole reader of engine output.
func (s *Session) readLoop() {
	for {
		line, err := s.proc.ReadLine()
		if err != nil {
			s.handleEndOfStream(err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.dispatch(line)
	}
}

func (s *Session) dispatch(line string) {
	switch {
	case line == "uciok":
		s.recordLine("uciok")
		s.signalOnce(s.uciokCh)

	case line == "readyok":
		s.recordLine("readyok")
		s.mu.Lock()
		ch := s.readyCh
		s.mu.Unlock()
		s.signalOnce(ch)

	case strings.HasPrefix(line, "id "):
		s.recordLine("id")
		field, value, ok := parseID(line)
		if !ok {
			s.logger.Debug("skipping malformed id line", "line", line)
			return
		}
		s.mu.Lock()
		if field == "name" {
			s.id.Name = value
		} else {
			s.id.Author = value
		}
		s.mu.Unlock()

	case strings.HasPrefix(line, "option "):
		s.recordLine("option")
		opt, ok := parseOption(line)
		if !ok {
			s.logger.Debug("skipping malformed option line", "line", line)
			return
		}
		s.mu.Lock()
		s.options[opt.Name] = opt
		s.mu.Unlock()

	case strings.HasPrefix(line, "info "):
		s.recordLine("info")
		s.mu.Lock()
		analyzing := s.state == StateAnalyzing
		s.mu.Unlock()
		if !analyzing {
			return
		}
		info, ok := parseInfo(line)
		if !ok {
			// Incomplete update (no pv/score yet), not an error.
			return
		}
		s.handler.HandleInfo(info)

	case strings.HasPrefix(line, "bestmove"):
		s.recordLine("bestmove")
		bm, ok := parseBestMove(line)
		if !ok {
			s.logger.Warn("skipping malformed bestmove line", "line", line)
			return
		}
		s.mu.Lock()
		if s.state == StateAnalyzing {
			s.state = StateReady
		}
		s.mu.Unlock()
		s.handler.HandleBestMove(bm)

	default:
		s.recordLine("other")
		s.logger.Debug("ignoring engine output", "line", line)
	}
}

// handleEndOfStream transitions the session to Stopped. An end-of-stream
// that was not requested via Close surfaces as an engine crash.
func (s *Session) handleEndOfStream(err error) {
	s.mu.Lock()
	wasClosing := s.closing
	s.closing = true
	s.state = StateStopped
	if s.crashErr == nil {
		if err == io.EOF {
			s.crashErr = ErrEngineCrashed
		} else {
			s.crashErr = fmt.Errorf("%w: %v", ErrEngineCrashed, err)
		}
	}
	crashErr := s.crashErr
	readyCh := s.readyCh
	s.mu.Unlock()

	// Unblock a handshake stuck waiting for uciok/readyok.
	s.signalOnce(s.uciokCh)
	s.signalOnce(readyCh)

	if wasClosing {
		s.logger.Debug("engine stream closed")
		return
	}

	s.logger.Error("engine process died", "error", err)
	s.handler.HandleCrash(crashErr)
}

func (s *Session) signalOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// WaitReady sends isready and blocks until readyok or the timeout. Used
// as a liveness probe between searches.
func (s *Session) WaitReady(timeout time.Duration) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.readyCh = make(chan struct{})
	ch := s.readyCh
	s.mu.Unlock()

	if err := s.proc.WriteLine("isready"); err != nil {
		return err
	}

	select {
	case <-ch:
		return s.crashed()
	case <-time.After(timeout):
		return fmt.Errorf("%w: no readyok within %s", ErrProtocol, timeout)
	}
}

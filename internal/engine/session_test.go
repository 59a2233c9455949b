package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesslens/chesslens/internal/logging"
)

// fakeTransport is an in-memory transport. Tests push engine output into
// lines; closing lines simulates the process dying.
type fakeTransport struct {
	mu      sync.Mutex
	written []string
	onWrite func(line string)

	lines chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{lines: make(chan string, 64)}
}

func (f *fakeTransport) WriteLine(line string) error {
	f.mu.Lock()
	f.written = append(f.written, line)
	onWrite := f.onWrite
	f.mu.Unlock()

	if onWrite != nil {
		onWrite(line)
	}
	return nil
}

func (f *fakeTransport) ReadLine() (string, error) {
	line, ok := <-f.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (f *fakeTransport) send(lines ...string) {
	for _, line := range lines {
		f.lines <- line
	}
}

func (f *fakeTransport) die() {
	close(f.lines)
}

func (f *fakeTransport) writtenLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

// recordingHandler captures dispatched records and signals arrivals.
type recordingHandler struct {
	mu        sync.Mutex
	infos     []Info
	bestmoves []BestMove
	crashes   []error

	infoCh     chan Info
	bestmoveCh chan BestMove
	crashCh    chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		infoCh:     make(chan Info, 64),
		bestmoveCh: make(chan BestMove, 8),
		crashCh:    make(chan error, 8),
	}
}

func (h *recordingHandler) HandleInfo(info Info) {
	h.mu.Lock()
	h.infos = append(h.infos, info)
	h.mu.Unlock()
	h.infoCh <- info
}

func (h *recordingHandler) HandleBestMove(bm BestMove) {
	h.mu.Lock()
	h.bestmoves = append(h.bestmoves, bm)
	h.mu.Unlock()
	h.bestmoveCh <- bm
}

func (h *recordingHandler) HandleCrash(err error) {
	h.mu.Lock()
	h.crashes = append(h.crashes, err)
	h.mu.Unlock()
	h.crashCh <- err
}

func testLogger() logging.ContextLogger {
	return logging.NewLogger("[test] ", "error")
}

// startHandshaked returns a session past the uci/isready handshake.
func startHandshaked(t *testing.T) (*Session, *fakeTransport, *recordingHandler) {
	t.Helper()

	ft := newFakeTransport()
	handler := newRecordingHandler()
	ft.send(
		"id name Stockfish 16",
		"id author The Stockfish developers",
		"option name MultiPV type spin default 1 min 1 max 500",
		"option name Hash type spin default 16 min 1 max 33554432",
		"uciok",
		"readyok",
	)

	sess := NewSession(ft, handler, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Init(ctx))

	return sess, ft, handler
}

func TestSessionHandshake(t *testing.T) {
	sess, ft, _ := startHandshaked(t)

	assert.Equal(t, StateReady, sess.State())
	assert.Equal(t, ID{Name: "Stockfish 16", Author: "The Stockfish developers"}, sess.ID())

	opts := sess.Options()
	require.Contains(t, opts, "MultiPV")
	assert.Equal(t, 500, opts["MultiPV"].Max)
	assert.Contains(t, opts, "Hash")

	written := ft.writtenLines()
	require.Len(t, written, 2)
	assert.Equal(t, "uci", written[0])
	assert.Equal(t, "isready", written[1])
}

func TestSessionHandshakeTimeout(t *testing.T) {
	ft := newFakeTransport()
	sess := NewSession(ft, newRecordingHandler(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sess.Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, StateStopped, sess.State())
}

func TestSessionHandshakeEOF(t *testing.T) {
	ft := newFakeTransport()
	ft.die()
	sess := NewSession(ft, newRecordingHandler(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sess.Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestSessionDoubleInit(t *testing.T) {
	sess, _, _ := startHandshaked(t)

	err := sess.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestSessionAnalyzeStreamsInfoUntilBestmove(t *testing.T) {
	sess, ft, handler := startHandshaked(t)

	require.NoError(t, sess.Analyze(StartPos, Limits{Depth: 10}))
	assert.Equal(t, StateAnalyzing, sess.State())

	written := ft.writtenLines()
	require.Len(t, written, 4)
	assert.Equal(t, "position startpos", written[2])
	assert.Equal(t, "go depth 10", written[3])

	ft.send(
		"info depth 1 multipv 1 score cp 20 nodes 20 pv e2e4",
		"info depth 2 multipv 1 score cp 34 nodes 85 pv e2e4 e7e5",
		"bestmove e2e4 ponder e7e5",
	)

	var infos []Info
	for len(infos) < 2 {
		select {
		case info := <-handler.infoCh:
			infos = append(infos, info)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for info records")
		}
	}
	assert.Equal(t, []string{"e2e4"}, infos[0].PV)
	assert.Equal(t, 34, infos[1].Score.CP)

	select {
	case bm := <-handler.bestmoveCh:
		assert.Equal(t, "e2e4", bm.Move)
		assert.Equal(t, "e7e5", bm.Ponder)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bestmove")
	}

	assert.Eventually(t, func() bool {
		return sess.State() == StateReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionAnalyzeFENPosition(t *testing.T) {
	sess, ft, _ := startHandshaked(t)

	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	require.NoError(t, sess.Analyze(fen, Limits{MoveTimeMS: 500}))

	written := ft.writtenLines()
	require.Len(t, written, 4)
	assert.Equal(t, "position fen "+fen, written[2])
	assert.Equal(t, "go movetime 500", written[3])
}

func TestSessionRejectsOverlappingSearch(t *testing.T) {
	sess, _, _ := startHandshaked(t)

	require.NoError(t, sess.Analyze(StartPos, Limits{Infinite: true}))
	err := sess.Analyze(StartPos, Limits{Infinite: true})
	assert.ErrorIs(t, err, ErrSearchInProgress)
}

func TestSessionStopSearch(t *testing.T) {
	sess, ft, handler := startHandshaked(t)

	require.NoError(t, sess.Analyze(StartPos, Limits{Infinite: true}))
	require.NoError(t, sess.StopSearch())

	written := ft.writtenLines()
	assert.Equal(t, "stop", written[len(written)-1])

	// Engine answers the stop with the usual bestmove.
	ft.send("bestmove e2e4")
	select {
	case bm := <-handler.bestmoveCh:
		assert.Equal(t, "e2e4", bm.Move)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bestmove after stop")
	}
}

func TestSessionStopWhenIdleIsNoop(t *testing.T) {
	sess, ft, _ := startHandshaked(t)

	require.NoError(t, sess.StopSearch())
	written := ft.writtenLines()
	assert.NotContains(t, written, "stop")
}

func TestSessionInfoIgnoredWhenNotAnalyzing(t *testing.T) {
	sess, ft, handler := startHandshaked(t)

	// Stray info while Ready must not reach the handler.
	ft.send("info depth 5 multipv 1 score cp 10 pv e2e4")

	// WaitReady's readyok is queued behind the stray line, so its return
	// proves the line was consumed while the session was still Ready.
	ft.mu.Lock()
	ft.onWrite = func(line string) {
		if line == "isready" {
			ft.send("readyok")
		}
	}
	ft.mu.Unlock()
	require.NoError(t, sess.WaitReady(2*time.Second))

	require.NoError(t, sess.Analyze(StartPos, Limits{Depth: 5}))
	ft.send("bestmove e2e4")

	select {
	case <-handler.bestmoveCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bestmove")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Empty(t, handler.infos)
}

func TestSessionCrashMidSearch(t *testing.T) {
	sess, ft, handler := startHandshaked(t)

	require.NoError(t, sess.Analyze(StartPos, Limits{Infinite: true}))
	ft.die()

	select {
	case err := <-handler.crashCh:
		assert.ErrorIs(t, err, ErrEngineCrashed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for crash notification")
	}

	assert.Equal(t, StateStopped, sess.State())

	err := sess.Analyze(StartPos, Limits{Depth: 5})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, sess.StopSearch(), ErrSessionClosed)
	assert.ErrorIs(t, sess.SetOption("MultiPV", "3"), ErrSessionClosed)
}

func TestSessionCloseSuppressesCrash(t *testing.T) {
	sess, ft, handler := startHandshaked(t)

	sess.Close()
	ft.die()

	select {
	case err := <-handler.crashCh:
		t.Fatalf("unexpected crash notification after Close: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	assert.Equal(t, StateStopped, sess.State())
}

func TestSessionSetOption(t *testing.T) {
	sess, ft, _ := startHandshaked(t)

	require.NoError(t, sess.SetOption("MultiPV", "3"))
	written := ft.writtenLines()
	assert.Equal(t, "setoption name MultiPV value 3", written[len(written)-1])

	// Illegal mid-search.
	require.NoError(t, sess.Analyze(StartPos, Limits{Infinite: true}))
	assert.Error(t, sess.SetOption("Hash", "256"))
}

func TestSessionWaitReady(t *testing.T) {
	sess, ft, _ := startHandshaked(t)

	ft.mu.Lock()
	ft.onWrite = func(line string) {
		if line == "isready" {
			ft.send("readyok")
		}
	}
	ft.mu.Unlock()

	require.NoError(t, sess.WaitReady(2*time.Second))
}

func TestSessionWaitReadyTimeout(t *testing.T) {
	sess, _, _ := startHandshaked(t)

	err := sess.WaitReady(50 * time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

type countingLineMonitor struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (m *countingLineMonitor) RecordProtocolLine(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kinds == nil {
		m.kinds = make(map[string]int)
	}
	m.kinds[kind]++
}

func TestSessionCountsProtocolLines(t *testing.T) {
	ft := newFakeTransport()
	handler := newRecordingHandler()
	monitor := &countingLineMonitor{}
	ft.send(
		"id name FakeFish",
		"option name MultiPV type spin default 1 min 1 max 500",
		"uciok",
		"readyok",
	)

	sess := NewSession(ft, handler, testLogger())
	sess.SetLineMonitor(monitor)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Init(ctx))

	require.NoError(t, sess.Analyze(StartPos, Limits{Depth: 1}))
	ft.send(
		"info depth 1 multipv 1 score cp 10 pv e2e4",
		"bestmove e2e4",
	)

	select {
	case <-handler.bestmoveCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bestmove")
	}

	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	assert.Equal(t, 1, monitor.kinds["uciok"])
	assert.Equal(t, 1, monitor.kinds["readyok"])
	assert.Equal(t, 1, monitor.kinds["id"])
	assert.Equal(t, 1, monitor.kinds["option"])
	assert.Equal(t, 1, monitor.kinds["info"])
	assert.Equal(t, 1, monitor.kinds["bestmove"])
}

func TestSessionIgnoresUnknownOutput(t *testing.T) {
	sess, ft, handler := startHandshaked(t)

	ft.send("Stockfish 16 by the Stockfish developers (see AUTHORS file)")
	require.NoError(t, sess.Analyze(StartPos, Limits{Depth: 3}))
	ft.send("bestmove g1f3")

	select {
	case bm := <-handler.bestmoveCh:
		assert.Equal(t, "g1f3", bm.Move)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bestmove")
	}
}

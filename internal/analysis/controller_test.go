package analysis

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesslens/chesslens/internal/cache"
	"github.com/chesslens/chesslens/internal/engine"
	"github.com/chesslens/chesslens/internal/logging"
)

const (
	fenAfterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	fenAfterC4 = "rnbqkbnr/pppppppp/8/8/2P5/8/PP1PPPPP/RNBQKBNR b KQkq - 0 1"
)

// fakeSearcher records issued commands. onStop and onAnalyze let tests
// deliver engine reactions the way the real session does.
type fakeSearcher struct {
	mu        sync.Mutex
	analyzed  []string
	limits    []engine.Limits
	stops     int
	onStop    func()
	onAnalyze func()

	analyzeErr error
	stopErr    error
}

func (f *fakeSearcher) Analyze(position string, limits engine.Limits) error {
	f.mu.Lock()
	onAnalyze := f.onAnalyze
	err := f.analyzeErr
	if err == nil {
		f.analyzed = append(f.analyzed, position)
		f.limits = append(f.limits, limits)
	}
	f.mu.Unlock()

	if onAnalyze != nil {
		onAnalyze()
	}
	return err
}

func (f *fakeSearcher) StopSearch() error {
	f.mu.Lock()
	f.stops++
	onStop := f.onStop
	err := f.stopErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if onStop != nil {
		onStop()
	}
	return nil
}

func (f *fakeSearcher) counts() (analyzed, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.analyzed), f.stops
}

func newTestController(searcher *fakeSearcher) *Controller {
	ctrl := NewController(Config{
		Limits:      engine.Limits{Depth: 12},
		StopTimeout: time.Second,
		Logger:      logging.NewLogger("[test] ", "error"),
	})
	ctrl.Bind(searcher)
	return ctrl
}

func infoLine(rank, depth, cp int, moves ...string) engine.Info {
	return engine.Info{
		Depth:   depth,
		MultiPV: rank,
		Score:   engine.Score{CP: cp},
		PV:      moves,
	}
}

func TestControllerSetPositionIssuesSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)

	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	require.Len(t, searcher.analyzed, 1)
	assert.Equal(t, fenAfterE4, searcher.analyzed[0])
	assert.Equal(t, engine.Limits{Depth: 12}, searcher.limits[0])
	assert.Equal(t, fenAfterE4, ctrl.Position())
}

func TestControllerSamePositionIsNoop(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)

	require.NoError(t, ctrl.SetPosition(fenAfterE4))
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	analyzed, stops := searcher.counts()
	assert.Equal(t, 1, analyzed)
	assert.Equal(t, 0, stops)
}

func TestControllerPositionChangeStopsThenStartsOnce(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)
	// A real engine answers the stop with the discarded bestmove.
	searcher.onStop = func() {
		go ctrl.HandleBestMove(engine.BestMove{Move: "e7e5"})
	}

	require.NoError(t, ctrl.SetPosition(fenAfterE4))
	require.NoError(t, ctrl.SetPosition(fenAfterC4))

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	assert.Equal(t, 1, searcher.stops, "exactly one stop per position change")
	require.Len(t, searcher.analyzed, 2, "exactly one go per position")
	assert.Equal(t, []string{fenAfterE4, fenAfterC4}, searcher.analyzed)
}

func TestControllerSnapshotMergeKeepsDeepestPerRank(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	ctrl.HandleInfo(infoLine(1, 10, 30, "e7e5", "g1f3"))
	ctrl.HandleInfo(infoLine(2, 10, 12, "c7c5"))
	// A shallower rank-1 record must not regress the stored line.
	ctrl.HandleInfo(infoLine(1, 8, 99, "d7d5"))
	// A deeper one replaces it.
	ctrl.HandleInfo(infoLine(1, 12, 28, "e7e5", "g1f3", "b8c6"))

	snap := ctrl.CurrentSnapshot()
	require.Equal(t, []int{1, 2}, snap.Ranks())

	best, ok := snap.Best()
	require.True(t, ok)
	assert.Equal(t, 12, best.Depth)
	assert.Equal(t, 28, best.Score.CP)
	assert.Equal(t, []string{"e7e5", "g1f3", "b8c6"}, best.Moves)

	second, ok := snap.Line(2)
	require.True(t, ok)
	assert.Equal(t, []string{"c7c5"}, second.Moves)
}

func TestControllerSnapshotSeqStrictlyIncreases(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	last := ctrl.CurrentSnapshot().Seq
	for depth := 1; depth <= 5; depth++ {
		ctrl.HandleInfo(infoLine(1, depth, depth*10, "e7e5"))
		seq := ctrl.CurrentSnapshot().Seq
		assert.Greater(t, seq, last)
		last = seq
	}
}

func TestControllerSnapshotsAreImmutable(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	ctrl.HandleInfo(infoLine(1, 5, 10, "e7e5"))
	held := ctrl.CurrentSnapshot()
	heldBest, _ := held.Best()

	ctrl.HandleInfo(infoLine(1, 9, -40, "c7c5"))

	// The held snapshot is untouched by later updates.
	stillBest, ok := held.Best()
	require.True(t, ok)
	assert.Equal(t, heldBest, stillBest)

	fresh, _ := ctrl.CurrentSnapshot().Best()
	assert.Equal(t, []string{"c7c5"}, fresh.Moves)
}

func TestControllerEmptyPVNeverStored(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	ctrl.HandleInfo(engine.Info{Depth: 30, MultiPV: 1, Score: engine.Score{CP: 1}})
	assert.True(t, ctrl.CurrentSnapshot().Empty())
}

func TestControllerInfoAfterBestmoveIgnored(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	ctrl.HandleBestMove(engine.BestMove{Move: "e7e5"})
	before := ctrl.CurrentSnapshot()

	ctrl.HandleInfo(infoLine(1, 20, 50, "c7c5"))
	assert.Same(t, before, ctrl.CurrentSnapshot())
}

func TestControllerCrashClearsSnapshotAndRejectsRequests(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)

	var notified []error
	done := make(chan struct{})
	ctrl.cfg.OnUnavailable = func(err error) {
		notified = append(notified, err)
		close(done)
	}

	require.NoError(t, ctrl.SetPosition(fenAfterE4))
	ctrl.HandleInfo(infoLine(1, 10, 30, "e7e5"))
	require.False(t, ctrl.CurrentSnapshot().Empty())

	ctrl.HandleCrash(engine.ErrEngineCrashed)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnUnavailable not invoked")
	}
	require.Len(t, notified, 1)
	assert.ErrorIs(t, notified[0], engine.ErrEngineCrashed)

	assert.True(t, ctrl.CurrentSnapshot().Empty(), "stale lines must not survive a crash")

	down, err := ctrl.Unavailable()
	assert.True(t, down)
	assert.ErrorIs(t, err, engine.ErrEngineCrashed)

	assert.ErrorIs(t, ctrl.SetPosition(fenAfterC4), engine.ErrSessionClosed)

	analyzed, _ := searcher.counts()
	assert.Equal(t, 1, analyzed, "no automatic retry after a crash")
}

func TestControllerBindAfterCrashRecovers(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := newTestController(searcher)

	require.NoError(t, ctrl.SetPosition(fenAfterE4))
	ctrl.HandleCrash(engine.ErrEngineCrashed)
	require.Error(t, ctrl.SetPosition(fenAfterC4))

	fresh := &fakeSearcher{}
	ctrl.Bind(fresh)

	require.NoError(t, ctrl.SetPosition(fenAfterC4))
	analyzed, _ := fresh.counts()
	assert.Equal(t, 1, analyzed)

	down, _ := ctrl.Unavailable()
	assert.False(t, down)
}

func TestControllerCrashDuringAnalyzeDoesNotPanic(t *testing.T) {
	searcher := &fakeSearcher{analyzeErr: engine.ErrBrokenPipe}
	ctrl := newTestController(searcher)
	// The engine dies while the go command is being written: the reader
	// goroutine reports the crash before Analyze returns its write error.
	searcher.onAnalyze = func() {
		ctrl.HandleCrash(engine.ErrEngineCrashed)
	}

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, ctrl.SetPosition(fenAfterE4), engine.ErrBrokenPipe)
	})

	down, err := ctrl.Unavailable()
	assert.True(t, down)
	assert.ErrorIs(t, err, engine.ErrEngineCrashed)
}

func TestControllerBindReleasesStalledStopWait(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := NewController(Config{
		Limits:      engine.Limits{Depth: 12},
		StopTimeout: 30 * time.Second,
		Logger:      logging.NewLogger("[test] ", "error"),
	})
	ctrl.Bind(searcher)
	require.NoError(t, ctrl.SetPosition(fenAfterE4))

	// The stop goes unanswered: the old session was torn down by a reload,
	// so no bestmove ever arrives.
	returned := make(chan error, 1)
	go func() { returned <- ctrl.SetPosition(fenAfterC4) }()

	require.Eventually(t, func() bool {
		_, stops := searcher.counts()
		return stops == 1
	}, time.Second, 5*time.Millisecond)

	fresh := &fakeSearcher{}
	ctrl.Bind(fresh)

	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("SetPosition still blocked on the dead session after rebind")
	}
}

func TestControllerCacheSeedsRevisitedPosition(t *testing.T) {
	searcher := &fakeSearcher{}
	ctrl := NewController(Config{
		Limits:      engine.Limits{Depth: 12},
		StopTimeout: time.Second,
		Logger:      logging.NewLogger("[test] ", "error"),
		Cache:       cache.NewLRU(16),
	})
	ctrl.Bind(searcher)

	require.NoError(t, ctrl.SetPosition(fenAfterE4))
	ctrl.HandleInfo(infoLine(1, 15, 42, "e7e5"))
	ctrl.HandleBestMove(engine.BestMove{Move: "e7e5"})

	require.NoError(t, ctrl.SetPosition(fenAfterC4))
	ctrl.HandleBestMove(engine.BestMove{Move: "c7c5"})
	assert.True(t, ctrl.CurrentSnapshot().Empty())

	// Returning to the analyzed position repaints from the cache before
	// any fresh info arrives.
	require.NoError(t, ctrl.SetPosition(fenAfterE4))
	snap := ctrl.CurrentSnapshot()
	best, ok := snap.Best()
	require.True(t, ok)
	assert.Equal(t, 15, best.Depth)
	assert.Equal(t, 42, best.Score.CP)
	assert.Equal(t, fenAfterE4, snap.FEN)
}

func TestControllerAnalyzeErrorSurfaces(t *testing.T) {
	searcher := &fakeSearcher{analyzeErr: errors.New("pipe gone")}
	ctrl := newTestController(searcher)

	err := ctrl.SetPosition(fenAfterE4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe gone")
}

func TestControllerSetPositionWithoutBind(t *testing.T) {
	ctrl := NewController(Config{Logger: logging.NewLogger("[test] ", "error")})
	assert.ErrorIs(t, ctrl.SetPosition(fenAfterE4), engine.ErrSessionClosed)
}

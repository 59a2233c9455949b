package analysis

import (
	"sync"
	"time"

	"github.com/chesslens/chesslens/internal/cache"
	"github.com/chesslens/chesslens/internal/engine"
	"github.com/chesslens/chesslens/internal/logging"
	"github.com/chesslens/chesslens/internal/metrics"
)

// Searcher is the slice of the UCI session the controller drives.
// *engine.Session implements it.
type Searcher interface {
	Analyze(position string, limits engine.Limits) error
	StopSearch() error
}

// Config configures a Controller.
type Config struct {
	// Limits bound every issued search.
	Limits engine.Limits

	// StopTimeout bounds the wait for a pending bestmove after a stop.
	StopTimeout time.Duration

	Logger  logging.ContextLogger
	Metrics *metrics.Collector

	// Cache optionally holds completed snapshots per position so a
	// revisited position repaints before fresh analysis arrives.
	Cache *cache.LRU

	// OnUnavailable is invoked once per crash, outside any controller lock.
	OnUnavailable func(error)
}

// Controller bridges position changes from the navigator to the engine
// session and engine output to a polled snapshot. It implements
// engine.Handler; handler methods are invoked from the session's
// background reader, while SetPosition and CurrentSnapshot are called
// from the UI goroutine.
type Controller struct {
	cfg Config

	// posMu serializes SetPosition callers so overlapping calls never
	// interleave two stop/go sequences.
	posMu sync.Mutex

	mu          sync.Mutex
	session     Searcher
	fen         string
	searching   bool
	searchDone  chan struct{}
	searchStart time.Time
	lines       map[int]PrincipalVariation
	snapshot    *Snapshot
	seq         uint64
	unavailable bool
	lastErr     error
}

// NewController creates a controller. Bind must be called with a live
// session before SetPosition.
func NewController(cfg Config) *Controller {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("[analysis] ", "info")
	}

	return &Controller{
		cfg:      cfg,
		lines:    make(map[int]PrincipalVariation),
		snapshot: &Snapshot{Lines: map[int]PrincipalVariation{}},
	}
}

// Bind attaches a session, clearing any previous unavailable condition.
// Called at startup and again after an engine reload.
func (c *Controller) Bind(session Searcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = session
	c.unavailable = false
	c.lastErr = nil
	c.fen = ""
	// A reload tears the old session down without a crash notification;
	// release any SetPosition still waiting out a stop on it.
	if c.searching {
		c.searching = false
		close(c.searchDone)
	}
	c.lines = make(map[int]PrincipalVariation)
	c.publishLocked("")
}

// SetPosition redirects analysis to the given position. A request for the
// position already live is a no-op. When a different position is being
// searched, a stop is issued and its pending bestmove awaited (bounded by
// StopTimeout) and discarded before the new go.
func (c *Controller) SetPosition(fen string) error {
	c.posMu.Lock()
	defer c.posMu.Unlock()

	c.mu.Lock()
	if c.unavailable || c.session == nil {
		c.mu.Unlock()
		return engine.ErrSessionClosed
	}
	if fen == c.fen {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	wasSearching := c.searching
	done := c.searchDone
	c.mu.Unlock()

	if wasSearching {
		if err := session.StopSearch(); err != nil {
			c.cfg.Logger.Warn("stop failed", "error", err)
		} else if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordStopIssued()
		}

		select {
		case <-done:
			// Pending bestmove arrived and was discarded.
		case <-time.After(c.cfg.StopTimeout):
			c.cfg.Logger.Warn("timed out waiting for bestmove after stop", "timeout", c.cfg.StopTimeout)
		}
	}

	c.mu.Lock()
	if c.unavailable {
		c.mu.Unlock()
		return engine.ErrSessionClosed
	}
	c.fen = fen
	c.lines = make(map[int]PrincipalVariation)

	// Seed from the snapshot cache so a revisited position repaints
	// immediately; the fresh search overwrites it line by line.
	if c.cfg.Cache != nil {
		if v, ok := c.cfg.Cache.Get(cacheKey(fen, c.cfg.Limits)); ok {
			if cached, ok := v.(*Snapshot); ok {
				for rank, pv := range cached.Lines {
					c.lines[rank] = pv
				}
			}
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.RecordCacheHit()
			}
		} else if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordCacheMiss()
		}
	}

	c.searching = true
	c.searchDone = make(chan struct{})
	c.searchStart = time.Now()
	c.publishLocked(fen)
	c.mu.Unlock()

	if err := session.Analyze(fen, c.cfg.Limits); err != nil {
		c.mu.Lock()
		// A crash delivered during Analyze already ended the search and
		// closed searchDone from the reader goroutine.
		if c.searching {
			c.searching = false
			close(c.searchDone)
		}
		c.mu.Unlock()
		return err
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordSearchStarted()
	}
	return nil
}

// CurrentSnapshot returns the latest complete snapshot. It is immutable;
// consumers must discard snapshots whose Seq is not greater than the last
// one they observed.
func (c *Controller) CurrentSnapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Unavailable reports whether analysis is down and why.
func (c *Controller) Unavailable() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unavailable, c.lastErr
}

// Position returns the position analysis is currently directed at.
func (c *Controller) Position() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fen
}

// HandleInfo merges one info record into the snapshot: per rank only the
// highest-depth record is kept, ranks not mentioned retain their previous
// value, and the published snapshot is replaced wholesale.
func (c *Controller) HandleInfo(info engine.Info) {
	if len(info.PV) == 0 {
		// "No information yet" per protocol; never stored.
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.searching {
		return
	}

	prev, ok := c.lines[info.MultiPV]
	if ok && info.Depth < prev.Depth {
		return
	}

	c.lines[info.MultiPV] = PrincipalVariation{
		Rank:  info.MultiPV,
		Score: info.Score,
		Depth: info.Depth,
		Moves: append([]string(nil), info.PV...),
	}

	c.publishLocked(c.fen)

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordInfoRecord()
	}
}

// HandleBestMove marks the live search finished and stores the completed
// snapshot in the cache.
func (c *Controller) HandleBestMove(bm engine.BestMove) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.searching {
		return
	}

	c.searching = false
	close(c.searchDone)

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordSearchDuration(time.Since(c.searchStart).Seconds())
	}

	if c.cfg.Cache != nil && !c.snapshot.Empty() {
		c.cfg.Cache.Put(cacheKey(c.fen, c.cfg.Limits), c.snapshot)
	}

	c.cfg.Logger.Debug("search finished", "bestmove", bm.Move, "fen", c.fen)
}

// HandleCrash surfaces the unavailable condition and clears the snapshot.
// There is no automatic retry here; recovery is an explicit reload.
func (c *Controller) HandleCrash(err error) {
	c.mu.Lock()
	c.unavailable = true
	c.lastErr = err
	c.lines = make(map[int]PrincipalVariation)
	if c.searching {
		c.searching = false
		close(c.searchDone)
	}
	c.publishLocked(c.fen)
	notify := c.cfg.OnUnavailable
	c.mu.Unlock()

	c.cfg.Logger.Error("analysis unavailable", "error", err)
	if notify != nil {
		notify(err)
	}
}

// publishLocked replaces the published snapshot with a copy of the
// current lines under a fresh sequence number. Callers hold c.mu.
func (c *Controller) publishLocked(fen string) {
	lines := make(map[int]PrincipalVariation, len(c.lines))
	for rank, pv := range c.lines {
		lines[rank] = pv
	}

	c.seq++
	c.snapshot = &Snapshot{
		FEN:   fen,
		Seq:   c.seq,
		Lines: lines,
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordSnapshotSeq(c.seq)
	}
}

func cacheKey(fen string, limits engine.Limits) string {
	return fen + "|" + limits.String()
}

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chesslens/chesslens/internal/analysis"
	"github.com/chesslens/chesslens/internal/games"
	"github.com/chesslens/chesslens/internal/logging"
)

// snapshotPollInterval drives the analysis pane refresh. The controller
// publishes snapshots from the engine reader goroutine; the UI polls and
// keeps only snapshots with a higher sequence number than the last seen.
const snapshotPollInterval = 200 * time.Millisecond

// EngineControl is the slice of the supervisor the UI drives.
type EngineControl interface {
	Reload(ctx context.Context) error
	Running() bool
}

// ModelConfig wires the model to the rest of the application.
type ModelConfig struct {
	Games      []*games.Game
	Controller *analysis.Controller
	Engine     EngineControl
	Theme      string
	Logger     logging.ContextLogger
}

type tickMsg time.Time

type reloadDoneMsg struct{ err error }

// Model is the bubbletea model for the viewer: board pane, move list and
// analysis pane over the current game, driven by the key map.
type Model struct {
	keys   keyMap
	theme  Theme
	logger logging.ContextLogger

	games   []*games.Game
	navs    []*games.Navigator
	gameIdx int

	controller *analysis.Controller
	engine     EngineControl
	feeder     *positionFeeder

	snapshot     *analysis.Snapshot
	lastSeq      uint64
	showAnalysis bool
	flipped      bool
	reloading    bool
	statusErr    error

	width  int
	height int
}

// NewModel builds the model. At least one game is required.
func NewModel(cfg ModelConfig) *Model {
	m := &Model{
		keys:         defaultKeyMap(),
		theme:        NewTheme(cfg.Theme),
		logger:       cfg.Logger,
		games:        cfg.Games,
		controller:   cfg.Controller,
		engine:       cfg.Engine,
		showAnalysis: true,
	}

	m.feeder = newPositionFeeder(cfg.Controller, cfg.Logger)

	m.navs = make([]*games.Navigator, len(cfg.Games))
	for i, game := range cfg.Games {
		nav := game.Navigate()
		// Every position change flows to the analysis controller.
		nav.OnChange(func(_ int, fen string) {
			if m.showAnalysis {
				m.feeder.submit(fen)
			}
		})
		m.navs[i] = nav
	}

	return m
}

func (m *Model) nav() *games.Navigator { return m.navs[m.gameIdx] }

// Close stops the background position feeder.
func (m *Model) Close() { m.feeder.stop() }

func tick() tea.Cmd {
	return tea.Tick(snapshotPollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts analysis of the first game's starting position.
func (m *Model) Init() tea.Cmd {
	m.feeder.submit(m.nav().FEN())
	return tick()
}

// Update handles key, tick and window events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		m.pollSnapshot()
		return m, tick()

	case reloadDoneMsg:
		m.reloading = false
		m.statusErr = msg.err
		if msg.err == nil && m.showAnalysis {
			m.feeder.submit(m.nav().FEN())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		m.nav().Next()
	case key.Matches(msg, m.keys.Prev):
		m.nav().Prev()
	case key.Matches(msg, m.keys.First):
		m.nav().First()
	case key.Matches(msg, m.keys.Last):
		m.nav().Last()

	case key.Matches(msg, m.keys.NextGame):
		m.switchGame(m.gameIdx + 1)
	case key.Matches(msg, m.keys.PrevGame):
		m.switchGame(m.gameIdx - 1)

	case key.Matches(msg, m.keys.ToggleAnalysis):
		m.showAnalysis = !m.showAnalysis
		if m.showAnalysis {
			m.feeder.submit(m.nav().FEN())
		}

	case key.Matches(msg, m.keys.ToggleTheme):
		m.theme = m.theme.Toggle()

	case key.Matches(msg, m.keys.Flip):
		m.flipped = !m.flipped

	case key.Matches(msg, m.keys.Reload):
		if m.engine != nil && !m.reloading {
			m.reloading = true
			return m, m.reloadCmd()
		}
	}

	return m, nil
}

func (m *Model) switchGame(idx int) {
	if idx < 0 || idx >= len(m.navs) || idx == m.gameIdx {
		return
	}
	m.gameIdx = idx
	if m.showAnalysis {
		m.feeder.submit(m.nav().FEN())
	}
}

func (m *Model) reloadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return reloadDoneMsg{err: m.engine.Reload(ctx)}
	}
}

func (m *Model) pollSnapshot() {
	snap := m.controller.CurrentSnapshot()
	if snap.Seq > m.lastSeq {
		m.snapshot = snap
		m.lastSeq = snap.Seq
	}
	if down, err := m.controller.Unavailable(); down {
		m.statusErr = err
	} else if !m.reloading {
		m.statusErr = nil
	}
}

// View renders header, board, move list, analysis pane and help line.
func (m *Model) View() string {
	game := m.games[m.gameIdx]

	header := m.theme.Header.Render(fmt.Sprintf("chesslens — %s", game.Description()))
	meta := m.theme.Status.Render(fmt.Sprintf("game %d/%d  %s  %s",
		m.gameIdx+1, len(m.games), game.Event, game.Date))

	board, err := renderBoard(m.nav().FEN(), m.theme, m.flipped)
	if err != nil {
		board = m.theme.Error.Render(err.Error())
	}

	left := m.theme.Pane.Render(board)
	right := m.theme.Pane.Render(m.renderMoves())

	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)

	sections := []string{header, meta, panes}
	if m.showAnalysis {
		sections = append(sections, m.theme.Pane.Render(m.renderAnalysis()))
	}
	sections = append(sections, m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderMoves shows the SAN move list with the last played move highlighted,
// windowed around the current ply.
func (m *Model) renderMoves() string {
	nav := m.nav()
	san := nav.SAN()

	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("Moves"))
	b.WriteString("\n")

	if len(san) == 0 {
		b.WriteString(m.theme.Status.Render("(no moves)"))
		return b.String()
	}

	const windowPlies = 16
	start := nav.Ply() - windowPlies/2
	if start < 0 {
		start = 0
	}
	if start%2 != 0 {
		start--
	}
	end := start + windowPlies
	if end > len(san) {
		end = len(san)
	}

	for i := start; i < end; i += 2 {
		b.WriteString(m.theme.MoveNumber.Render(fmt.Sprintf("%3d. ", i/2+1)))
		b.WriteString(m.renderMove(san, i, nav.Ply()))
		if i+1 < end {
			b.WriteString(" ")
			b.WriteString(m.renderMove(san, i+1, nav.Ply()))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderMove(san []string, i, ply int) string {
	// The move at index i is the ply i+1.
	if i+1 == ply {
		return m.theme.CurrentMove.Render(san[i])
	}
	return m.theme.Move.Render(san[i])
}

// renderAnalysis shows the engine lines of the latest snapshot.
func (m *Model) renderAnalysis() string {
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("Analysis"))
	b.WriteString("\n")

	if m.statusErr != nil {
		b.WriteString(m.theme.Error.Render(fmt.Sprintf("engine unavailable: %v — press r to reload", m.statusErr)))
		return b.String()
	}
	if m.reloading {
		b.WriteString(m.theme.Status.Render("reloading engine…"))
		return b.String()
	}

	snap := m.snapshot
	if snap == nil || snap.Empty() || snap.FEN != m.nav().FEN() {
		b.WriteString(m.theme.Status.Render("thinking…"))
		return b.String()
	}

	for _, rank := range snap.Ranks() {
		pv, _ := snap.Line(rank)

		score := m.theme.ScoreWhite
		if strings.HasPrefix(pv.ScoreString(), "-") || strings.HasPrefix(pv.ScoreString(), "M-") {
			score = m.theme.ScoreBlack
		}

		b.WriteString(fmt.Sprintf("%d. %s %s %s\n",
			rank,
			score.Render(fmt.Sprintf("%-7s", pv.ScoreString())),
			m.theme.Depth.Render(fmt.Sprintf("d%-3d", pv.Depth)),
			m.theme.Move.Render(truncate(pv.MovesString(), 60)),
		))
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderHelp() string {
	bindings := []key.Binding{
		m.keys.Prev, m.keys.Next, m.keys.First, m.keys.Last,
		m.keys.PrevGame, m.keys.NextGame,
		m.keys.ToggleAnalysis, m.keys.ToggleTheme, m.keys.Flip,
		m.keys.Reload, m.keys.Quit,
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, fmt.Sprintf("%s %s", b.Help().Key, b.Help().Desc))
	}
	return m.theme.Help.Render(strings.Join(parts, " · "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// positionFeeder serializes SetPosition calls on one goroutine with
// latest-wins semantics: a rapid run of navigation events collapses to the
// final position, since SetPosition can block on the stop handshake.
type positionFeeder struct {
	ch     chan string
	done   chan struct{}
	ctrl   *analysis.Controller
	logger logging.ContextLogger
}

func newPositionFeeder(ctrl *analysis.Controller, logger logging.ContextLogger) *positionFeeder {
	f := &positionFeeder{
		ch:     make(chan string, 1),
		done:   make(chan struct{}),
		ctrl:   ctrl,
		logger: logger,
	}
	go f.run()
	return f
}

func (f *positionFeeder) submit(fen string) {
	for {
		select {
		case f.ch <- fen:
			return
		default:
			// Drop the queued older position.
			select {
			case <-f.ch:
			default:
			}
		}
	}
}

func (f *positionFeeder) run() {
	for {
		select {
		case fen := <-f.ch:
			if err := f.ctrl.SetPosition(fen); err != nil {
				f.logger.Warn("analysis request failed", "error", err)
			}
		case <-f.done:
			return
		}
	}
}

func (f *positionFeeder) stop() {
	close(f.done)
}

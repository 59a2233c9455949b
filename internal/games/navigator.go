package games

import (
	"github.com/notnil/chess"
)

// Navigator walks a game move by move. The ply is the number of moves
// played so far: 0 is the starting position, Len() the final position.
// It owns the authoritative current position; the analysis pipeline and
// the board view both key off FEN().
//
// Navigator is not safe for concurrent use. The TUI drives it from its
// single update goroutine.
type Navigator struct {
	game      *Game
	positions []*chess.Position
	san       []string
	ply       int

	onChange func(ply int, fen string)
}

func newNavigator(g *Game) *Navigator {
	return &Navigator{
		game:      g,
		positions: g.game.Positions(),
		san:       g.Moves(),
	}
}

// Game returns the game being navigated.
func (n *Navigator) Game() *Game { return n.game }

// OnChange registers the single listener notified after every position
// change. Registering replaces any previous listener.
func (n *Navigator) OnChange(fn func(ply int, fen string)) {
	n.onChange = fn
}

// Len returns the number of moves in the game.
func (n *Navigator) Len() int { return len(n.san) }

// Ply returns the number of moves played up to the current position.
func (n *Navigator) Ply() int { return n.ply }

// FEN returns the current position.
func (n *Navigator) FEN() string {
	return n.positions[n.ply].String()
}

// SAN returns the game's moves in algebraic notation for display.
func (n *Navigator) SAN() []string {
	return append([]string(nil), n.san...)
}

// AtStart reports whether the starting position is current.
func (n *Navigator) AtStart() bool { return n.ply == 0 }

// AtEnd reports whether the final position is current.
func (n *Navigator) AtEnd() bool { return n.ply == len(n.san) }

// Next advances one move. At the end it is a no-op.
func (n *Navigator) Next() bool { return n.Jump(n.ply + 1) }

// Prev steps one move back. At the start it is a no-op.
func (n *Navigator) Prev() bool { return n.Jump(n.ply - 1) }

// First jumps to the starting position.
func (n *Navigator) First() bool { return n.Jump(0) }

// Last jumps to the final position.
func (n *Navigator) Last() bool { return n.Jump(len(n.san)) }

// Jump moves to the position after the given number of moves. Out-of-range
// and already-current targets are no-ops. Reports whether the position
// changed.
func (n *Navigator) Jump(ply int) bool {
	if ply < 0 || ply > len(n.san) || ply == n.ply {
		return false
	}
	n.ply = ply
	if n.onChange != nil {
		n.onChange(n.ply, n.FEN())
	}
	return true
}

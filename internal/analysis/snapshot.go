package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chesslens/chesslens/internal/engine"
)

// PrincipalVariation is one ranked analysis line. Rank 1 is the engine's
// best line. Moves is never empty on a stored variation.
type PrincipalVariation struct {
	Rank  int
	Score engine.Score
	Depth int
	Moves []string
}

// ScoreString renders the evaluation the way chess GUIs do: pawns with
// sign, or M<n> for forced mates.
func (pv PrincipalVariation) ScoreString() string {
	if pv.Score.IsMate() {
		return fmt.Sprintf("M%d", pv.Score.Mate)
	}
	return fmt.Sprintf("%+.2f", float64(pv.Score.CP)/100)
}

// MovesString joins the line's moves for display.
func (pv PrincipalVariation) MovesString() string {
	return strings.Join(pv.Moves, " ")
}

// Snapshot is an immutable view of the current analysis: the position it
// describes, a strictly increasing sequence number and the best lines by
// rank. Snapshots are replaced wholesale, never mutated, so a polling
// consumer can hold one without locking.
type Snapshot struct {
	FEN   string
	Seq   uint64
	Lines map[int]PrincipalVariation
}

// Empty reports whether no lines have been received for the position.
func (s *Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Ranks returns the populated ranks in ascending order.
func (s *Snapshot) Ranks() []int {
	ranks := make([]int, 0, len(s.Lines))
	for rank := range s.Lines {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	return ranks
}

// Line returns the variation at the given rank.
func (s *Snapshot) Line(rank int) (PrincipalVariation, bool) {
	pv, ok := s.Lines[rank]
	return pv, ok
}

// Best returns the rank-1 variation.
func (s *Snapshot) Best() (PrincipalVariation, bool) {
	return s.Line(1)
}

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesslens/chesslens/internal/engine"
)

func TestSnapshotRanksSorted(t *testing.T) {
	snap := &Snapshot{Lines: map[int]PrincipalVariation{
		3: {Rank: 3},
		1: {Rank: 1},
		2: {Rank: 2},
	}}

	assert.Equal(t, []int{1, 2, 3}, snap.Ranks())
}

func TestSnapshotBestAndLine(t *testing.T) {
	snap := &Snapshot{Lines: map[int]PrincipalVariation{
		1: {Rank: 1, Depth: 20, Moves: []string{"e2e4"}},
		2: {Rank: 2, Depth: 18, Moves: []string{"d2d4"}},
	}}

	best, ok := snap.Best()
	require.True(t, ok)
	assert.Equal(t, []string{"e2e4"}, best.Moves)

	_, ok = snap.Line(5)
	assert.False(t, ok)

	assert.False(t, snap.Empty())
	assert.True(t, (&Snapshot{Lines: map[int]PrincipalVariation{}}).Empty())
}

func TestPrincipalVariationScoreString(t *testing.T) {
	tests := []struct {
		score engine.Score
		want  string
	}{
		{engine.Score{CP: 34}, "+0.34"},
		{engine.Score{CP: -250}, "-2.50"},
		{engine.Score{CP: 0}, "+0.00"},
		{engine.Score{Mate: 3}, "M3"},
		{engine.Score{Mate: -2}, "M-2"},
	}

	for _, tt := range tests {
		pv := PrincipalVariation{Score: tt.score}
		assert.Equal(t, tt.want, pv.ScoreString())
	}
}

func TestPrincipalVariationMovesString(t *testing.T) {
	pv := PrincipalVariation{Moves: []string{"e2e4", "e7e5", "g1f3"}}
	assert.Equal(t, "e2e4 e7e5 g1f3", pv.MovesString())
}

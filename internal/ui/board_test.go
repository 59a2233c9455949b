package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestRenderBoardStartPosition(t *testing.T) {
	out, err := renderBoard(startFEN, NewTheme("dark"), false)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 9, "8 ranks plus file labels")

	// White POV: black pieces on the top rank, white on the bottom.
	assert.Contains(t, lines[0], "♜")
	assert.Contains(t, lines[0], "8")
	assert.Contains(t, lines[7], "♖")
	assert.Contains(t, lines[7], "1")
	assert.Contains(t, lines[8], "a")
}

func TestRenderBoardFlipped(t *testing.T) {
	out, err := renderBoard(startFEN, NewTheme("light"), true)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 9)

	// Black POV: white pieces on top, rank 1 first.
	assert.Contains(t, lines[0], "♖")
	assert.Contains(t, lines[0], "1")
	assert.Contains(t, lines[7], "♜")
	assert.Contains(t, lines[8], "h")
}

func TestRenderBoardSparsePosition(t *testing.T) {
	out, err := renderBoard("8/8/8/4k3/8/8/8/4K3 w - - 0 1", NewTheme("dark"), false)
	require.NoError(t, err)
	assert.Contains(t, out, "♚")
	assert.Contains(t, out, "♔")
}

func TestRenderBoardInvalidFEN(t *testing.T) {
	_, err := renderBoard("not a fen", NewTheme("dark"), false)
	assert.Error(t, err)
}

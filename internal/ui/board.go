package ui

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

var pieceGlyphs = map[chess.Piece]string{
	chess.WhiteKing:   "♔",
	chess.WhiteQueen:  "♕",
	chess.WhiteRook:   "♖",
	chess.WhiteBishop: "♗",
	chess.WhiteKnight: "♘",
	chess.WhitePawn:   "♙",
	chess.BlackKing:   "♚",
	chess.BlackQueen:  "♛",
	chess.BlackRook:   "♜",
	chess.BlackBishop: "♝",
	chess.BlackKnight: "♞",
	chess.BlackPawn:   "♟",
}

// renderBoard draws the position as an 8x8 colored grid with rank and file
// labels. flipped shows the board from Black's side.
func renderBoard(fen string, theme Theme, flipped bool) (string, error) {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return "", fmt.Errorf("render board: %w", err)
	}
	board := chess.NewGame(fenOpt).Position().Board()

	var b strings.Builder
	for row := 0; row < 8; row++ {
		rank := 7 - row
		if flipped {
			rank = row
		}
		b.WriteString(theme.BoardLabel.Render(fmt.Sprintf("%d ", rank+1)))

		for col := 0; col < 8; col++ {
			file := col
			if flipped {
				file = 7 - col
			}

			square := chess.Square(rank*8 + file)
			cell := " " + glyphAt(board, square) + " "

			if (rank+file)%2 == 0 {
				b.WriteString(theme.DarkSquare.Render(cell))
			} else {
				b.WriteString(theme.LightSquare.Render(cell))
			}
		}
		b.WriteString("\n")
	}

	files := "   a  b  c  d  e  f  g  h"
	if flipped {
		files = "   h  g  f  e  d  c  b  a"
	}
	b.WriteString(theme.BoardLabel.Render(files))

	return b.String(), nil
}

func glyphAt(board *chess.Board, square chess.Square) string {
	piece := board.Piece(square)
	if glyph, ok := pieceGlyphs[piece]; ok {
		return glyph
	}
	return " "
}

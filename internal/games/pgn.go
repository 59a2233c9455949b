package games

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/notnil/chess"

	"github.com/chesslens/chesslens/internal/logging"
)

// Game is one loaded chess game: the parsed move tree plus the tag
// metadata the viewer and the database care about.
type Game struct {
	White    string
	Black    string
	Event    string
	Site     string
	Date     string
	Round    string
	Result   string
	WhiteElo int
	BlackElo int
	ECO      string

	game *chess.Game
}

// Description returns a one-line label for game lists.
func (g *Game) Description() string {
	return fmt.Sprintf("%s vs %s (%s)", g.White, g.Black, g.Result)
}

// Moves returns the game's moves in algebraic notation.
func (g *Game) Moves() []string {
	moves := g.game.Moves()
	positions := g.game.Positions()
	notation := chess.AlgebraicNotation{}

	san := make([]string, len(moves))
	for i, move := range moves {
		san[i] = notation.Encode(positions[i], move)
	}
	return san
}

// PGN returns the game serialized back to PGN, tags included.
func (g *Game) PGN() string {
	return g.game.String()
}

// Navigate returns a navigator positioned before the first move.
func (g *Game) Navigate() *Navigator {
	return newNavigator(g)
}

// LoadPGNFile parses a multi-game PGN file. Games that fail to parse are
// skipped with a warning; the file fails as a whole only when it yields no
// games at all.
func LoadPGNFile(path string, logger logging.ContextLogger) ([]*Game, error) {
	f, err := os.Open(path) // #nosec G304 -- path is user-supplied input
	if err != nil {
		return nil, fmt.Errorf("open pgn file: %w", err)
	}
	defer f.Close()

	games, err := LoadPGN(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	logger.Info("loaded pgn file", "path", path, "games", len(games))
	return games, nil
}

// LoadPGN parses every game in the stream.
func LoadPGN(r io.Reader, logger logging.ContextLogger) ([]*Game, error) {
	var games []*Game

	scanner := chess.NewScanner(r)
	for scanner.Scan() {
		parsed := scanner.Next()
		if parsed == nil {
			continue
		}
		game := fromChessGame(parsed)
		if len(parsed.Moves()) == 0 {
			logger.Warn("skipping game without moves", "white", game.White, "black", game.Black)
			continue
		}
		games = append(games, game)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		if len(games) == 0 {
			return nil, err
		}
		// Partial reads keep what parsed; the tail is reported and dropped.
		logger.Warn("pgn stream ended with error", "error", err, "games", len(games))
	}

	if len(games) == 0 {
		return nil, fmt.Errorf("no games found")
	}
	return games, nil
}

// ParseMoveText reconstructs a game from tags and a movetext string, the
// shape games come back from the database in.
func ParseMoveText(movetext string) (*Game, error) {
	parsed := chess.NewGame()
	if err := parsed.UnmarshalText([]byte(movetext)); err != nil {
		return nil, fmt.Errorf("parse movetext: %w", err)
	}
	return fromChessGame(parsed), nil
}

func fromChessGame(parsed *chess.Game) *Game {
	g := &Game{
		White:    tagOr(parsed, "White", "Unknown"),
		Black:    tagOr(parsed, "Black", "Unknown"),
		Event:    tagOr(parsed, "Event", ""),
		Site:     tagOr(parsed, "Site", ""),
		Date:     tagOr(parsed, "Date", ""),
		Round:    tagOr(parsed, "Round", ""),
		Result:   tagOr(parsed, "Result", "*"),
		ECO:      tagOr(parsed, "ECO", ""),
		WhiteElo: tagInt(parsed, "WhiteElo"),
		BlackElo: tagInt(parsed, "BlackElo"),
		game:     parsed,
	}
	return g
}

func tagOr(g *chess.Game, name, fallback string) string {
	if pair := g.GetTagPair(name); pair != nil && pair.Value != "" {
		return pair.Value
	}
	return fallback
}

func tagInt(g *chess.Game, name string) int {
	pair := g.GetTagPair(name)
	if pair == nil {
		return 0
	}
	n, _ := strconv.Atoi(pair.Value)
	return n
}

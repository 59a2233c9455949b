package gamedb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chesslens/chesslens/internal/games"
	"github.com/chesslens/chesslens/internal/logging"
)

// DB is the SQLite-backed game store. Games are stored with their movetext
// so a full game can be reconstructed for viewing and analysis; players are
// normalized into their own table.
type DB struct {
	db     *sql.DB
	path   string
	logger logging.ContextLogger
}

// GameRecord is one stored game joined with its player names.
type GameRecord struct {
	ID       int64
	Event    string
	Site     string
	Date     string
	Round    string
	White    string
	Black    string
	Result   string
	WhiteElo int
	BlackElo int
	ECO      string
	MoveText string
}

// Description returns a one-line label for game lists.
func (r *GameRecord) Description() string {
	return fmt.Sprintf("%s vs %s (%s)", r.White, r.Black, r.Result)
}

// Parse reconstructs the playable game from the stored movetext.
func (r *GameRecord) Parse() (*games.Game, error) {
	game, err := games.ParseMoveText(r.MoveText)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", r.ID, err)
	}
	game.White = r.White
	game.Black = r.Black
	game.Event = r.Event
	game.Site = r.Site
	game.Date = r.Date
	game.Round = r.Round
	game.Result = r.Result
	game.WhiteElo = r.WhiteElo
	game.BlackElo = r.BlackElo
	game.ECO = r.ECO
	return game, nil
}

// Filter narrows Games queries. Empty fields are ignored.
type Filter struct {
	White  string
	Black  string
	Event  string
	Result string
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	first_seen_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	last_seen_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	total_games INTEGER DEFAULT 0,
	UNIQUE(name)
);

CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event TEXT,
	site TEXT,
	date TEXT,
	round TEXT,
	white_id INTEGER,
	black_id INTEGER,
	result TEXT,
	white_elo INTEGER,
	black_elo INTEGER,
	eco TEXT,
	moves TEXT,
	import_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (white_id) REFERENCES players(id),
	FOREIGN KEY (black_id) REFERENCES players(id)
);

CREATE INDEX IF NOT EXISTS idx_white_player ON games(white_id);
CREATE INDEX IF NOT EXISTS idx_black_player ON games(black_id);
CREATE INDEX IF NOT EXISTS idx_event ON games(event);
CREATE INDEX IF NOT EXISTS idx_date ON games(date);
CREATE INDEX IF NOT EXISTS idx_player_name ON players(name);
`

// Open opens (creating if necessary) the game database at path.
func Open(path string, logger logging.ContextLogger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info("game database opened", "path", path)
	return &DB{db: db, path: path, logger: logger}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// AddGame stores one game, creating or updating its players, in a single
// transaction.
func (d *DB) AddGame(game *games.Game) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	whiteID, err := getOrCreatePlayer(tx, game.White)
	if err != nil {
		return 0, err
	}
	blackID, err := getOrCreatePlayer(tx, game.Black)
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
		INSERT INTO games (
			event, site, date, round,
			white_id, black_id, result,
			white_elo, black_elo, eco, moves
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		game.Event, game.Site, game.Date, game.Round,
		whiteID, blackID, game.Result,
		game.WhiteElo, game.BlackElo, game.ECO, game.PGN(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func getOrCreatePlayer(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM players WHERE name = ?`, name).Scan(&id)
	switch {
	case err == nil:
		_, err = tx.Exec(`
			UPDATE players
			SET last_seen_date = CURRENT_TIMESTAMP,
			    total_games = total_games + 1
			WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("update player %q: %w", name, err)
		}
		return id, nil

	case err == sql.ErrNoRows:
		res, err := tx.Exec(`INSERT INTO players (name, total_games) VALUES (?, 1)`, name)
		if err != nil {
			return 0, fmt.Errorf("insert player %q: %w", name, err)
		}
		return res.LastInsertId()

	default:
		return 0, fmt.Errorf("lookup player %q: %w", name, err)
	}
}

const selectGames = `
	SELECT
		g.id, g.event, g.site, g.date, g.round,
		w.name, b.name, g.result,
		g.white_elo, g.black_elo, g.eco, g.moves
	FROM games g
	JOIN players w ON g.white_id = w.id
	JOIN players b ON g.black_id = b.id
`

// Games lists stored games newest first, optionally filtered. limit <= 0
// means no limit.
func (d *DB) Games(filter Filter, limit, offset int) ([]GameRecord, error) {
	query := selectGames
	var params []interface{}

	var conditions []string
	if filter.White != "" {
		conditions = append(conditions, "w.name = ?")
		params = append(params, filter.White)
	}
	if filter.Black != "" {
		conditions = append(conditions, "b.name = ?")
		params = append(params, filter.Black)
	}
	if filter.Event != "" {
		conditions = append(conditions, "g.event = ?")
		params = append(params, filter.Event)
	}
	if filter.Result != "" {
		conditions = append(conditions, "g.result = ?")
		params = append(params, filter.Result)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY g.date DESC, g.id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
		if offset > 0 {
			query += " OFFSET ?"
			params = append(params, offset)
		}
	}

	rows, err := d.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return records, nil
}

// GameByID fetches a single stored game.
func (d *DB) GameByID(id int64) (*GameRecord, error) {
	rows, err := d.db.Query(selectGames+" WHERE g.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query game %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query game %d: %w", id, err)
		}
		return nil, fmt.Errorf("game %d not found", id)
	}
	rec, err := scanGame(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanGame(rows *sql.Rows) (GameRecord, error) {
	var rec GameRecord
	var event, site, date, round, eco, moves sql.NullString
	var whiteElo, blackElo sql.NullInt64

	err := rows.Scan(
		&rec.ID, &event, &site, &date, &round,
		&rec.White, &rec.Black, &rec.Result,
		&whiteElo, &blackElo, &eco, &moves,
	)
	if err != nil {
		return rec, fmt.Errorf("scan game: %w", err)
	}

	rec.Event = event.String
	rec.Site = site.String
	rec.Date = date.String
	rec.Round = round.String
	rec.ECO = eco.String
	rec.MoveText = moves.String
	rec.WhiteElo = int(whiteElo.Int64)
	rec.BlackElo = int(blackElo.Int64)
	return rec, nil
}

// CountGames returns the number of stored games.
func (d *DB) CountGames() (int, error) {
	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM games`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return count, nil
}

// ImportPGN bulk-loads a PGN file. A game that fails to store is skipped;
// the import reports how many games landed and how many were dropped.
func (d *DB) ImportPGN(path string) (imported, skipped int, err error) {
	loaded, err := games.LoadPGNFile(path, d.logger)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	for _, game := range loaded {
		if _, err := d.AddGame(game); err != nil {
			d.logger.Warn("skipping unstorable game", "game", game.Description(), "error", err)
			skipped++
			continue
		}
		imported++
	}

	d.logger.Info("pgn import finished",
		"path", path, "imported", imported, "skipped", skipped,
		"duration", time.Since(start))
	return imported, skipped, nil
}

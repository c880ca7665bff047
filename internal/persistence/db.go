// Package persistence records territory history to SQLite.
// It stores observations of a running board for later analysis; a board is
// never restored from it.
package persistence

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexfront/internal/engine"
)

// DB wraps a SQLite connection for territory history.
type DB struct {
	conn *sqlx.DB
}

// HistoryRow is the territory summary of one recorded tick.
type HistoryRow struct {
	Run          string  `db:"run" json:"run"`
	Tick         uint64  `db:"tick" json:"tick"`
	CellsA       int     `db:"cells_a" json:"cells_a"`
	CellsB       int     `db:"cells_b" json:"cells_b"`
	CellsNeutral int     `db:"cells_neutral" json:"cells_neutral"`
	TotalA       float64 `db:"total_a" json:"total_a"`
	TotalB       float64 `db:"total_b" json:"total_b"`
	TotalNeutral float64 `db:"total_neutral" json:"total_neutral"`
	Sources      int     `db:"sources" json:"sources"`
	Rays         int     `db:"rays" json:"rays"`
	Digest       string  `db:"digest" json:"digest"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS territory_history (
		run TEXT NOT NULL,
		tick INTEGER NOT NULL,
		cells_a INTEGER NOT NULL,
		cells_b INTEGER NOT NULL,
		cells_neutral INTEGER NOT NULL,
		total_a REAL NOT NULL,
		total_b REAL NOT NULL,
		total_neutral REAL NOT NULL,
		sources INTEGER NOT NULL,
		rays INTEGER NOT NULL,
		digest TEXT NOT NULL,
		PRIMARY KEY (run, tick)
	);

	CREATE TABLE IF NOT EXISTS ownership_snapshots (
		run TEXT NOT NULL,
		tick INTEGER NOT NULL,
		radius INTEGER NOT NULL,
		cells INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (run, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS board_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveHistory writes one territory summary row.
func (db *DB) SaveHistory(row HistoryRow) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO territory_history
		(run, tick, cells_a, cells_b, cells_neutral, total_a, total_b, total_neutral, sources, rays, digest)
		VALUES (:run, :tick, :cells_a, :cells_b, :cells_neutral, :total_a, :total_b, :total_neutral, :sources, :rays, :digest)`,
		row)
	if err != nil {
		return fmt.Errorf("insert history tick %d: %w", row.Tick, err)
	}
	return nil
}

// History returns up to limit of the newest rows of a run, oldest first.
func (db *DB) History(run string, limit int) ([]HistoryRow, error) {
	var rows []HistoryRow
	err := db.conn.Select(&rows, `SELECT * FROM (
			SELECT run, tick, cells_a, cells_b, cells_neutral, total_a, total_b, total_neutral, sources, rays, digest
			FROM territory_history WHERE run = ? ORDER BY tick DESC LIMIT ?
		) ORDER BY tick ASC`,
		run, limit,
	)
	return rows, err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(run string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run, seq, tick, description, category) VALUES (?, ?, ?, ?, ?)",
			run, e.Seq, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(run string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT seq, tick, description, category FROM events WHERE run = ? ORDER BY id DESC LIMIT ?",
		run, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in board metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO board_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM board_meta WHERE key = ?", key)
	return value, err
}

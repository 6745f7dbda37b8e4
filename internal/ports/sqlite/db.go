// Package sqlite backs the durable ports with an embedded SQLite database.
// It is the default store for single-host relays and for clients that keep
// a local replica of the move log.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS moves (
	match_id   TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	player     TEXT    NOT NULL,
	payload    BLOB    NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (match_id, seq, player)
);
CREATE INDEX IF NOT EXISTS idx_moves_match_seq ON moves(match_id, seq);

CREATE TABLE IF NOT EXISTS sessions (
	match_id   TEXT PRIMARY KEY,
	blob       BLOB NOT NULL,
	turn_owner TEXT NOT NULL,
	status     TEXT NOT NULL,
	saved_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS invites (
	proposal_id  TEXT PRIMARY KEY,
	old_match_id TEXT NOT NULL,
	proposer     TEXT NOT NULL,
	new_match    BLOB NOT NULL,
	resolved     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);
`

// Open opens (creating if missing) the database at dsn with WAL journaling,
// a busy timeout, and the schema applied. Use ":memory:" for tests.
func Open(dsn string) (*sql.DB, error) {
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return db, nil
}

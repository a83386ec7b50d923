// Package store persists the three pieces of server state original_source
// keeps as flat files: the ban list, a history of CVAR_ARCHIVE writes,
// and a demo catalogue. A fork that already carries JWT auth and a
// websocket admin channel (internal/authtoken, internal/oob) gets a
// small queryable sqlite store for these instead of more flat files.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bans (
	id          TEXT PRIMARY KEY,
	address     TEXT NOT NULL,
	reason      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cvar_history (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	changed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS demos (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	map         TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
`

// Store wraps a *sql.DB open against a single sqlite file, providing the
// ban list, cvar-archive history, and demo catalogue tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

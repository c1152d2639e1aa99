// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// The store is a local mirror of on-chain truth for a single-server
// deployment — an embedded database with no separate server to operate is
// exactly the right weight. modernc.org/sqlite is a pure Go translation of
// SQLite, so no C compiler is needed and cross-compilation stays painless.
//
// The write path that matters lives in club.go: the reconciliation inserts
// that commit confirmed chain state. Everything there leans on two SQLite
// features:
//   - INSERT OR IGNORE against unique keys, which makes reconciliation
//     retry-safe without an idempotency ledger
//   - transactions, which keep a club row from ever existing without its
//     admin membership row
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path or permissions problem
	// surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a reconciliation write is running.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. The clubs→users and
	// memberships→clubs references are load-bearing here: a membership for
	// a club that was never recorded would silently corrupt the mirror.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer this wherever New
// is called — it flushes the WAL and releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it safe to
// run on every start.
//
// Note that clubs.id has no AUTOINCREMENT: club IDs are assigned by the
// contract and recovered from receipts, never generated locally.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			google_id             TEXT NOT NULL UNIQUE,
			email                 TEXT NOT NULL UNIQUE,
			name                  TEXT NOT NULL DEFAULT '',
			picture               TEXT NOT NULL DEFAULT '',
			smart_account_address TEXT NOT NULL,
			created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS clubs (
			id            INTEGER PRIMARY KEY,
			name          TEXT NOT NULL,
			admin_user_id INTEGER NOT NULL,
			tx_hash       TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (admin_user_id) REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS memberships (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			club_id    INTEGER NOT NULL,
			user_id    INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (club_id, user_id),
			FOREIGN KEY (club_id) REFERENCES clubs(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

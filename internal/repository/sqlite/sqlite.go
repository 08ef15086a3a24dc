// Package sqlite implements the repository interfaces on SQLite.
//
// The driver is modernc.org/sqlite — a pure Go translation of the SQLite C
// code, so no CGo and no C compiler needed, and ":memory:" databases make
// repository tests self-contained.
//
// Two pragmas run at connection time: WAL mode so reads proceed during a
// write (this is a web server), and foreign_keys so api_keys rows cannot
// outlive their owning user.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under
	// the name "sqlite" in its init().
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// The server owns the lifecycle: New opens and migrates, Close releases the
// file lock on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests) and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open only builds the pool; Ping forces a real connection so a
	// bad path fails here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

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

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent
// and safe to run on every start.
//
// Note: api_keys has NO uniqueness constraint on (user_id, exchange) — the
// one-credential-per-exchange rule is enforced at write time by the service,
// which is where the 409 response comes from.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			name          TEXT NOT NULL DEFAULT '',
			google_id     TEXT UNIQUE,
			profile_pic   TEXT NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login    DATETIME
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS api_keys (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			exchange   TEXT NOT NULL,
			api_key    TEXT NOT NULL,
			api_secret TEXT NOT NULL,
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used  DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating api_keys table: %w", err)
	}

	// Signal tables: persisted shape only, no producer or consumer in this
	// backend yet. The signal engine is a separate system.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS trading_signals (
			id           TEXT PRIMARY KEY,
			user_id      TEXT REFERENCES users(id),
			symbol       TEXT NOT NULL,
			signal_type  TEXT NOT NULL,
			entry_price  REAL NOT NULL,
			target_price REAL,
			stop_loss    REAL,
			timeframe    TEXT,
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			executed_at  DATETIME
		);
		CREATE TABLE IF NOT EXISTS signal_performances (
			id          TEXT PRIMARY KEY,
			signal_id   TEXT NOT NULL REFERENCES trading_signals(id),
			exit_price  REAL,
			profit_loss REAL,
			exit_reason TEXT,
			closed_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating signal tables: %w", err)
	}

	return nil
}

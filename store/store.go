package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS client_tokens (
	id              TEXT PRIMARY KEY,
	token_prefix    TEXT NOT NULL UNIQUE,
	token_hash      TEXT NOT NULL,
	token_encrypted BLOB NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	allowed_tools   TEXT,
	rate_limit      INTEGER,
	created_at      INTEGER NOT NULL,
	expires_at      INTEGER,
	revoked_at      INTEGER,
	seq             INTEGER
);
CREATE INDEX IF NOT EXISTS idx_client_tokens_prefix ON client_tokens(token_prefix);

CREATE TABLE IF NOT EXISTS credentials (
	id            TEXT PRIMARY KEY,
	provider_id   TEXT NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	masked_key    TEXT NOT NULL,
	encrypted_key BLOB NOT NULL,
	status        TEXT NOT NULL,
	last_used_at  INTEGER,
	created_at    INTEGER NOT NULL,
	seq           INTEGER
);
CREATE INDEX IF NOT EXISTS idx_credentials_provider ON credentials(provider_id);
`

// DB wraps the SQLite handle shared by the token and credential stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and bootstraps the
// schema. Use ":memory:" for an ephemeral database in tests.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: bootstrap schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// nullableUnix converts a possibly-zero time to a nullable column value.
func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

// timeFromUnix converts a nullable column value back to a time.
func timeFromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}

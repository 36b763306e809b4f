// Package storage implements the feed and user repositories: SQLite as the
// durable backend and a capped in-memory feed for ephemeral runs.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT,
		city TEXT,
		region TEXT,
		country TEXT DEFAULT 'US',
		lat REAL,
		lon REAL,
		created_at TEXT,
		updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS civic_docs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT,
		url TEXT,
		title TEXT,
		tl_dr TEXT,
		what_changes TEXT,
		what_residents_should_know TEXT,
		actions_for_residents TEXT,
		tags TEXT,
		uncertainty REAL,
		fetched_at TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_civic_docs_user_url ON civic_docs(user_id, url)`,
	`CREATE INDEX IF NOT EXISTS idx_civic_docs_user ON civic_docs(user_id)`,
}

// Open connects to the SQLite file at path and applies the schema. A single
// connection serializes writes; ":memory:" gives a private database.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

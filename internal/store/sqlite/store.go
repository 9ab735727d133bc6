// Package sqlite persists chemicals, tags and saved procedures in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS chemicals (
	id TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	units TEXT NOT NULL,
	max_amount REAL NOT NULL,
	current_amount REAL NOT NULL,
	expiry TEXT,
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	color TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS chemical_tags (
	chemical_id TEXT NOT NULL,
	tag_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (chemical_id, tag_id)
)`, `
CREATE TABLE IF NOT EXISTS procedures (
	id TEXT PRIMARY KEY,
	nickname TEXT NOT NULL,
	payload TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed procedure and inventory store.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set state db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set state db busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize state schema: %w", err)
		}
	}

	return &Store{db: db, clock: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) now() string {
	return s.clock().UTC().Format(time.RFC3339Nano)
}

func (s *Store) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

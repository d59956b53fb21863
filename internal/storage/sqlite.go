package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
	scope TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (scope, key)
);
`

// SQLiteBackend keeps every scope in one items table.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens <dataDir>/muxsite.db, creating the schema if needed.
func NewSQLiteBackend(dataDir string) (*SQLiteBackend, error) {
	if dataDir == "" {
		return nil, errors.New("sqlite storage: data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "muxsite.db"))
	if err != nil {
		return nil, fmt.Errorf("sqlite storage open: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite storage create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Scope returns the namespace for id.
func (b *SQLiteBackend) Scope(id string) (Storage, error) {
	if err := ValidateScope(id); err != nil {
		return nil, err
	}
	return &sqliteStorage{db: b.db, scope: id}, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteStorage struct {
	db    *sql.DB
	scope string
}

func (s *sqliteStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM items WHERE scope = ? AND key = ?`, s.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite storage get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteStorage) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO items (scope, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.scope, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite storage set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStorage) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM items WHERE scope = ? AND key = ?`, s.scope, key); err != nil {
		return fmt.Errorf("sqlite storage remove %q: %w", key, err)
	}
	return nil
}

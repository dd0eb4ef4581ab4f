// Package session provides the SQLite-backed session persistence
// collaborator: the rolling summary per chat session and an append-only
// interaction log. It is owned by the HTTP boundary — the chat pipeline
// never writes it, it only returns the new summary value for the boundary
// to persist here.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Store persists the rolling summary per session and logs each completed
// interaction. Implementations must be safe for concurrent use.
type Store interface {
	// Summary returns the stored rolling summary for the session, or an
	// empty string when the session is unknown.
	Summary(ctx context.Context, sessionID string) (string, error)

	// SaveTurn replaces the session's rolling summary and appends the
	// completed (message, answer) interaction atomically.
	SaveTurn(ctx context.Context, sessionID, message, answer, summary string) error

	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.neonagent/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".neonagent")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("session: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT    PRIMARY KEY,
    summary     TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,  -- Unix timestamp (seconds)
    updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS interactions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL,
    message     TEXT    NOT NULL,
    answer      TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_session_created
    ON interactions (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// Summary returns the stored rolling summary for the session. An unknown
// session yields an empty summary, not an error — a fresh session simply
// has no history yet.
func (s *SQLiteStore) Summary(ctx context.Context, sessionID string) (string, error) {
	const q = `SELECT summary FROM sessions WHERE id = ?`

	var summary string
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: summary: %w", err)
	}
	return summary, nil
}

// SaveTurn replaces the session's rolling summary and appends the completed
// interaction in a single transaction, so a crash never leaves a logged
// interaction without its summary update.
func (s *SQLiteStore) SaveTurn(ctx context.Context, sessionID, message, answer, summary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: save turn begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()

	const upsert = `
INSERT INTO sessions (id, summary, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, sessionID, summary, now, now); err != nil {
		return fmt.Errorf("session: save turn summary: %w", err)
	}

	const insert = `INSERT INTO interactions (session_id, message, answer, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, sessionID, message, answer, now); err != nil {
		return fmt.Errorf("session: save turn interaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: save turn commit: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	return nil
}

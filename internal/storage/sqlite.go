package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists master key salts, content keys, wrapped key grants and
// encrypted messages. A Store returned by InTx is bound to that transaction.
type Store struct {
	db *sql.DB
	q  queryer
}

// Open opens (or creates) a SQLite database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// One connection: keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// New wraps a database handle owned by the caller. The schema is not applied;
// call Migrate if nothing else manages it.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	-- One salt per user; the master key itself is never stored
	CREATE TABLE IF NOT EXISTS user_crypto_keys (
		user_id TEXT PRIMARY KEY,
		master_key_salt TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Legacy content keys, one row per (chat, version)
	CREATE TABLE IF NOT EXISTS chat_keys (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		key_data TEXT NOT NULL,
		key_version INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		UNIQUE(chat_id, key_version)
	);

	-- Content keys wrapped under each member's master key
	CREATE TABLE IF NOT EXISTS user_chat_keys (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		encrypted_chat_key TEXT NOT NULL,
		key_version INTEGER NOT NULL,
		has_access INTEGER NOT NULL DEFAULT 1,
		granted_by TEXT NOT NULL,
		granted_at INTEGER NOT NULL,
		UNIQUE(user_id, chat_id, key_version)
	);
	CREATE INDEX IF NOT EXISTS idx_user_chat_keys_chat ON user_chat_keys(chat_id, key_version);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		encrypted_text TEXT,
		encryption_iv TEXT,
		encryption_key_version INTEGER,
		encryption_algorithm TEXT,
		is_encrypted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	`

	if _, err := s.q.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a transaction. The Store passed to fn must not escape it.
// Nested calls reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database. It is a no-op on a transaction-bound Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

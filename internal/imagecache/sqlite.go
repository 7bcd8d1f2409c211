package imagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps entries across processes in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the cache database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signatures (
		signature TEXT PRIMARY KEY,
		digest TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS outputs (
		digest TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_signatures_digest ON signatures(digest);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Digest(ctx context.Context, signature string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var digest string
	err := s.db.QueryRowContext(ctx, "SELECT digest FROM signatures WHERE signature = ?", signature).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query signature: %w", err)
	}
	return digest, true, nil
}

func (s *SQLiteStore) Output(ctx context.Context, digest string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM outputs WHERE digest = ?", digest).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query output: %w", err)
	}
	return data, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, signature, digest string, output []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO outputs (digest, data) VALUES (?, ?)", digest, output); err != nil {
		return fmt.Errorf("insert output: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO signatures (signature, digest) VALUES (?, ?)", signature, digest); err != nil {
		return fmt.Errorf("insert signature: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

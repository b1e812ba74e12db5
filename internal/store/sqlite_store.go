package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the SQLite-backed data store.
// Thread-safe for concurrent scheduler callbacks.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
-- Dismissed findings. An empty paragraph_hash means global scope.
CREATE TABLE IF NOT EXISTS ignores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    rule_id TEXT NOT NULL,
    matched TEXT NOT NULL,
    paragraph_hash TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    UNIQUE (rule_id, matched, paragraph_hash)
);

CREATE INDEX IF NOT EXISTS idx_ignores_rule ON ignores(rule_id);

-- User dictionary, keyed by surface form.
CREATE TABLE IF NOT EXISTS user_dict (
    surface TEXT PRIMARY KEY,
    pos TEXT NOT NULL,
    reading TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AddIgnore inserts a record and fills in its ID and timestamp.
func (s *SQLiteStore) AddIgnore(rec *IgnoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.db.Exec(`
		INSERT INTO ignores (rule_id, matched, paragraph_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, rec.RuleID, rec.Matched, rec.ParagraphHash, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: add ignore: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: add ignore id: %w", err)
	}
	return nil
}

// RemoveIgnore deletes by ID.
func (s *SQLiteStore) RemoveIgnore(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM ignores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: remove ignore: %w", err)
	}
	return nil
}

// ListIgnores returns all records ordered by ID.
func (s *SQLiteStore) ListIgnores() ([]*IgnoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, rule_id, matched, paragraph_hash, created_at
		FROM ignores ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list ignores: %w", err)
	}
	defer rows.Close()

	var out []*IgnoreRecord
	for rows.Next() {
		rec := &IgnoreRecord{}
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.Matched, &rec.ParagraphHash, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertUserDictEntry inserts or replaces by surface form, preserving the
// original creation time on replace.
func (s *SQLiteStore) UpsertUserDictEntry(e *UserDictEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO user_dict (surface, pos, reading, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (surface) DO UPDATE SET
			pos = excluded.pos,
			reading = excluded.reading,
			updated_at = excluded.updated_at
	`, e.Surface, e.POS, e.Reading, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert user dict: %w", err)
	}
	return nil
}

// DeleteUserDictEntry removes by surface form.
func (s *SQLiteStore) DeleteUserDictEntry(surface string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM user_dict WHERE surface = ?`, surface); err != nil {
		return fmt.Errorf("store: delete user dict: %w", err)
	}
	return nil
}

// ListUserDict returns entries ordered by surface form.
func (s *SQLiteStore) ListUserDict() ([]*UserDictEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT surface, pos, reading, created_at, updated_at
		FROM user_dict ORDER BY surface
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list user dict: %w", err)
	}
	defer rows.Close()

	var out []*UserDictEntry
	for rows.Next() {
		e := &UserDictEntry{}
		if err := rows.Scan(&e.Surface, &e.POS, &e.Reading, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

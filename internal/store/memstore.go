package store

import (
	"fmt"
	"sort"
	"sync"
)

// Storer is the persistence boundary. MemStore backs tests; SQLiteStore is
// the production implementation.
type Storer interface {
	// Ignores
	AddIgnore(rec *IgnoreRecord) error
	RemoveIgnore(id int64) error
	ListIgnores() ([]*IgnoreRecord, error)

	// User dictionary
	UpsertUserDictEntry(e *UserDictEntry) error
	DeleteUserDictEntry(surface string) error
	ListUserDict() ([]*UserDictEntry, error)

	// Lifecycle
	Close() error
}

// MemStore is an in-memory Storer for testing.
type MemStore struct {
	mu      sync.RWMutex
	nextID  int64
	ignores map[int64]*IgnoreRecord
	dict    map[string]*UserDictEntry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:  1,
		ignores: make(map[int64]*IgnoreRecord),
		dict:    make(map[string]*UserDictEntry),
	}
}

// AddIgnore stores a record, assigning its ID. Duplicate scope tuples are
// rejected, matching the SQLite unique constraint.
func (m *MemStore) AddIgnore(rec *IgnoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ignores {
		if existing.RuleID == rec.RuleID && existing.Matched == rec.Matched &&
			existing.ParagraphHash == rec.ParagraphHash {
			return fmt.Errorf("store: duplicate ignore for rule %s", rec.RuleID)
		}
	}
	rec.ID = m.nextID
	m.nextID++
	cp := *rec
	m.ignores[rec.ID] = &cp
	return nil
}

// RemoveIgnore deletes by ID. Unknown IDs are a no-op.
func (m *MemStore) RemoveIgnore(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ignores, id)
	return nil
}

// ListIgnores returns all records ordered by ID.
func (m *MemStore) ListIgnores() ([]*IgnoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*IgnoreRecord, 0, len(m.ignores))
	for _, rec := range m.ignores {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertUserDictEntry inserts or replaces by surface form.
func (m *MemStore) UpsertUserDictEntry(e *UserDictEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	if existing, ok := m.dict[e.Surface]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.dict[e.Surface] = &cp
	return nil
}

// DeleteUserDictEntry removes by surface form.
func (m *MemStore) DeleteUserDictEntry(surface string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dict, surface)
	return nil
}

// ListUserDict returns entries ordered by surface form.
func (m *MemStore) ListUserDict() ([]*UserDictEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*UserDictEntry, 0, len(m.dict))
	for _, e := range m.dict {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Surface < out[j].Surface })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }

package persona

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process persona store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore(records ...Record) *InMemoryStore {
	s := &InMemoryStore{records: make(map[string]Record, len(records))}
	for _, r := range records {
		s.records[r.Slug] = r
	}
	return s
}

// Put inserts or replaces a record. Exists for seeding dev fixtures and tests;
// the production store has no write path.
func (s *InMemoryStore) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Slug] = r
}

func (s *InMemoryStore) BySlug(_ context.Context, slug string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[slug]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) Close() error { return nil }

package memory

import (
	"context"
	"sync"
)

// Storage is an in-process implementation of storage.Storage.
type Storage struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{records: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *Storage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a copy of value under key.
func (s *Storage) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.records[key] = v
	s.mu.Unlock()
	return nil
}

// Remove deletes key.
func (s *Storage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

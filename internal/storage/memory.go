package storage

import (
	"context"
	"sync"
)

const memoryScheme = "mem://"

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Store saves a copy of data.
func (s *MemoryStore) Store(_ context.Context, key string, data []byte, _ string) (string, error) {
	key = SanitizeKey(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	locator := memoryScheme + key
	s.mu.Lock()
	s.objects[locator] = append([]byte(nil), data...)
	s.mu.Unlock()
	return locator, nil
}

// Load returns a copy of the stored bytes.
func (s *MemoryStore) Load(_ context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[locator]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Delete drops the object behind locator.
func (s *MemoryStore) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	delete(s.objects, locator)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

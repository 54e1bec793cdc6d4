package eventing

import (
	"context"
	"sync"
)

// ProcessedStore records which consumers have handled which events.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

type processedKey struct {
	eventID  string
	consumer string
}

// MemoryProcessedStore is a single-process ProcessedStore.
type MemoryProcessedStore struct {
	mu   sync.RWMutex
	seen map[processedKey]struct{}
}

// NewMemoryProcessedStore constructs an empty store.
func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[processedKey]struct{})}
}

// HasProcessed reports whether consumerName handled eventID.
func (s *MemoryProcessedStore) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[processedKey{eventID, consumerName}]
	return ok, nil
}

// MarkProcessed records that consumerName handled eventID.
func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[processedKey{eventID, consumerName}] = struct{}{}
	return nil
}

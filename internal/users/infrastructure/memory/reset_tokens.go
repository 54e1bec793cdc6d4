package memory

import (
	"context"
	"sync"
	"time"

	users "confreg/internal/users/domain"
)

type resetEntry struct {
	userID    string
	expiresAt time.Time
}

// ResetTokenStore is an in-memory users.ResetTokenStore.
type ResetTokenStore struct {
	mu      sync.Mutex
	entries map[string]resetEntry
	now     func() time.Time
}

// NewResetTokenStore constructs an empty store.
func NewResetTokenStore() *ResetTokenStore {
	return &ResetTokenStore{entries: make(map[string]resetEntry), now: time.Now}
}

// WithClock overrides the store clock.
func (s *ResetTokenStore) WithClock(now func() time.Time) *ResetTokenStore {
	s.now = now
	return s
}

// Save stores token for userID until ttl elapses.
func (s *ResetTokenStore) Save(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = resetEntry{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

// Lookup returns the user for a live token.
func (s *ResetTokenStore) Lookup(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(token)
}

// Consume returns the user for a live token and removes it.
func (s *ResetTokenStore) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, err := s.live(token)
	if err != nil {
		return "", err
	}
	delete(s.entries, token)
	return userID, nil
}

func (s *ResetTokenStore) live(token string) (string, error) {
	entry, ok := s.entries[token]
	if !ok {
		return "", users.ErrInvalidResetToken
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, token)
		return "", users.ErrInvalidResetToken
	}
	return entry.userID, nil
}

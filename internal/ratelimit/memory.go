package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process sliding window store.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*slidingWindow
	now       func() time.Time
	lastSweep time.Time
}

type slidingWindow struct {
	hits []time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*slidingWindow), now: time.Now}
}

// Allow records a hit for key when it fits within limit per window.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= window {
		s.sweep(now, window)
	}
	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.cleanup(now, window)

	if len(sw.hits) < limit {
		sw.hits = append(sw.hits, now)
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - len(sw.hits),
			ResetAt:   sw.hits[0].Add(window),
		}, nil
	}

	resetAt := now.Add(window)
	if len(sw.hits) > 0 {
		resetAt = sw.hits[0].Add(window)
	}
	return &Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfterSeconds(now, resetAt),
	}, nil
}

// Reset forgets all hits for key.
func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
}

// sweep drops windows whose hits have all expired, at most once per window.
func (s *MemoryStore) sweep(now time.Time, window time.Duration) {
	for key, sw := range s.windows {
		sw.cleanup(now, window)
		if len(sw.hits) == 0 {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}

func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.hits); i++ {
		if sw.hits[i].After(cutoff) {
			break
		}
	}
	sw.hits = sw.hits[i:]
}

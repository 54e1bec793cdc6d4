package eventing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outbox status values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusDead    = "dead"
)

// OutboxRecord is a stored envelope awaiting delivery.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
	Attempts int
}

// OutboxWriter inserts envelopes.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Outbox stores envelopes until every consumer has handled them.
type Outbox interface {
	OutboxWriter
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed records a failed attempt. dead stops further retries.
	MarkFailed(ctx context.Context, id, reason string, dead bool) error
}

type memoryRecord struct {
	OutboxRecord
	status    string
	lastError string
	createdAt time.Time
}

// MemoryOutbox is a single-process Outbox.
type MemoryOutbox struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	now     func() time.Time
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{records: make(map[string]*memoryRecord), now: time.Now}
}

// Insert stores env as pending.
func (o *MemoryOutbox) Insert(_ context.Context, env Envelope) (string, error) {
	if env.EventID == "" {
		return "", errors.New("outbox: empty event id")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	id := uuid.NewString()
	o.records[id] = &memoryRecord{
		OutboxRecord: OutboxRecord{ID: id, Envelope: env},
		status:       StatusPending,
		createdAt:    o.now(),
	}
	return id, nil
}

// ListPending returns up to limit pending records, oldest first.
func (o *MemoryOutbox) ListPending(_ context.Context, limit int) ([]OutboxRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pending := make([]*memoryRecord, 0)
	for _, r := range o.records {
		if r.status == StatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].createdAt.Equal(pending[j].createdAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].createdAt.Before(pending[j].createdAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]OutboxRecord, 0, len(pending))
	for _, r := range pending {
		out = append(out, r.OutboxRecord)
	}
	return out, nil
}

// MarkSent marks id delivered.
func (o *MemoryOutbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.records[id]
	if !ok {
		return errors.New("outbox: unknown record " + id)
	}
	r.status = StatusSent
	return nil
}

// MarkFailed records a failed attempt on id.
func (o *MemoryOutbox) MarkFailed(_ context.Context, id, reason string, dead bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.records[id]
	if !ok {
		return errors.New("outbox: unknown record " + id)
	}
	r.Attempts++
	r.lastError = reason
	if dead {
		r.status = StatusDead
	}
	return nil
}

// Status returns the status and attempt count of id.
func (o *MemoryOutbox) Status(id string) (string, int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.records[id]
	if !ok {
		return "", 0, false
	}
	return r.status, r.Attempts, true
}

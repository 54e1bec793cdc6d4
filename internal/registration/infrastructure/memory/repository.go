package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	registration "confreg/internal/registration/domain"
)

// Repository is an in-memory registration.Repository.
type Repository struct {
	mu   sync.RWMutex
	regs map[string]registration.Registration
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{regs: make(map[string]registration.Registration)}
}

// Create stores reg.
func (r *Repository) Create(_ context.Context, reg *registration.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg.ID] = *reg
	return nil
}

// Get returns the registration with id.
func (r *Repository) Get(_ context.Context, id string) (*registration.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, registration.ErrNotFound
	}
	return &reg, nil
}

// ListByUser returns the registrations of userID, newest first.
func (r *Repository) ListByUser(_ context.Context, userID string) ([]registration.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registration.Registration, 0)
	for _, reg := range r.regs {
		if reg.UserID == userID {
			out = append(out, reg)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAll returns every registration, newest first.
func (r *Repository) ListAll(_ context.Context) ([]registration.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registration.Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, reg)
	}
	sortNewestFirst(out)
	return out, nil
}

// UpdateStatus transitions id from one status to another.
func (r *Repository) UpdateStatus(_ context.Context, id string, from, to registration.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return registration.ErrNotFound
	}
	if reg.Status != from {
		return registration.ErrAlreadyCancelled
	}
	reg.Status = to
	reg.UpdatedAt = at
	r.regs[id] = reg
	return nil
}

func sortNewestFirst(regs []registration.Registration) {
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
}

package memory

import (
	"context"
	"sync"
	"time"

	"confreg/internal/auth"
	users "confreg/internal/users/domain"
)

// UserRepository is an in-memory users.Repository.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]users.User
	byEmail map[string]string
}

// NewUserRepository constructs an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[string]users.User), byEmail: make(map[string]string)}
}

// Create stores user, rejecting duplicate emails.
func (r *UserRepository) Create(_ context.Context, user *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return users.ErrEmailTaken
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

// FindByID returns the user with id.
func (r *UserRepository) FindByID(_ context.Context, id string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

// FindByEmail returns the user with email.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

// UpdatePassword replaces the stored hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = at
	r.byID[id] = u
	return nil
}

// UpdateRole changes the role.
func (r *UserRepository) UpdateRole(_ context.Context, id string, role auth.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = at
	r.byID[id] = u
	return nil
}

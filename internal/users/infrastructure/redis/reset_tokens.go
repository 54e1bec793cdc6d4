package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	users "confreg/internal/users/domain"
)

const resetKeyPrefix = "confreg:reset:"

// ResetTokenStore keeps reset tokens in Redis with a TTL.
type ResetTokenStore struct {
	client goredis.UniversalClient
}

// NewResetTokenStore constructs a Redis-backed store.
func NewResetTokenStore(client goredis.UniversalClient) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

// Save stores token for userID until ttl elapses.
func (s *ResetTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, resetKeyPrefix+token, userID, ttl).Err()
}

// Lookup returns the user for a live token.
func (s *ResetTokenStore) Lookup(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, resetKeyPrefix+token).Result()
	return mapResult(userID, err)
}

// Consume returns the user for a live token and removes it atomically.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	return mapResult(userID, err)
}

func mapResult(userID string, err error) (string, error) {
	if errors.Is(err, goredis.Nil) {
		return "", users.ErrInvalidResetToken
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "confreg:ratelimit:"

// slidingWindowScript trims the window, then adds the hit only when it fits.
// Returns {allowed, count, oldest score}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[4])
	redis.call('PEXPIRE', key, ARGV[5])
	count = count + 1
	allowed = 1
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = ARGV[1]
if oldest[2] then
	first = oldest[2]
end
return {allowed, count, first}
`)

// RedisStore keeps sliding windows in sorted sets shared across instances.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow records a hit for key when it fits within limit per window.
// The check and the hit run in one script, so concurrent callers cannot overshoot limit.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := s.now()
	ttl := window.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	vals, err := slidingWindowScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		strconv.FormatInt(now.UnixNano(), 10),
		strconv.FormatInt(window.Nanoseconds(), 10),
		limit,
		uuid.NewString(),
		ttl,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("ratelimit: run window script: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("ratelimit: unexpected script reply %v", vals)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	first, _ := vals[2].(string)

	resetAt := now.Add(window)
	if score, err := strconv.ParseFloat(first, 64); err == nil {
		resetAt = time.Unix(0, int64(score)).Add(window)
	}

	if allowed != 1 {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}

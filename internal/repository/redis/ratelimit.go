package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "ratelimit:"
)

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
	}
}

// Allow counts one request for key in the current one-minute window.
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	windowStart := time.Now().Truncate(time.Minute)
	windowEnd := windowStart.Add(time.Minute)
	fullKey := windowKey(key, windowStart)

	pipe := r.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	// keep the counter a little past the window so late requests still see it
	pipe.ExpireNX(ctx, fullKey, 2*time.Minute)

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	limit := int64(r.Limit())
	remaining := int(limit - count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= limit

	return allowed, remaining, windowEnd, nil
}

// Limit is the number of requests allowed per window
func (r *RateLimiter) Limit() int {
	return r.requestsPerMinute + r.burst
}

// Reset resets the current window counter for a key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, windowKey(key, time.Now().Truncate(time.Minute))).Err()
}

func windowKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())
}

package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	sqlCachePrefix     = "sql:"
	DefaultSQLCacheTTL = 10 * time.Minute
)

// SQLCache caches generated SQL per provider, model and prompt
type SQLCache struct {
	client *Client
	ttl    time.Duration
}

// NewSQLCache creates a new SQL cache. A non-positive ttl selects DefaultSQLCacheTTL.
func NewSQLCache(client *Client, ttl time.Duration) *SQLCache {
	if ttl <= 0 {
		ttl = DefaultSQLCacheTTL
	}
	return &SQLCache{client: client, ttl: ttl}
}

// SQLCacheKey derives the cache key for a prompt. Prompts differing only in case or
// surrounding whitespace share a key.
func SQLCacheKey(provider, model, prompt string) string {
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	sum := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + normalized))
	return sqlCachePrefix + hex.EncodeToString(sum[:])
}

// Get retrieves a cached response. A miss returns nil without error.
func (c *SQLCache) Get(ctx context.Context, provider, model, prompt string) (*domain.SQLResponse, error) {
	data, err := c.client.rdb.Get(ctx, SQLCacheKey(provider, model, prompt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sql cache: %w", err)
	}

	var resp domain.SQLResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached sql: %w", err)
	}

	return &resp, nil
}

// Set caches a generated response
func (c *SQLCache) Set(ctx context.Context, provider, model, prompt string, resp *domain.SQLResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal sql response: %w", err)
	}

	return c.client.rdb.Set(ctx, SQLCacheKey(provider, model, prompt), data, c.ttl).Err()
}

// FlushAll removes all cached SQL
func (c *SQLCache) FlushAll(ctx context.Context) (int64, error) {
	pattern := sqlCachePrefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResponseCache implements ResponseCache on Redis. It is an opt-in
// deployment backend; the memory cache stays the default.
type RedisResponseCache struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisResponseCache creates a Redis-backed response cache.
func NewRedisResponseCache(client *redis.Client, config RedisConfig) *RedisResponseCache {
	return &RedisResponseCache{
		client: client,
		prefix: config.Prefix,
	}
}

// key builds the final Redis key with prefix.
func (c *RedisResponseCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves a payload from Redis.
// On Redis error, it returns (nil, false, err) so the caller can log and
// treat it as a miss.
func (c *RedisResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		// Key does not exist - clean miss.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	return res, true, nil
}

// Set stores a payload in Redis with TTL.
// If ttl <= 0, it does nothing (no caching).
func (c *RedisResponseCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if ttl <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, c.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Sweep is a no-op: Redis drops entries at their TTL on its own, so nothing
// lingers past the freshness window.
func (c *RedisResponseCache) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	return 0, nil
}

package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend string
	TTL     time.Duration
	SoftCap int
	Prefix  string
}

func NewResponseCache(cfg Config, redisClient *redis.Client) ResponseCache {
	switch cfg.Backend {
	case "redis":
		return NewRedisResponseCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	default:
		return NewMemoryResponseCache(MemoryConfig{
			SoftCap: cfg.SoftCap,
			MaxAge:  2 * cfg.TTL,
		})
	}
}

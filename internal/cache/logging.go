package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"scoregate/internal/metrics"
	"scoregate/pkg/logging/logging"
)

// LoggingResponseCache wraps a ResponseCache with logging + metrics.
type LoggingResponseCache struct {
	inner ResponseCache
}

// NewLoggingResponseCache returns a cache that logs and records metrics.
func NewLoggingResponseCache(inner ResponseCache) ResponseCache {
	return &LoggingResponseCache{inner: inner}
}

func (c *LoggingResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	payload, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	default:
		metrics.CacheMissesTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		logger.Error("response_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("response_cache_get", fields...)
	}

	return payload, ok, err
}

func (c *LoggingResponseCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, payload, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.Int("payload_bytes", len(payload)),
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		logger.Error("response_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Info("response_cache_set", fields...)
	}

	return err
}

func (c *LoggingResponseCache) Sweep(ctx context.Context) (int, error) {
	removed, err := c.inner.Sweep(ctx)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("response_cache_sweep", zap.Error(err))
	} else if removed > 0 {
		logger.Info("response_cache_sweep", zap.Int("removed", removed))
	}

	return removed, err
}

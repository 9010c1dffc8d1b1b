package cache

import (
	"context"
	"time"
)

// RequestKey identifies one logical upstream request: an endpoint path plus
// its normalized query parameters, hashed. Equal requests always produce
// equal keys regardless of parameter order.
type RequestKey struct {
	Endpoint string
	Hash     string
}

// String converts the structured key into the final string used in Redis/map.
func (k RequestKey) String() string {
	// resp:<HASH_HEX>
	return "resp:" + k.Hash
}

// ResponseCache stores raw upstream payloads keyed by request signature.
// Implemented by the memory cache (default) and the Redis cache.
//
// Sweep is the capacity guard: when the backend holds more entries than its
// soft cap it removes the ones older than the configured max age. Fresh
// entries are never removed, whatever the entry count.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Sweep(ctx context.Context) (int, error)
}

// Defaults for the response cache. The freshness window is 60s; the sweep
// removes entries older than twice that, so staleness never exceeds two
// minutes even when sweeps lag.
const (
	DefaultTTL     = 60 * time.Second
	DefaultSoftCap = 100
)

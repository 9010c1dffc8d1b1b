package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	storedAt  time.Time
	expiresAt time.Time
}

// MemoryResponseCache is the default, instance-local backend. A cold process
// always starts empty and the contents die with it; there is no persistence
// and no cross-instance sharing.
//
// There is no background janitor. Expired entries are dropped lazily when
// read, and Sweep (called by the proxy service after successful requests)
// removes aged-out entries once the soft cap is exceeded.
type MemoryResponseCache struct {
	mu      sync.RWMutex
	items   map[string]memoryEntry
	softCap int
	maxAge  time.Duration

	// overridable in tests
	now func() time.Time
}

// MemoryConfig bounds the memory backend. Zero values fall back to the
// package defaults: soft cap 100 entries, max age 2×DefaultTTL.
type MemoryConfig struct {
	SoftCap int
	MaxAge  time.Duration
}

func NewMemoryResponseCache(cfg MemoryConfig) *MemoryResponseCache {
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = DefaultSoftCap
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 2 * DefaultTTL
	}

	return &MemoryResponseCache{
		items:   make(map[string]memoryEntry),
		softCap: cfg.SoftCap,
		maxAge:  cfg.MaxAge,
		now:     time.Now,
	}
}

// Get retrieves a payload if it is still fresh. An entry whose TTL has
// passed counts as a miss and is deleted in place.
func (c *MemoryResponseCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := c.now()
	if !now.Before(entry.expiresAt) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && !now.Before(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.payload, true, nil
}

// Set stores payload under key for ttl. The entry is replaced wholesale;
// ttl <= 0 deletes instead.
func (c *MemoryResponseCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}

	// Copy to decouple from caller's buffer
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	storedAt := c.now()

	c.mu.Lock()
	c.items[key] = memoryEntry{
		payload:   payloadCopy,
		storedAt:  storedAt,
		expiresAt: storedAt.Add(ttl),
	}
	c.mu.Unlock()

	return nil
}

// Sweep removes entries older than the max age, but only when the map has
// grown past the soft cap. The check is purely age-based: entries written
// recently survive regardless of how full the cache is.
func (c *MemoryResponseCache) Sweep(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) <= c.softCap {
		return 0, nil
	}

	cutoff := c.now().Add(-c.maxAge)
	removed := 0
	for k, e := range c.items {
		if e.storedAt.Before(cutoff) {
			delete(c.items, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of items currently in the cache.
func (c *MemoryResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all items from cache. Useful for tests or manual resets.
func (c *MemoryResponseCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]memoryEntry)
	c.mu.Unlock()
}

package maps

import (
	"sync"
	"time"
)

// defaultCacheBound is the entry count past which Set sweeps expired entries.
const defaultCacheBound = 500

type cacheEntry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a time-boxed map from derived string keys to values. Entries
// older than the TTL are treated as absent and evicted on read; Set sweeps
// expired entries once the entry count passes the bound. Safe for
// concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	bound   int
	now     func() time.Time
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		bound:   defaultCacheBound,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or a miss if the entry is absent
// or older than the TTL. Stale entries are evicted on the spot.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if now.Sub(entry.insertedAt) > c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with the current timestamp. When the cache
// grows past its bound it removes expired entries only, never live ones.
func (c *Cache[V]) Set(key string, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[V]{value: value, insertedAt: now}
	if len(c.entries) <= c.bound {
		return
	}
	for k, entry := range c.entries {
		if now.Sub(entry.insertedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of stored entries, stale ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

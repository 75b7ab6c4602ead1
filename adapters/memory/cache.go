// Package memory provides in-memory adapter implementations.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/samgate/adapters/clock"
	"github.com/artpar/samgate/ports"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means never
}

// Cache is an in-memory implementation of ports.Cache. Expired entries are
// dropped lazily on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   ports.Clock
}

// NewCache creates a new in-memory cache.
func NewCache() *Cache {
	return NewCacheWithClock(clock.Real{})
}

// NewCacheWithClock creates a cache reading time from clk, for tests that
// control expiry.
func NewCacheWithClock(clk ports.Clock) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		clock:   clk,
	}
}

// Get retrieves a value; ok is false on a miss or after expiry.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a value with a time-to-live. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Invalidate removes a key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries (for testing).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure interface compliance.
var _ ports.Cache = (*Cache)(nil)

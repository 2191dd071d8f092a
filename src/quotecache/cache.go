// Package quotecache holds recently fetched bar series so a cycle does not
// hit the providers twice for the same (symbol, interval).
package quotecache

import (
	"sync"
	"time"

	"papertrader/src/model"
)

type entry struct {
	bars      []model.Bar
	fetchedAt time.Time
}

// Cache is a TTL store keyed by (symbol, interval). Reads are safe for
// concurrent use; writes are idempotent upserts.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func key(symbol, interval string) string {
	return symbol + "|" + interval
}

// Get returns the cached series if one exists and is younger than the TTL.
func (c *Cache) Get(symbol, interval string) ([]model.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(symbol, interval)]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.bars, true
}

// GetStale returns the cached series regardless of age. The fetcher uses it
// as a degraded last resort once every provider has failed.
func (c *Cache) GetStale(symbol, interval string) ([]model.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(symbol, interval)]
	if !ok {
		return nil, false
	}
	return e.bars, true
}

// Put writes the series through with a fresh TTL.
func (c *Cache) Put(symbol, interval string, bars []model.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key(symbol, interval)] = entry{
		bars:      bars,
		fetchedAt: c.now(),
	}
}

// SetNowFunc overrides the clock. Test hook.
func (c *Cache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

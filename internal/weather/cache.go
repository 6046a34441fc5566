package weather

import (
	"sync"
	"time"
)

// Cache holds the single most recent snapshot. There is deliberately no
// per-city keying: the irrigation path looks up one property at a time and
// reuses whatever was fetched last within the TTL.
type Cache struct {
	mu        sync.RWMutex
	snap      Snapshot
	fetchedAt time.Time
	ttl       time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

func (c *Cache) Get() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || time.Since(c.fetchedAt) > c.ttl {
		return Snapshot{}, false
	}
	return c.snap, true
}

func (c *Cache) Set(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.fetchedAt = time.Now()
}

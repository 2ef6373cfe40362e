package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a mutex-guarded in-process cache for tests and redis-less
// deployments. Expired entries are dropped lazily on access.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration

	now func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, operation, model, content string, params map[string]string) (string, bool) {
	key := Key(operation, model, content, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return "", false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return "", false
	}
	entry.HitCount++
	return entry.Payload, true
}

func (c *MemoryCache) Set(ctx context.Context, operation, model, content string, params map[string]string, payload string) {
	key := Key(operation, model, content, params)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// HitCount reports the hit counter for an entry, for observability.
func (c *MemoryCache) HitCount(operation, model, content string, params map[string]string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.entries[Key(operation, model, content, params)]; exists {
		return entry.HitCount
	}
	return 0
}

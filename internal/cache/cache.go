package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is an in-memory key-value store with per-entry expiry. Eviction is
// purely lazy: an expired entry is deleted the next time it is read, there
// is no background sweep.
type Cache struct {
	mu         sync.RWMutex
	defaultTTL time.Duration
	entries    map[string]entry
}

func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		defaultTTL: defaultTTL,
		entries:    make(map[string]entry),
	}
}

// Set stores value under key with the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key, expiring at now + ttl. An existing
// entry is overwritten.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Get returns the value stored under key if it has not expired. Reading an
// expired entry evicts it and reports a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock, the entry may have been replaced.
		if e2, ok := c.entries[key]; ok && time.Now().After(e2.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Delete removes key regardless of expiry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

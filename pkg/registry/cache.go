package registry

import (
	"sync"
	"time"
)

// AddressCache holds resolved connected-chain addresses. Only positive
// results are stored: a solver that is not registered yet may register later.
type AddressCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedAddress
	cacheTTL time.Duration
	now      func() time.Time
}

// cachedAddress is a resolved address with the time it was fetched
type cachedAddress struct {
	address   string
	timestamp time.Time
}

// NewAddressCache creates a cache. A zero TTL disables caching.
func NewAddressCache(cacheTTL time.Duration) *AddressCache {
	return &AddressCache{
		cache:    make(map[string]*cachedAddress),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Get returns a cached address if it is still fresh
func (c *AddressCache) Get(key string) (string, bool) {
	if c.cacheTTL <= 0 {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[key]
	if !exists {
		return "", false
	}
	if c.now().Sub(cached.timestamp) > c.cacheTTL {
		return "", false
	}
	return cached.address, true
}

// Set stores an address
func (c *AddressCache) Set(key, address string) {
	if c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cachedAddress{
		address:   address,
		timestamp: c.now(),
	}
}

// Clear removes all cached entries
func (c *AddressCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedAddress)
}

// Len returns the number of entries, fresh or stale
func (c *AddressCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

package cache

import (
	"sync"
	"time"
)

// entry pairs a memoized value with the time it was stored.
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a TTL-bounded memoization layer in front of the store. It is an
// optimization, never an authority: a miss means the caller must fall through
// to the source of truth and repopulate with Put. Lookups never fail.
//
// Access to a given key is synchronized internally; callers hold no locks.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]entry[V]
	now     func() time.Time
}

// New constructs a cache whose entries are ignored once older than ttl.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the memoized value for key if present and fresh. Stale entries
// are dropped on the way out so they cannot resurrect later.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the current timestamp, overwriting any
// prior entry.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// Invalidate removes the entry for key immediately. The next Get for the same
// key is a guaranteed miss until a fresh Put.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

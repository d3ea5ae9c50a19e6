// Package usages models "where is this used" queries: a list of
// usage hits with selection callbacks, and a short-lived cache so
// repeated lookups during editing stay cheap.
package usages

import (
	"sync"
	"time"
)

// ExpiringCache caches values for a fixed time to live. An expired
// entry reads as a miss; putting a key again restarts its clock.
type ExpiringCache[K comparable, V any] struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[K]entry[V]
	now func() time.Time
}

type entry[V any] struct {
	value V
	added time.Time
}

// NewExpiringCache creates a cache whose entries live for ttl.
func NewExpiringCache[K comparable, V any](ttl time.Duration) *ExpiringCache[K, V] {
	return &ExpiringCache[K, V]{
		ttl: ttl,
		m:   make(map[K]entry[V]),
		now: time.Now,
	}
}

// Get returns the cached value and whether it is still fresh. Expired
// entries are removed on access.
func (c *ExpiringCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.added) > c.ttl {
		delete(c.m, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores a value, restarting its time to live.
func (c *ExpiringCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry[V]{value: value, added: c.now()}
}

// Invalidate drops a single key.
func (c *ExpiringCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Clear drops everything.
func (c *ExpiringCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[K]entry[V])
}

// Len returns the number of entries, expired ones included.
func (c *ExpiringCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

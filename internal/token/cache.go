package token

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val    V
	stored time.Time
}

// ttlCache is a map whose entries expire ttl after they are written.
// Values are replaced whole, never mutated in place.
type ttlCache[K comparable, V any] struct {
	mu  sync.RWMutex
	m   map[K]entry[V]
	ttl time.Duration
	now func() time.Time
}

func newTTLCache[K comparable, V any](ttl time.Duration, now func() time.Time) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		m:   make(map[K]entry[V]),
		ttl: ttl,
		now: now,
	}
}

// Get returns the value for k if present and younger than ttl.
func (c *ttlCache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[k]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.stored) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Put stores v under k, stamped with the current time.
func (c *ttlCache[K, V]) Put(k K, v V) {
	c.mu.Lock()
	c.m[k] = entry[V]{val: v, stored: c.now()}
	c.mu.Unlock()
}

// Replace swaps the value for k while keeping its original timestamp, so
// an in-place reclassification does not extend the entry's life.
func (c *ttlCache[K, V]) Replace(k K, fn func(V) V) {
	c.mu.Lock()
	if e, ok := c.m[k]; ok {
		c.m[k] = entry[V]{val: fn(e.val), stored: e.stored}
	}
	c.mu.Unlock()
}

// Sweep drops expired entries and returns how many were removed.
func (c *ttlCache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.m {
		if now.Sub(e.stored) >= c.ttl {
			delete(c.m, k)
			n++
		}
	}
	return n
}

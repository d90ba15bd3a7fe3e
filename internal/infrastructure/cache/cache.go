// Package cache implements the time-and-capacity-bounded store for remote
// resources, keyed by collection identity. It is pure bookkeeping: no network
// access, no side effects beyond its own storage.
package cache

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is the freshness window applied when none is configured.
	DefaultTTL = time.Minute
	// DefaultMaxEntries bounds the cache when no capacity is configured.
	DefaultMaxEntries = 50
)

// Entry pairs a cached value with the instant it was fetched. An entry is
// fresh iff now-FetchedAt < TTL.
type Entry[V any] struct {
	Key       string
	Value     V
	FetchedAt time.Time
}

// Cache is an in-memory bounded cache for one remote resource kind. It is
// created once per session, injected where needed, and torn down on
// collection switch.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]Entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New builds a cache with the given freshness window and capacity.
// Non-positive arguments fall back to the defaults.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache[V]{
		entries:    make(map[string]Entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached value for key. A request is a hit iff an entry
// exists, is fresh, and forceRefresh is false.
func (c *Cache[V]) Get(key string, forceRefresh bool) (V, bool) {
	var zero V
	if key == "" || forceRefresh {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		return zero, false
	}
	return entry.Value, true
}

// Put stores value under key stamped with the current time, then evicts:
// expired entries first, then oldest-fetched entries until at capacity.
func (c *Cache[V]) Put(key string, value V) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[V]{Key: key, Value: value, FetchedAt: c.now()}
	c.evict()
}

// Invalidate removes an entry unconditionally so the next read refetches.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) evict() {
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.FetchedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.FetchedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.FetchedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

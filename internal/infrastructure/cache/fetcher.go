package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the remote resource for key.
type FetchFunc[V any] func(ctx context.Context, key string) (V, error)

// Fetcher couples a cache with its loader and collapses overlapping fetches
// for the same key into a single remote call, so a manual refresh racing a
// scheduled one cannot overwrite fresher data with a stale completion.
type Fetcher[V any] struct {
	cache *Cache[V]
	fetch FetchFunc[V]
	group singleflight.Group
}

// NewFetcher wires a fetcher around cache.
func NewFetcher[V any](c *Cache[V], fetch FetchFunc[V]) *Fetcher[V] {
	return &Fetcher[V]{cache: c, fetch: fetch}
}

// Get returns the cached value when fresh, otherwise loads it. Concurrent
// callers for one key share a single in-flight load and its result.
func (f *Fetcher[V]) Get(ctx context.Context, key string, forceRefresh bool) (V, error) {
	if value, hit := f.cache.Get(key, forceRefresh); hit {
		return value, nil
	}
	result, err, _ := f.group.Do(key, func() (interface{}, error) {
		value, err := f.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		f.cache.Put(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Invalidate drops the cache entry for key.
func (f *Fetcher[V]) Invalidate(key string) {
	f.cache.Invalidate(key)
}

package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache wraps a loader function with a cache: hits return the
// cached value, misses call the loader and store its result. Loader errors
// are never cached, so a failed lookup retries on the next call.
type ReadThroughCache[V any, I any] struct {
	cache     CacheManager[V]
	load      func(ctx context.Context, input I) (V, error)
	skipCache bool
}

// NewReadThroughCache builds a read-through cache over load. With
// skipCache set every Get goes straight to the loader, which keeps test
// and low-traffic setups free of staleness concerns.
func NewReadThroughCache[V any, I any](
	cache CacheManager[V],
	load func(ctx context.Context, input I) (V, error),
	skipCache bool,
) *ReadThroughCache[V, I] {
	return &ReadThroughCache[V, I]{
		cache:     cache,
		load:      load,
		skipCache: skipCache,
	}
}

// Get returns the cached value for key, loading and caching it on a miss.
func (r *ReadThroughCache[V, I]) Get(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.skipCache {
		return r.load(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	return r.loadAndStore(ctx, key, input, ttl)
}

// GetWithRefresh behaves like Get but extends the TTL on a hit, keeping
// frequently resolved entries warm.
func (r *ReadThroughCache[V, I]) GetWithRefresh(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.skipCache {
		return r.load(ctx, input)
	}

	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, nil
	}

	return r.loadAndStore(ctx, key, input, ttl)
}

func (r *ReadThroughCache[V, I]) loadAndStore(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	value, err := r.load(ctx, input)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}

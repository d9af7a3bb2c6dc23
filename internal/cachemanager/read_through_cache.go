package cachemanager

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc computes a value on a cache miss.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// ReadThroughCache loads missing entries through a LoadFunc. Concurrent
// misses for the same key share one load.
type ReadThroughCache[K ~string, V any] struct {
	cache CacheManager[K, V]
	ttl   time.Duration
	group singleflight.Group
}

// NewReadThroughCache wraps cache; loaded values are stored for ttl.
func NewReadThroughCache[K ~string, V any](cache CacheManager[K, V], ttl time.Duration) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{cache: cache, ttl: ttl}
}

// Get returns the cached value for key or loads it. Load errors are not
// cached.
func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K, load LoadFunc[V]) (V, error) {
	if v, ok := r.cache.Get(ctx, key); ok {
		return v, nil
	}

	res, err, _ := r.group.Do(string(key), func() (any, error) {
		if v, ok := r.cache.Get(ctx, key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		r.cache.Set(ctx, key, v, r.ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate drops key so the next Get reloads it.
func (r *ReadThroughCache[K, V]) Invalidate(ctx context.Context, key K) {
	r.cache.Delete(ctx, key)
}

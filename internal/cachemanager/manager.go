// Package cachemanager provides a small TTL cache layer used to keep hot
// registry rows out of the database on the resolution path.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a string-keyed TTL cache. Registry cache keys are all
// derived strings (scope/name pairs, references), so keys are not generic.
type CacheManager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}

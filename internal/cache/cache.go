// Package cache fronts expensive aggregate reads with a TTL key/value store.
// Values are stored JSON-encoded so the memory and Redis backends behave alike.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cache is a TTL key/value store
type Cache interface {
	// Get decodes the value at key into dest. found is false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string, dest interface{}) (found bool, err error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Remember returns the cached value at key, or computes it with load and
// stores it for ttl. Cache failures are logged and fall through to load.
func Remember[T any](ctx context.Context, c Cache, logger *zap.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := c.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

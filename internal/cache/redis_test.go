package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Redis, e.g. REDIS_TEST_ADDR=localhost:6379
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	client, err := cache.NewRedisClient(ctx, &config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewRedisCache(client, "pipeline-test:")
	t.Cleanup(func() { _ = c.Delete(ctx, "counts") })

	require.NoError(t, c.Set(ctx, "counts", map[string]int{"new": 3}, time.Minute))

	var got map[string]int
	found, err := c.Get(ctx, "counts", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got["new"])

	require.NoError(t, c.Delete(ctx, "counts"))
	found, err = c.Get(ctx, "counts", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache() (*cache.MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return cache.NewMemoryCache(cache.WithClock(clock.Now)), clock
}

type counts struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	require.NoError(t, c.Set(ctx, "k", counts{Counts: map[string]int64{"new": 2}, Total: 2}, time.Minute))

	var got counts
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), got.Total)
	assert.Equal(t, int64(2), got.Counts["new"])

	found, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	require.NoError(t, c.Set(ctx, "short", 1, 2*time.Minute))
	require.NoError(t, c.Set(ctx, "long", 2, 30*time.Minute))

	clock.Advance(2 * time.Minute)

	var v int
	found, err := c.Get(ctx, "short", &v)
	require.NoError(t, err)
	assert.False(t, found, "entry at its ttl is expired")

	found, err = c.Get(ctx, "long", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v)
}

func TestMemoryCache_DeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	require.NoError(t, c.Set(ctx, "a", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "y", time.Minute))
	require.NoError(t, c.Set(ctx, "c", "z", time.Hour))

	require.NoError(t, c.Delete(ctx, "a", "never-set"))
	assert.Equal(t, 2, c.Len())

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_RejectsNonPositiveTTL(t *testing.T) {
	c, _ := newTestCache()
	assert.Error(t, c.Set(context.Background(), "k", 1, 0))
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Set(ctx, "shared", i, time.Minute)
				var v int
				_, _ = c.Get(ctx, "shared", &v)
				_ = c.Delete(ctx, "shared")
			}
		}(i)
	}
	wg.Wait()
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()
	logger := zap.NewNop()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return calls * 10, nil
	}

	v, err := cache.Remember(ctx, c, logger, "agg", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = cache.Remember(ctx, c, logger, "agg", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 10, v, "served from cache")
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Delete(ctx, "agg"))
	v, err = cache.Remember(ctx, c, logger, "agg", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 20, v, "recomputed after invalidation")

	clock.Advance(time.Minute)
	v, err = cache.Remember(ctx, c, logger, "agg", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 30, v, "recomputed after expiry")
}

func TestRemember_LoadErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	boom := errors.New("boom")

	_, err := cache.Remember(ctx, c, zap.NewNop(), "agg", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "fetcher_earnings_7", cache.FetcherEarningsKey(7))
	assert.Equal(t, "execution_projects_3", cache.ExecutionProjectsKey(3))
	assert.Equal(t, "project_12_updates", cache.ProjectUpdatesKey(12))
	assert.Equal(t, "project_12_logs", cache.ProjectLogsKey(12))
	assert.Contains(t, cache.AdminKeys(), cache.KeyAdminStatusCounts)
}

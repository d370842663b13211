package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/tripquote/internal/domain"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quote(min, max int64) domain.QuoteResult {
	return domain.QuoteResult{
		Min:        decimal.NewFromInt(min),
		Max:        decimal.NewFromInt(max),
		Confidence: domain.ConfidenceHigh,
		Source:     domain.SourceProvider,
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	_, ok, err := c.Get(ctx, "LON|PAR|2026-06-01||1|CHEAP")
	require.NoError(t, err)
	assert.False(t, ok)

	want := quote(256, 300)
	require.NoError(t, c.Set(ctx, "LON|PAR|2026-06-01||1|CHEAP", want))

	got, ok, err := c.Get(ctx, "LON|PAR|2026-06-01||1|CHEAP")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestMemoryCache_ExpiredEntriesAreAbsentAndPurgedLazily(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(10*time.Minute, WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "k", quote(1, 2)))
	clock.Advance(9 * time.Minute)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Purge(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(time.Minute, WithClock(clock.Now))

	require.NoError(t, c.Set(ctx, "old-1", quote(1, 2)))
	require.NoError(t, c.Set(ctx, "old-2", quote(1, 2)))
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "fresh", quote(1, 2)))

	assert.Equal(t, 2, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_CapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(time.Hour, WithClock(clock.Now), WithCapacity(2))

	require.NoError(t, c.Set(ctx, "key-a", quote(1, 2)))
	clock.Advance(time.Second)
	require.NoError(t, c.Set(ctx, "key-b", quote(3, 4)))
	clock.Advance(time.Second)
	require.NoError(t, c.Set(ctx, "key-c", quote(5, 6)))

	_, ok, _ := c.Get(ctx, "key-a")
	assert.False(t, ok)
	got, ok, _ := c.Get(ctx, "key-c")
	assert.True(t, ok)
	assert.Equal(t, quote(5, 6), got)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_SmallCapacityIsHonoured(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(time.Hour, WithClock(clock.Now), WithCapacity(4))

	for i := 0; i < 200; i++ {
		clock.Advance(time.Millisecond)
		require.NoError(t, c.Set(ctx, fmt.Sprintf("key-%d", i), quote(int64(i), int64(i+1))))
		assert.LessOrEqual(t, c.Len(), 4)
	}

	assert.Equal(t, 4, c.Len())
	for i := 196; i < 200; i++ {
		_, ok, _ := c.Get(ctx, fmt.Sprintf("key-%d", i))
		assert.True(t, ok, "key-%d should survive", i)
	}
}

func TestMemoryCache_CapacityPrefersExpiredEntries(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(time.Minute, WithClock(clock.Now), WithCapacity(3))

	require.NoError(t, c.Set(ctx, "stale-1", quote(1, 2)))
	require.NoError(t, c.Set(ctx, "stale-2", quote(1, 2)))
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "fresh-1", quote(3, 4)))
	require.NoError(t, c.Set(ctx, "fresh-2", quote(3, 4)))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "fresh-1")
	assert.True(t, ok)
}

func TestMemoryCache_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	require.NoError(t, c.Set(ctx, "k", quote(1, 2)))
	require.NoError(t, c.Set(ctx, "k", quote(5, 6)))

	got, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, quote(5, 6), got)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%8)
			_ = c.Set(ctx, key, quote(int64(i), int64(i+1)))
			_, _, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, c.Len())
}

func TestQuoteKey(t *testing.T) {
	assert.Equal(t, "cache:quote:LON|PAR|2026-06-01||1|CHEAP", quoteKey("LON|PAR|2026-06-01||1|CHEAP"))
}

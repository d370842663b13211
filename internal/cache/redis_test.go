package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/tripquote/config"
)

const fingerprint = "LON|PAR|2026-06-01||2|FAST"

func newTestRedisCache(t *testing.T, ttl time.Duration, opts ...Option) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, ttl, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := newTestRedisCache(t, time.Minute)

	_, ok, err := c.Get(context.Background(), fingerprint)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	storedAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c, mr := newTestRedisCache(t, 10*time.Minute, WithClock(func() time.Time { return storedAt }))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, fingerprint, quote(256, 300)))

	got, ok, err := c.Get(ctx, fingerprint)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Min.Equal(quote(256, 300).Min))
	assert.True(t, got.Max.Equal(quote(256, 300).Max))
	assert.Equal(t, quote(256, 300).Confidence, got.Confidence)

	raw, err := mr.Get("cache:quote:" + fingerprint)
	require.NoError(t, err)
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, fingerprint, entry.Key)
	assert.True(t, storedAt.Equal(entry.StoredAt))
	assert.Equal(t, 10*time.Minute, mr.TTL("cache:quote:"+fingerprint))
}

func TestRedisCache_ExpiresAfterTTL(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, fingerprint, quote(1, 2)))
	mr.FastForward(time.Minute + time.Second)

	_, ok, err := c.Get(ctx, fingerprint)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptPayload(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Minute)
	require.NoError(t, mr.Set("cache:quote:"+fingerprint, "{not json"))

	_, ok, err := c.Get(context.Background(), fingerprint)

	assert.ErrorContains(t, err, "decode cached quote")
	assert.False(t, ok)
}

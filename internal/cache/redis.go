package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Domenick1991/tripquote/config"
	"github.com/Domenick1991/tripquote/internal/domain"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisCache(cfg config.RedisConfig, ttl time.Duration, opts ...Option) *RedisCache {
	st := buildSettings(opts)
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ttl:    ttl,
		now:    st.now,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.QuoteResult, bool, error) {
	data, err := c.client.Get(ctx, quoteKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.QuoteResult{}, false, nil
		}
		return domain.QuoteResult{}, false, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.QuoteResult{}, false, fmt.Errorf("decode cached quote %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set overwrites any previous entry; Redis expires it after the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value domain.QuoteResult) error {
	payload, err := json.Marshal(Entry{Key: key, Value: value, StoredAt: c.now().UTC()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, quoteKey(key), payload, c.ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func quoteKey(fingerprint string) string {
	return "cache:quote:" + fingerprint
}

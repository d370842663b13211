// Package cache stores computed flight quotes by request fingerprint for a fixed TTL.
package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/tripquote/internal/domain"
)

const shardCount = 32

// Entry is immutable once stored.
type Entry struct {
	Key      string             `json:"key"`
	Value    domain.QuoteResult `json:"value"`
	StoredAt time.Time          `json:"stored_at"`
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Option configures either cache backend.
type Option func(*settings)

type settings struct {
	now      func() time.Time
	capacity int
}

func buildSettings(opts []Option) settings {
	st := settings{now: time.Now}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// WithClock replaces time.Now for entry timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithCapacity bounds the total number of entries in the memory backend;
// zero means unbounded. Redis ignores it.
func WithCapacity(n int) Option {
	return func(s *settings) {
		s.capacity = n
	}
}

type MemoryCache struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
	shards   [shardCount]*shard
	size     atomic.Int64
}

func NewMemoryCache(ttl time.Duration, opts ...Option) *MemoryCache {
	st := buildSettings(opts)
	c := &MemoryCache{ttl: ttl, now: st.now, capacity: st.capacity}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.QuoteResult, bool, error) {
	s := c.shardFor(key)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return domain.QuoteResult{}, false, nil
	}

	if c.expired(entry, c.now()) {
		s.mu.Lock()
		// another writer may have replaced it meanwhile
		if current, ok := s.entries[key]; ok && current.StoredAt.Equal(entry.StoredAt) {
			delete(s.entries, key)
			c.size.Add(-1)
		}
		s.mu.Unlock()
		return domain.QuoteResult{}, false, nil
	}
	return entry.Value, true, nil
}

// Set stores value under key. A new key that pushes the cache past its
// capacity evicts expired entries first, then the oldest ones.
func (c *MemoryCache) Set(_ context.Context, key string, value domain.QuoteResult) error {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	_, exists := s.entries[key]
	s.entries[key] = Entry{Key: key, Value: value, StoredAt: now}
	s.mu.Unlock()

	if !exists && c.size.Add(1) > int64(c.capacity) && c.capacity > 0 {
		c.shrink(key)
	}
	return nil
}

// Purge drops every expired entry and reports how many were removed.
func (c *MemoryCache) Purge() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if c.expired(e, now) {
				delete(s.entries, k)
				c.size.Add(-1)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (c *MemoryCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (c *MemoryCache) shrink(keep string) {
	for c.size.Load() > int64(c.capacity) {
		if c.Purge() > 0 {
			continue
		}
		if !c.evictOldest(keep) {
			return
		}
	}
}

// evictOldest drops the entry with the earliest StoredAt other than keep.
// Shards are locked one at a time.
func (c *MemoryCache) evictOldest(keep string) bool {
	var (
		victim   *shard
		victimK  string
		victimAt time.Time
	)
	for _, s := range c.shards {
		s.mu.RLock()
		for k, e := range s.entries {
			if k == keep {
				continue
			}
			if victim == nil || e.StoredAt.Before(victimAt) {
				victim, victimK, victimAt = s, k, e.StoredAt
			}
		}
		s.mu.RUnlock()
	}
	if victim == nil {
		return false
	}

	victim.mu.Lock()
	if current, ok := victim.entries[victimK]; ok && current.StoredAt.Equal(victimAt) {
		delete(victim.entries, victimK)
		c.size.Add(-1)
	}
	victim.mu.Unlock()
	return true
}

func (c *MemoryCache) expired(e Entry, now time.Time) bool {
	return !now.Before(e.StoredAt.Add(c.ttl))
}

func (c *MemoryCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies a cached backend query. It is a typed tuple rather than a
// concatenated string so call sites cannot drift in how keys are spelled;
// canonical parameter serialization happens in NewKey.
type Key struct {
	Entity string
	Op     string
	Params string
}

// NewKey builds a Key, serializing params canonically. JSON encoding keeps
// map keys sorted, so equal parameter sets always produce equal keys.
func NewKey(entity, op string, params any) Key {
	serialized := ""
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			// Non-serializable params still need a stable-ish key.
			serialized = fmt.Sprintf("%+v", params)
		} else {
			serialized = string(raw)
		}
	}
	return Key{Entity: entity, Op: op, Params: serialized}
}

type entry struct {
	value     any
	expiresAt time.Time
}

// QueryCache is a bounded, TTL-expiring read-through cache for backend
// queries. Concurrent misses on the same key are not de-duplicated: callers
// must not rely on a single fetch per key.
type QueryCache struct {
	lru *lru.Cache[Key, entry]
	ttl time.Duration
	now func() time.Time
}

type Option func(*QueryCache)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *QueryCache) {
		c.now = now
	}
}

func New(size int, ttl time.Duration, opts ...Option) (*QueryCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("querycache: size must be positive, got %d", size)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("querycache: ttl must be positive, got %s", ttl)
	}
	inner, err := lru.New[Key, entry](size)
	if err != nil {
		return nil, fmt.Errorf("querycache: %w", err)
	}
	c := &QueryCache{
		lru: inner,
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached value when present and fresh. Expired entries are
// removed on access.
func (c *QueryCache) Get(key Key) (any, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		missesTotal.WithLabelValues(key.Entity, key.Op).Inc()
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		expiredTotal.WithLabelValues(key.Entity, key.Op).Inc()
		missesTotal.WithLabelValues(key.Entity, key.Op).Inc()
		return nil, false
	}
	hitsTotal.WithLabelValues(key.Entity, key.Op).Inc()
	return e.value, true
}

func (c *QueryCache) Set(key Key, value any) {
	c.lru.Add(key, entry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// GetOrFetch returns the cached value for key, or runs fetch and caches the
// result. Fetch errors are returned to the caller and never cached.
func (c *QueryCache) GetOrFetch(ctx context.Context, key Key, fetch func(ctx context.Context) (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, value)
	return value, nil
}

// Invalidate removes the exact key.
func (c *QueryCache) Invalidate(key Key) {
	c.lru.Remove(key)
}

// InvalidateEntity removes every key belonging to the entity, regardless of
// operation or parameters.
func (c *QueryCache) InvalidateEntity(entity string) {
	for _, key := range c.lru.Keys() {
		if key.Entity == entity {
			c.lru.Remove(key)
		}
	}
	invalidationsTotal.WithLabelValues(entity).Inc()
}

func (c *QueryCache) Clear() {
	c.lru.Purge()
}

func (c *QueryCache) Len() int {
	return c.lru.Len()
}

// GetOrFetch is the typed read-through helper. The cached value must have
// been stored by a fetch of the same type; a mismatch counts as a miss.
func GetOrFetch[T any](ctx context.Context, c *QueryCache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	if raw, ok := c.Get(key); ok {
		if typed, ok := raw.(T); ok {
			return typed, nil
		}
	}
	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}

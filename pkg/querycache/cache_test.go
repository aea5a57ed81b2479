package querycache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridianhq/meridian-sdk/pkg/querycache"
)

func newTestCache(t *testing.T, now *time.Time) *querycache.QueryCache {
	t.Helper()
	cache, err := querycache.New(64, 5*time.Minute, querycache.WithNow(func() time.Time {
		return *now
	}))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return cache
}

func TestGetOrFetchCachesOnSuccess(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	key := querycache.NewKey("contacts", "list", map[string]string{"tenant": "t1"})
	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 3; i++ {
		value, err := cache.GetOrFetch(context.Background(), key, fetch)
		if err != nil {
			t.Fatalf("GetOrFetch() error: %v", err)
		}
		if items := value.([]string); len(items) != 2 {
			t.Fatalf("GetOrFetch() = %v", items)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (fresh hit must not refetch)", calls)
	}
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	key := querycache.NewKey("leads", "list", nil)
	calls := 0
	failing := func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("backend down")
	}

	for i := 0; i < 2; i++ {
		if _, err := cache.GetOrFetch(context.Background(), key, failing); err == nil {
			t.Fatal("GetOrFetch() expected error")
		}
	}
	if calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (errors must not be cached)", calls)
	}

	// A subsequent success is cached normally.
	value, err := cache.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil || value != "ok" {
		t.Fatalf("GetOrFetch() = %v, %v", value, err)
	}
	if got, ok := cache.Get(key); !ok || got != "ok" {
		t.Errorf("Get() = %v, %v", got, ok)
	}
}

func TestExpiryForcesRefetch(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	key := querycache.NewKey("accounts", "list", nil)
	cache.Set(key, 42)

	if _, ok := cache.Get(key); !ok {
		t.Fatal("expected fresh hit")
	}

	now = now.Add(5*time.Minute + time.Second)
	if _, ok := cache.Get(key); ok {
		t.Fatal("expected expired entry to miss")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expiry eviction", cache.Len())
	}
}

func TestInvalidateEntityRemovesAllOpsForEntity(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	contactsList := querycache.NewKey("contacts", "list", map[string]int{"page": 1})
	contactsStats := querycache.NewKey("contacts", "stats", nil)
	leadsList := querycache.NewKey("leads", "list", nil)

	cache.Set(contactsList, 1)
	cache.Set(contactsStats, 2)
	cache.Set(leadsList, 3)

	cache.InvalidateEntity("contacts")

	if _, ok := cache.Get(contactsList); ok {
		t.Error("contacts list should be invalidated")
	}
	if _, ok := cache.Get(contactsStats); ok {
		t.Error("contacts stats should be invalidated")
	}
	if _, ok := cache.Get(leadsList); !ok {
		t.Error("leads list should survive contacts invalidation")
	}
}

func TestInvalidateExactKey(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	page1 := querycache.NewKey("contacts", "list", map[string]int{"page": 1})
	page2 := querycache.NewKey("contacts", "list", map[string]int{"page": 2})
	cache.Set(page1, "p1")
	cache.Set(page2, "p2")

	cache.Invalidate(page1)

	if _, ok := cache.Get(page1); ok {
		t.Error("page1 should be invalidated")
	}
	if _, ok := cache.Get(page2); !ok {
		t.Error("page2 should survive")
	}
}

func TestNewKeyCanonicalSerialization(t *testing.T) {
	t.Parallel()

	a := querycache.NewKey("contacts", "list", map[string]string{"b": "2", "a": "1"})
	b := querycache.NewKey("contacts", "list", map[string]string{"a": "1", "b": "2"})
	if a != b {
		t.Errorf("keys differ for equal params: %v vs %v", a, b)
	}

	c := querycache.NewKey("contacts", "list", map[string]string{"a": "1"})
	if a == c {
		t.Error("keys should differ for different params")
	}
}

func TestTypedGetOrFetch(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(t, &now)

	key := querycache.NewKey("opportunities", "list", nil)
	calls := 0
	fetch := func(ctx context.Context) ([]int, error) {
		calls++
		return []int{1, 2, 3}, nil
	}

	first, err := querycache.GetOrFetch(context.Background(), cache, key, fetch)
	if err != nil || len(first) != 3 {
		t.Fatalf("GetOrFetch() = %v, %v", first, err)
	}
	second, err := querycache.GetOrFetch(context.Background(), cache, key, fetch)
	if err != nil || len(second) != 3 {
		t.Fatalf("GetOrFetch() = %v, %v", second, err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

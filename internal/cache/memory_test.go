package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, max int) (*MemoryCache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewMemoryCache(MemoryOptions{MaxEntries: max, CleanupInterval: time.Hour, Now: clk.Now})
	t.Cleanup(func() { _ = c.Close() })
	return c, clk
}

func TestMemoryCacheFIFOEviction(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 3)

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), time.Minute); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	// Reading does not refresh insertion order.
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatalf("expected a present")
	}
	if err := c.Set(ctx, "d", []byte("d"), time.Minute); err != nil {
		t.Fatalf("Set(d): %v", err)
	}

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("expected oldest entry a to be evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Fatalf("expected %s present", k)
		}
	}
	if n, _ := c.Len(ctx); n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(t, 10)

	if err := c.Set(ctx, "k", []byte("v"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(4 * time.Minute)
	if v, ok, _ := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit before ttl, got %q %v", v, ok)
	}
	clk.Advance(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after ttl")
	}
	if n, _ := c.Len(ctx); n != 0 {
		t.Fatalf("expired entry should be dropped on read, Len=%d", n)
	}
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(t, 10)

	_ = c.Set(ctx, "short", []byte("1"), time.Minute)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)
	_ = c.Set(ctx, "forever", []byte("3"), 0)
	clk.Advance(2 * time.Minute)

	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if n, _ := c.Len(ctx); n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}
}

func TestMemoryCacheUpdateAndClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, 2)

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "a", []byte("2"), 0)
	if n, _ := c.Len(ctx); n != 1 {
		t.Fatalf("update should not add entries, Len=%d", n)
	}
	v, ok, _ := c.Get(ctx, "a")
	if !ok || string(v) != "2" {
		t.Fatalf("Get(a) = %q %v", v, ok)
	}
	v[0] = 'x'
	if again, _, _ := c.Get(ctx, "a"); string(again) != "2" {
		t.Fatalf("cache returned shared slice")
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_ = c.Set(ctx, "b", []byte("1"), 0)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := c.Len(ctx); n != 0 {
		t.Fatalf("Len after Clear = %d", n)
	}
}

func TestMemoryCacheCanceledContext(t *testing.T) {
	c, _ := newTestCache(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Set(ctx, "a", []byte("1"), 0); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(RedisOptions{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

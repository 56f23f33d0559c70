package cache

import (
	"context"
	"testing"
	"time"
)

type cachedReading struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := cachedReading{Symbol: "ACME", Value: 103.5}
	if err := mc.Set(ctx, "latest:ipo-1", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out cachedReading
	if err := mc.Get(ctx, "latest:ipo-1", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}

	ok, err := mc.Exists(ctx, "latest:ipo-1")
	if err != nil || !ok {
		t.Fatalf("exists = %v/%v, want true", ok, err)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var out cachedReading
	if err := mc.Get(context.Background(), "missing", &out); err != ErrCacheMiss {
		t.Fatalf("miss error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", cachedReading{}, time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var out cachedReading
	if err := mc.Get(ctx, "k", &out); err != ErrCacheMiss {
		t.Fatalf("expired get = %v, want ErrCacheMiss", err)
	}
	ok, _ := mc.Exists(ctx, "k")
	if ok {
		t.Fatalf("expired key still reported as existing")
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", 1, time.Minute)
	time.Sleep(time.Millisecond)
	mc.Set(ctx, "b", 2, time.Minute)
	time.Sleep(time.Millisecond)

	// touching "a" makes "b" the eviction candidate
	var n int
	if err := mc.Get(ctx, "a", &n); err != nil {
		t.Fatalf("get a: %v", err)
	}
	time.Sleep(time.Millisecond)
	mc.Set(ctx, "c", 3, time.Minute)

	if err := mc.Get(ctx, "b", &n); err != ErrCacheMiss {
		t.Fatalf("lru victim = %v, want ErrCacheMiss", err)
	}
	if err := mc.Get(ctx, "a", &n); err != nil {
		t.Fatalf("recently used key evicted: %v", err)
	}
	if err := mc.Get(ctx, "c", &n); err != nil {
		t.Fatalf("new key missing: %v", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", 1, time.Minute)
	mc.Set(ctx, "b", 2, time.Minute)
	if err := mc.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ := mc.Exists(ctx, "a", "b")
	if ok {
		t.Fatalf("deleted keys still exist")
	}
}

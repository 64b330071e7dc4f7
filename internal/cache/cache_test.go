package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	c := New[int64, string](time.Minute)

	if _, ok := c.Get(1); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Put(1, "alice")
	got, ok := c.Get(1)
	if !ok || got != "alice" {
		t.Fatalf("Get(1) = (%q, %v), want (alice, true)", got, ok)
	}

	c.Put(1, "bob")
	got, ok = c.Get(1)
	if !ok || got != "bob" {
		t.Fatalf("Put should overwrite, got (%q, %v)", got, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[string, int](5 * time.Minute)
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	c.Put("k", 42)

	current = base.Add(4 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired before TTL")
	}

	current = base.Add(5 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry survived past TTL")
	}

	// Expired entries must not resurrect.
	current = base
	if _, ok := c.Get("k"); ok {
		t.Fatalf("stale entry resurrected after expiry")
	}
}

func TestPutRefreshesTimestamp(t *testing.T) {
	c := New[string, int](time.Minute)
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	c.Put("k", 1)
	current = base.Add(50 * time.Second)
	c.Put("k", 2)

	current = base.Add(100 * time.Second)
	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("overwrite should restart TTL, got (%d, %v)", got, ok)
	}
}

func TestInvalidateGuaranteesMiss(t *testing.T) {
	c := New[int64, string](time.Hour)

	c.Put(7, "payload")
	c.Invalidate(7)
	if _, ok := c.Get(7); ok {
		t.Fatalf("Get after Invalidate must miss")
	}

	// Invalidating an absent key is a no-op.
	c.Invalidate(8)

	c.Put(7, "fresh")
	got, ok := c.Get(7)
	if !ok || got != "fresh" {
		t.Fatalf("Put after Invalidate should repopulate, got (%q, %v)", got, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int64, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			c.Put(n%10, int(n))
			c.Get(n % 10)
			c.Invalidate(n % 5)
		}(int64(i))
	}
	wg.Wait()
}

func BenchmarkCacheGet(b *testing.B) {
	c := New[string, int](time.Minute)
	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprintf("key-%d", i), i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("key-%d", i%100))
	}
}

package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingStore wraps a TokenStore and counts prefix lookups.
type countingStore struct {
	TokenStore
	lookups atomic.Int64
}

func (s *countingStore) LookupByPrefix(ctx context.Context, prefix string) (*ClientToken, error) {
	s.lookups.Add(1)
	return s.TokenStore.LookupByPrefix(ctx, prefix)
}

func TestCachingTokenStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{TokenStore: NewMemoryTokenStore()}
	cache := NewCachingTokenStore(CacheConfig{TTL: time.Minute}, inner)

	if err := cache.Put(ctx, &ClientToken{ID: "t1", TokenPrefix: "aaaabbbbcccc"}); err != nil {
		t.Fatal(err)
	}

	for range 5 {
		got, err := cache.LookupByPrefix(ctx, "aaaabbbbcccc")
		if err != nil {
			t.Fatalf("LookupByPrefix() error = %v", err)
		}
		if got == nil || got.ID != "t1" {
			t.Fatalf("LookupByPrefix() = %v", got)
		}
	}

	if n := inner.lookups.Load(); n != 1 {
		t.Errorf("inner lookups = %d, want 1 (cache not effective)", n)
	}
}

func TestCachingTokenStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{TokenStore: NewMemoryTokenStore()}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache := NewCachingTokenStore(CacheConfig{TTL: 30 * time.Second, Clock: clock}, inner)

	if err := cache.Put(ctx, &ClientToken{ID: "t1", TokenPrefix: "aaaabbbbcccc"}); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.LookupByPrefix(ctx, "aaaabbbbcccc"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	if _, err := cache.LookupByPrefix(ctx, "aaaabbbbcccc"); err != nil {
		t.Fatal(err)
	}

	if n := inner.lookups.Load(); n != 2 {
		t.Errorf("inner lookups = %d, want 2 (stale entry served)", n)
	}
}

func TestCachingTokenStore_RevokeInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryTokenStore()
	cache := NewCachingTokenStore(CacheConfig{TTL: time.Hour}, inner)

	if err := cache.Put(ctx, &ClientToken{ID: "t1", TokenPrefix: "aaaabbbbcccc"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.LookupByPrefix(ctx, "aaaabbbbcccc"); err != nil {
		t.Fatal(err)
	}

	if err := cache.MarkRevoked(ctx, "t1", time.Now()); err != nil {
		t.Fatal(err)
	}

	got, err := cache.LookupByPrefix(ctx, "aaaabbbbcccc")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Revoked() {
		t.Error("revocation not visible after cached lookup")
	}
}

func TestCachingTokenStore_MissesNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{TokenStore: NewMemoryTokenStore()}
	cache := NewCachingTokenStore(CacheConfig{TTL: time.Hour}, inner)

	for range 3 {
		got, err := cache.LookupByPrefix(ctx, "nothere00000")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatalf("LookupByPrefix() = %v, want nil", got)
		}
	}
	if n := inner.lookups.Load(); n != 3 {
		t.Errorf("inner lookups = %d, want 3 (miss was cached)", n)
	}
}

func TestCachingTokenStore_ConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{TokenStore: NewMemoryTokenStore()}
	cache := NewCachingTokenStore(CacheConfig{TTL: time.Hour}, inner)

	if err := inner.Put(ctx, &ClientToken{ID: "t1", TokenPrefix: "aaaabbbbcccc"}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.LookupByPrefix(ctx, "aaaabbbbcccc")
			if err != nil || got == nil {
				t.Errorf("LookupByPrefix() = (%v, %v)", got, err)
			}
		}()
	}
	wg.Wait()

	// Singleflight collapses concurrent misses; a handful of backend reads
	// is fine, one per caller is not.
	if n := inner.lookups.Load(); n > 8 {
		t.Errorf("inner lookups = %d, want deduplicated", n)
	}
}

package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheConfig configures the caching token store.
type CacheConfig struct {
	// TTL is how long a looked-up record stays fresh.
	// Default: 30 seconds
	TTL time.Duration

	// Clock returns the current time. Overridable in tests.
	// Default: time.Now
	Clock func() time.Time
}

// CachingTokenStore is a read-through cache over another TokenStore's
// prefix lookups, for the per-request hot path. Concurrent lookups for the
// same prefix are collapsed into one backend read. Writes and revocations
// invalidate the affected entry; misses are not cached.
type CachingTokenStore struct {
	config CacheConfig
	inner  TokenStore

	mu      sync.RWMutex
	entries map[string]cacheEntry // keyed by prefix
	sfGroup singleflight.Group    // prevents thundering herd
}

type cacheEntry struct {
	token   *ClientToken
	fetched time.Time
}

// NewCachingTokenStore wraps inner with a TTL lookup cache.
func NewCachingTokenStore(config CacheConfig, inner TokenStore) *CachingTokenStore {
	// Apply defaults
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &CachingTokenStore{
		config:  config,
		inner:   inner,
		entries: make(map[string]cacheEntry),
	}
}

// LookupByPrefix returns a cached record when fresh, otherwise reads
// through to the inner store.
func (s *CachingTokenStore) LookupByPrefix(ctx context.Context, prefix string) (*ClientToken, error) {
	s.mu.RLock()
	entry, ok := s.entries[prefix]
	s.mu.RUnlock()
	if ok && s.config.Clock().Sub(entry.fetched) < s.config.TTL {
		return entry.token.clone(), nil
	}

	result, err, _ := s.sfGroup.Do(prefix, func() (any, error) {
		token, err := s.inner.LookupByPrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if token != nil {
			s.mu.Lock()
			s.entries[prefix] = cacheEntry{token: token.clone(), fetched: s.config.Clock()}
			s.mu.Unlock()
		}
		return token, nil
	})
	if err != nil {
		return nil, err
	}

	token, _ := result.(*ClientToken)
	if token == nil {
		return nil, nil
	}
	return token.clone(), nil
}

// Get passes through to the inner store; by-id reads are admin-path only.
func (s *CachingTokenStore) Get(ctx context.Context, id string) (*ClientToken, error) {
	return s.inner.Get(ctx, id)
}

// Put writes through and invalidates the token's prefix entry.
func (s *CachingTokenStore) Put(ctx context.Context, token *ClientToken) error {
	if err := s.inner.Put(ctx, token); err != nil {
		return err
	}
	s.invalidatePrefix(token.TokenPrefix)
	return nil
}

// MarkRevoked revokes in the inner store and drops the cached entry so the
// revocation takes effect on the next lookup.
func (s *CachingTokenStore) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	if err := s.inner.MarkRevoked(ctx, id, at); err != nil {
		return err
	}
	s.invalidateID(id)
	return nil
}

// List passes through to the inner store.
func (s *CachingTokenStore) List(ctx context.Context) ([]*ClientToken, error) {
	return s.inner.List(ctx)
}

func (s *CachingTokenStore) invalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, prefix)
}

func (s *CachingTokenStore) invalidateID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix, entry := range s.entries {
		if entry.token.ID == id {
			delete(s.entries, prefix)
		}
	}
}

// Ensure CachingTokenStore implements TokenStore
var _ TokenStore = (*CachingTokenStore)(nil)

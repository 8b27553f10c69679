package auth

import (
	"context"
	"sync"
	"time"
)

// ClientToken is the durable identity and authorization unit for one
// gateway client.
//
// TokenPrefix is public and unique; TokenHash is the one-way SHA-256 of the
// token secret; TokenEncrypted is the reversible AES-GCM ciphertext of the
// full "prefix.secret" string, used only for admin reveal.
type ClientToken struct {
	// ID is the opaque stable identifier.
	ID string

	// TokenPrefix is the non-secret lookup key.
	TokenPrefix string

	// TokenHash is the SHA-256 hex digest of the token secret.
	TokenHash string

	// TokenEncrypted holds the ciphertext of the full token.
	// nil when reveal is unavailable for this token.
	TokenEncrypted []byte

	// Description is a human-readable note set at issuance.
	Description string

	// AllowedTools restricts tool invocation. nil means unrestricted.
	AllowedTools []string

	// RateLimit overrides the per-client requests/minute default when set.
	// Must be positive when non-nil.
	RateLimit *int

	// ExpiresAt is the optional expiry instant. Zero means never.
	ExpiresAt time.Time

	// RevokedAt is set once by Revoke and never cleared. Zero means active.
	RevokedAt time.Time

	// CreatedAt is the issuance instant.
	CreatedAt time.Time
}

// Revoked reports whether the token has been revoked.
func (t *ClientToken) Revoked() bool {
	return !t.RevokedAt.IsZero()
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *ClientToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Identity derives the authorization record handed to the dispatcher.
func (t *ClientToken) Identity() *Identity {
	id := &Identity{TokenID: t.ID}
	if t.AllowedTools != nil {
		id.AllowedTools = append([]string{}, t.AllowedTools...)
	}
	if t.RateLimit != nil {
		limit := *t.RateLimit
		id.RateLimit = &limit
	}
	return id
}

// clone returns a deep copy so stores can hand out records without aliasing.
func (t *ClientToken) clone() *ClientToken {
	cp := *t
	if t.TokenEncrypted != nil {
		cp.TokenEncrypted = append([]byte(nil), t.TokenEncrypted...)
	}
	if t.AllowedTools != nil {
		cp.AllowedTools = append([]string{}, t.AllowedTools...)
	}
	if t.RateLimit != nil {
		limit := *t.RateLimit
		cp.RateLimit = &limit
	}
	return &cp
}

// TokenStore provides storage for client tokens.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: lookups return nil for a missing token, not an error; storage
//   failures are returned as errors and never swallowed.
type TokenStore interface {
	// LookupByPrefix retrieves a token by its public prefix.
	// Returns nil if not found.
	LookupByPrefix(ctx context.Context, prefix string) (*ClientToken, error)

	// Get retrieves a token by id. Returns nil if not found.
	Get(ctx context.Context, id string) (*ClientToken, error)

	// Put inserts or replaces a token record.
	Put(ctx context.Context, token *ClientToken) error

	// MarkRevoked sets RevokedAt if unset. Idempotent: revoking an already
	// revoked token keeps the original timestamp. Returns ErrTokenUnknown
	// for a missing id.
	MarkRevoked(ctx context.Context, id string, at time.Time) error

	// List returns all token records in creation order.
	List(ctx context.Context) ([]*ClientToken, error)
}

// MemoryTokenStore is an in-memory token store.
type MemoryTokenStore struct {
	mu       sync.RWMutex
	byID     map[string]*ClientToken
	byPrefix map[string]*ClientToken
	order    []string
}

// NewMemoryTokenStore creates a new in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		byID:     make(map[string]*ClientToken),
		byPrefix: make(map[string]*ClientToken),
	}
}

// LookupByPrefix retrieves a token by prefix. Returns nil if not found.
func (s *MemoryTokenStore) LookupByPrefix(_ context.Context, prefix string) (*ClientToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byPrefix[prefix]
	if !ok {
		return nil, nil
	}
	return t.clone(), nil
}

// Get retrieves a token by id. Returns nil if not found.
func (s *MemoryTokenStore) Get(_ context.Context, id string) (*ClientToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return t.clone(), nil
}

// Put inserts or replaces a token record.
func (s *MemoryTokenStore) Put(_ context.Context, token *ClientToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := token.clone()
	if _, exists := s.byID[cp.ID]; !exists {
		s.order = append(s.order, cp.ID)
	}
	s.byID[cp.ID] = cp
	s.byPrefix[cp.TokenPrefix] = cp
	return nil
}

// MarkRevoked sets RevokedAt if unset.
func (s *MemoryTokenStore) MarkRevoked(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return ErrTokenUnknown
	}
	if t.RevokedAt.IsZero() {
		t.RevokedAt = at
	}
	return nil
}

// List returns all token records in creation order.
func (s *MemoryTokenStore) List(_ context.Context) ([]*ClientToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]*ClientToken, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.byID[id]; ok {
			tokens = append(tokens, t.clone())
		}
	}
	return tokens, nil
}

// Ensure MemoryTokenStore implements TokenStore
var _ TokenStore = (*MemoryTokenStore)(nil)

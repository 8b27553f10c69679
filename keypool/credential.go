package keypool

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of a credential.
type Status string

const (
	// StatusActive marks a credential as eligible for selection.
	StatusActive Status = "active"

	// StatusDisabled removes a credential from selection without deleting it.
	StatusDisabled Status = "disabled"
)

// Credential is an upstream API key belonging to a named provider pool.
//
// The plaintext key exists only inside EncryptedKey; MaskedKey is the
// derived display form and never reveals more than the first and last four
// characters.
type Credential struct {
	// ID is the opaque stable identifier.
	ID string

	// ProviderID names the pool this credential belongs to.
	ProviderID string

	// Label is a human-readable name for admin listings.
	Label string

	// MaskedKey is the display form of the key.
	MaskedKey string

	// EncryptedKey is the AES-GCM ciphertext of the plaintext key.
	EncryptedKey []byte

	// Status is active or disabled.
	Status Status

	// LastUsedAt is updated best-effort on each successful selection.
	// Zero when never used.
	LastUsedAt time.Time

	// CreatedAt orders credentials for round-robin rotation.
	CreatedAt time.Time
}

// Active reports whether the credential is eligible for selection.
func (c *Credential) Active() bool {
	return c.Status == StatusActive
}

// CredentialStore provides storage for provider credentials.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ordering: ListByProvider returns credentials in creation order.
// - Errors: lookups return nil for a missing credential, not an error;
//   storage failures are returned as errors and never swallowed.
type CredentialStore interface {
	// ListByProvider returns all credentials for a provider, any status,
	// in creation order.
	ListByProvider(ctx context.Context, providerID string) ([]*Credential, error)

	// Get retrieves a credential by id. Returns nil if not found.
	Get(ctx context.Context, id string) (*Credential, error)

	// Put inserts or replaces a credential.
	Put(ctx context.Context, cred *Credential) error

	// SetStatus transitions a credential's status.
	// Returns ErrCredentialNotFound for an unknown id.
	SetStatus(ctx context.Context, id string, status Status) error

	// TouchLastUsed records the selection timestamp for a credential.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// MemoryCredentialStore is an in-memory credential store.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	byID  map[string]*Credential
	order map[string][]string // providerID -> credential ids in insert order
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:  make(map[string]*Credential),
		order: make(map[string][]string),
	}
}

// ListByProvider returns the provider's credentials in creation order.
func (s *MemoryCredentialStore) ListByProvider(_ context.Context, providerID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[providerID]
	creds := make([]*Credential, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.byID[id]; ok {
			cp := *c
			creds = append(creds, &cp)
		}
	}
	return creds, nil
}

// Get retrieves a credential by id. Returns nil if not found.
func (s *MemoryCredentialStore) Get(_ context.Context, id string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Put inserts or replaces a credential.
func (s *MemoryCredentialStore) Put(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cred
	if _, exists := s.byID[cred.ID]; !exists {
		s.order[cred.ProviderID] = append(s.order[cred.ProviderID], cred.ID)
	}
	s.byID[cred.ID] = &cp
	return nil
}

// SetStatus transitions a credential's status.
func (s *MemoryCredentialStore) SetStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.Status = status
	return nil
}

// TouchLastUsed records the selection timestamp.
func (s *MemoryCredentialStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.LastUsedAt = at
	return nil
}

// Ensure MemoryCredentialStore implements CredentialStore
var _ CredentialStore = (*MemoryCredentialStore)(nil)

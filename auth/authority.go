package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ykq007/mcp-nexus-cf/secret"
)

const (
	// PrefixLen is the length of the public token prefix in hex characters.
	PrefixLen = 12

	// SecretLen is the length of the token secret in hex characters.
	SecretLen = 48
)

// AuthorityConfig configures the token authority.
type AuthorityConfig struct {
	// EncryptionKey is the 32-byte AES-256 key for the reveal ciphertexts.
	EncryptionKey []byte

	// Clock returns the current time. Overridable in tests.
	// Default: time.Now
	Clock func() time.Time
}

// Authority verifies, issues, reveals, and revokes client tokens.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Verify failures map to the package sentinel errors; storage
//   failures are wrapped and returned as-is.
type Authority struct {
	config AuthorityConfig
	store  TokenStore
}

// NewAuthority creates a token authority backed by store.
func NewAuthority(config AuthorityConfig, store TokenStore) (*Authority, error) {
	if len(config.EncryptionKey) != secret.KeyLen {
		return nil, fmt.Errorf("%w: authority key length %d, want %d",
			secret.ErrBadKeyMaterial, len(config.EncryptionKey), secret.KeyLen)
	}
	// Apply defaults
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Authority{
		config: config,
		store:  store,
	}, nil
}

// Verify resolves a bearer value of the form "prefix.secret" to an Identity.
//
// Failure modes, in evaluation order: ErrTokenMalformed for a bad shape,
// ErrTokenUnknown for an unregistered prefix, ErrInvalidSecret for a hash
// mismatch (constant-time comparison), ErrTokenRevoked, ErrTokenExpired.
func (a *Authority) Verify(ctx context.Context, bearer string) (*Identity, error) {
	prefix, tokenSecret, err := splitToken(bearer)
	if err != nil {
		return nil, err
	}

	record, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("auth: lookup token: %w", err)
	}
	if record == nil {
		return nil, ErrTokenUnknown
	}

	if !secret.ConstantTimeEqual(HashSecret(tokenSecret), record.TokenHash) {
		return nil, ErrInvalidSecret
	}
	if record.Revoked() {
		return nil, ErrTokenRevoked
	}
	if record.Expired(a.config.Clock()) {
		return nil, ErrTokenExpired
	}

	return record.Identity(), nil
}

// IssueOptions carries the optional attributes of a new token.
type IssueOptions struct {
	// AllowedTools restricts the token to the named tools.
	// nil means unrestricted.
	AllowedTools []string

	// RateLimit overrides the per-client default when positive.
	RateLimit *int

	// ExpiresAt sets an expiry instant. Zero means never.
	ExpiresAt time.Time
}

// Issue generates a new token, persists its hash and reveal ciphertext, and
// returns the plaintext exactly once. The plaintext is never persisted raw
// and must never be logged.
func (a *Authority) Issue(ctx context.Context, description string, opts IssueOptions) (string, *ClientToken, error) {
	if opts.RateLimit != nil && *opts.RateLimit <= 0 {
		return "", nil, fmt.Errorf("auth: rate limit override must be positive, got %d", *opts.RateLimit)
	}

	prefix, err := randomHex(PrefixLen)
	if err != nil {
		return "", nil, err
	}
	tokenSecret, err := randomHex(SecretLen)
	if err != nil {
		return "", nil, err
	}
	plaintext := prefix + "." + tokenSecret

	encrypted, err := secret.Encrypt(a.config.EncryptionKey, plaintext)
	if err != nil {
		return "", nil, fmt.Errorf("auth: encrypt token: %w", err)
	}

	record := &ClientToken{
		ID:             uuid.NewString(),
		TokenPrefix:    prefix,
		TokenHash:      HashSecret(tokenSecret),
		TokenEncrypted: encrypted,
		Description:    description,
		AllowedTools:   opts.AllowedTools,
		RateLimit:      opts.RateLimit,
		ExpiresAt:      opts.ExpiresAt,
		CreatedAt:      a.config.Clock(),
	}
	if err := a.store.Put(ctx, record); err != nil {
		return "", nil, fmt.Errorf("auth: persist token: %w", err)
	}
	return plaintext, record.clone(), nil
}

// Reveal decrypts and returns a token's plaintext for an administrative
// caller. Admin authorization is enforced by the calling collaborator.
//
// A missing record fails with ErrTokenUnknown; a missing or undecryptable
// ciphertext (for example after an encryption key rotation) fails with
// secret.ErrDecryptFailed so callers can distinguish the two.
func (a *Authority) Reveal(ctx context.Context, id string) (string, error) {
	record, err := a.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("auth: lookup token: %w", err)
	}
	if record == nil {
		return "", ErrTokenUnknown
	}
	if len(record.TokenEncrypted) == 0 {
		return "", fmt.Errorf("%w: no ciphertext stored for token", secret.ErrDecryptFailed)
	}
	return secret.Decrypt(a.config.EncryptionKey, record.TokenEncrypted)
}

// Revoke idempotently sets the token's RevokedAt.
func (a *Authority) Revoke(ctx context.Context, id string) error {
	return a.store.MarkRevoked(ctx, id, a.config.Clock())
}

// HashSecret returns the one-way digest stored for a token secret.
func HashSecret(tokenSecret string) string {
	digest := sha256.Sum256([]byte(tokenSecret))
	return hex.EncodeToString(digest[:])
}

// splitToken parses "prefix.secret" and validates the fixed hex format.
func splitToken(bearer string) (prefix, tokenSecret string, err error) {
	bearer = strings.TrimSpace(bearer)
	dot := strings.IndexByte(bearer, '.')
	if dot < 0 {
		return "", "", ErrTokenMalformed
	}
	prefix, tokenSecret = bearer[:dot], bearer[dot+1:]
	if len(prefix) != PrefixLen || len(tokenSecret) != SecretLen {
		return "", "", ErrTokenMalformed
	}
	if !isLowerHex(prefix) || !isLowerHex(tokenSecret) {
		return "", "", ErrTokenMalformed
	}
	return prefix, tokenSecret, nil
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// randomHex returns n hex characters of cryptographic randomness.
func randomHex(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token material: %w", err)
	}
	return hex.EncodeToString(buf)[:n], nil
}

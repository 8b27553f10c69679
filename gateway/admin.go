package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ykq007/mcp-nexus-cf/auth"
	"github.com/ykq007/mcp-nexus-cf/keypool"
	"github.com/ykq007/mcp-nexus-cf/observe"
	"github.com/ykq007/mcp-nexus-cf/secret"
)

// TokenSummary is the operator view of a client token. It never carries
// the plaintext secret or its ciphertext.
type TokenSummary struct {
	ID           string     `json:"id"`
	TokenPrefix  string     `json:"token_prefix"`
	Description  string     `json:"description"`
	AllowedTools []string   `json:"allowed_tools,omitempty"`
	RateLimit    *int       `json:"rate_limit,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// CredentialSummary is the operator view of a provider credential.
// The key appears only in masked form.
type CredentialSummary struct {
	ID         string     `json:"id"`
	ProviderID string     `json:"provider_id"`
	Label      string     `json:"label,omitempty"`
	MaskedKey  string     `json:"masked_key"`
	Status     string     `json:"status"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AdminConfig holds the operator-surface configuration.
type AdminConfig struct {
	// EncryptionKey protects provider credentials at rest. Must be
	// secret.KeyLen bytes.
	EncryptionKey []byte

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Admin is the operator surface: token lifecycle and credential
// management. Every operation requires a valid admin bearer token.
type Admin struct {
	config      AdminConfig
	verifier    *auth.AdminVerifier
	authority   *auth.Authority
	tokens      auth.TokenStore
	credentials keypool.CredentialStore
	logger      observe.Logger
}

// NewAdmin validates the collaborators and builds an Admin.
func NewAdmin(config AdminConfig, verifier *auth.AdminVerifier, authority *auth.Authority, tokens auth.TokenStore, credentials keypool.CredentialStore, logger observe.Logger) (*Admin, error) {
	if verifier == nil {
		return nil, fmt.Errorf("%w: admin verifier", ErrMissingDependency)
	}
	if authority == nil {
		return nil, fmt.Errorf("%w: authority", ErrMissingDependency)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: token store", ErrMissingDependency)
	}
	if credentials == nil {
		return nil, fmt.Errorf("%w: credential store", ErrMissingDependency)
	}
	if len(config.EncryptionKey) != secret.KeyLen {
		return nil, fmt.Errorf("%w: expected %d-byte encryption key", secret.ErrBadKeyMaterial, secret.KeyLen)
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if logger == nil {
		logger = observe.NewNoopObserver().Logger()
	}

	key := make([]byte, secret.KeyLen)
	copy(key, config.EncryptionKey)
	config.EncryptionKey = key

	return &Admin{
		config:      config,
		verifier:    verifier,
		authority:   authority,
		tokens:      tokens,
		credentials: credentials,
		logger:      logger,
	}, nil
}

// IssueToken mints a new client token and returns the plaintext exactly
// once alongside its summary.
func (a *Admin) IssueToken(ctx context.Context, adminBearer, description string, opts auth.IssueOptions) (string, *TokenSummary, error) {
	subject, err := a.verifier.Verify(adminBearer)
	if err != nil {
		return "", nil, err
	}

	plaintext, record, err := a.authority.Issue(ctx, description, opts)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	a.logger.Info(ctx, "token issued",
		observe.Field{Key: "admin", Value: subject},
		observe.Field{Key: "token_id", Value: record.ID},
		observe.Field{Key: "token_prefix", Value: record.TokenPrefix},
	)
	summary := summarizeToken(record)
	return plaintext, &summary, nil
}

// RevokeToken permanently disables a client token.
func (a *Admin) RevokeToken(ctx context.Context, adminBearer, tokenID string) error {
	subject, err := a.verifier.Verify(adminBearer)
	if err != nil {
		return err
	}

	if err := a.authority.Revoke(ctx, tokenID); err != nil {
		return err
	}

	a.logger.Info(ctx, "token revoked",
		observe.Field{Key: "admin", Value: subject},
		observe.Field{Key: "token_id", Value: tokenID},
	)
	return nil
}

// RevealToken decrypts and returns the plaintext of an issued token.
func (a *Admin) RevealToken(ctx context.Context, adminBearer, tokenID string) (string, error) {
	subject, err := a.verifier.Verify(adminBearer)
	if err != nil {
		return "", err
	}

	plaintext, err := a.authority.Reveal(ctx, tokenID)
	if err != nil {
		return "", err
	}

	a.logger.Warn(ctx, "token revealed",
		observe.Field{Key: "admin", Value: subject},
		observe.Field{Key: "token_id", Value: tokenID},
	)
	return plaintext, nil
}

// ListTokens returns summaries of all tokens in creation order.
func (a *Admin) ListTokens(ctx context.Context, adminBearer string) ([]TokenSummary, error) {
	if _, err := a.verifier.Verify(adminBearer); err != nil {
		return nil, err
	}

	records, err := a.tokens.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	summaries := make([]TokenSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, summarizeToken(record))
	}
	return summaries, nil
}

// AddCredential encrypts and stores a new provider credential.
func (a *Admin) AddCredential(ctx context.Context, adminBearer, providerID, label, plaintextKey string) (*CredentialSummary, error) {
	subject, err := a.verifier.Verify(adminBearer)
	if err != nil {
		return nil, err
	}
	if providerID == "" {
		return nil, fmt.Errorf("gateway: provider id is required")
	}
	if plaintextKey == "" {
		return nil, fmt.Errorf("gateway: credential key is required")
	}

	encrypted, err := secret.Encrypt(a.config.EncryptionKey, plaintextKey)
	if err != nil {
		return nil, fmt.Errorf("gateway: encrypt credential: %w", err)
	}

	credential := &keypool.Credential{
		ID:           uuid.NewString(),
		ProviderID:   providerID,
		Label:        label,
		MaskedKey:    secret.Mask(plaintextKey),
		EncryptedKey: encrypted,
		Status:       keypool.StatusActive,
		CreatedAt:    a.config.Clock(),
	}
	if err := a.credentials.Put(ctx, credential); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	a.logger.Info(ctx, "credential added",
		observe.Field{Key: "admin", Value: subject},
		observe.Field{Key: "credential_id", Value: credential.ID},
		observe.Field{Key: "provider", Value: providerID},
		observe.Field{Key: "masked_key", Value: credential.MaskedKey},
	)
	summary := summarizeCredential(credential)
	return &summary, nil
}

// SetCredentialStatus activates or disables a credential.
func (a *Admin) SetCredentialStatus(ctx context.Context, adminBearer, credentialID string, status keypool.Status) error {
	subject, err := a.verifier.Verify(adminBearer)
	if err != nil {
		return err
	}

	if err := a.credentials.SetStatus(ctx, credentialID, status); err != nil {
		return err
	}

	a.logger.Info(ctx, "credential status changed",
		observe.Field{Key: "admin", Value: subject},
		observe.Field{Key: "credential_id", Value: credentialID},
		observe.Field{Key: "status", Value: string(status)},
	)
	return nil
}

// ListCredentials returns masked summaries of a provider's credentials
// in creation order.
func (a *Admin) ListCredentials(ctx context.Context, adminBearer, providerID string) ([]CredentialSummary, error) {
	if _, err := a.verifier.Verify(adminBearer); err != nil {
		return nil, err
	}

	records, err := a.credentials.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	summaries := make([]CredentialSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, summarizeCredential(record))
	}
	return summaries, nil
}

func summarizeToken(record *auth.ClientToken) TokenSummary {
	summary := TokenSummary{
		ID:           record.ID,
		TokenPrefix:  record.TokenPrefix,
		Description:  record.Description,
		AllowedTools: append([]string(nil), record.AllowedTools...),
		CreatedAt:    record.CreatedAt,
	}
	if record.AllowedTools != nil && summary.AllowedTools == nil {
		summary.AllowedTools = []string{}
	}
	if record.RateLimit != nil {
		limit := *record.RateLimit
		summary.RateLimit = &limit
	}
	if !record.ExpiresAt.IsZero() {
		expires := record.ExpiresAt
		summary.ExpiresAt = &expires
	}
	if !record.RevokedAt.IsZero() {
		revoked := record.RevokedAt
		summary.RevokedAt = &revoked
	}
	return summary
}

func summarizeCredential(record *keypool.Credential) CredentialSummary {
	summary := CredentialSummary{
		ID:         record.ID,
		ProviderID: record.ProviderID,
		Label:      record.Label,
		MaskedKey:  record.MaskedKey,
		Status:     string(record.Status),
		CreatedAt:  record.CreatedAt,
	}
	if !record.LastUsedAt.IsZero() {
		used := record.LastUsedAt
		summary.LastUsedAt = &used
	}
	return summary
}

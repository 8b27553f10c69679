package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ykq007/mcp-nexus-cf/keypool"
)

// CredentialStore is the SQLite implementation of keypool.CredentialStore.
type CredentialStore struct {
	db *sql.DB
}

// Credentials returns the credential store backed by this database.
func (d *DB) Credentials() *CredentialStore {
	return &CredentialStore{db: d.db}
}

const credentialColumns = `id, provider_id, label, masked_key, encrypted_key,
	status, last_used_at, created_at`

// ListByProvider returns the provider's credentials in creation order,
// any status.
func (s *CredentialStore) ListByProvider(ctx context.Context, providerID string) ([]*keypool.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE provider_id = ? ORDER BY seq`,
		providerID)
	if err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*keypool.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	return credentials, nil
}

// Get retrieves a credential by id. Returns nil if not found.
func (s *CredentialStore) Get(ctx context.Context, id string) (*keypool.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
	return scanCredential(row)
}

// Put inserts or replaces a credential. Replacing keeps the original
// position in creation order.
func (s *CredentialStore) Put(ctx context.Context, credential *keypool.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials
			(id, provider_id, label, masked_key, encrypted_key, status,
			 last_used_at, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM credentials))
		ON CONFLICT(id) DO UPDATE SET
			provider_id   = excluded.provider_id,
			label         = excluded.label,
			masked_key    = excluded.masked_key,
			encrypted_key = excluded.encrypted_key,
			status        = excluded.status,
			last_used_at  = excluded.last_used_at,
			created_at    = excluded.created_at`,
		credential.ID, credential.ProviderID, credential.Label,
		credential.MaskedKey, credential.EncryptedKey, string(credential.Status),
		nullableUnix(credential.LastUsedAt), credential.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: put credential: %w", err)
	}
	return nil
}

// SetStatus transitions a credential's status. Returns
// keypool.ErrCredentialNotFound for a missing id.
func (s *CredentialStore) SetStatus(ctx context.Context, id string, status keypool.Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	if affected == 0 {
		return keypool.ErrCredentialNotFound
	}
	return nil
}

// TouchLastUsed updates the credential's last-used instant.
func (s *CredentialStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET last_used_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("store: touch last used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: touch last used: %w", err)
	}
	if affected == 0 {
		return keypool.ErrCredentialNotFound
	}
	return nil
}

func scanCredential(row rowScanner) (*keypool.Credential, error) {
	var (
		credential keypool.Credential
		status     string
		lastUsed   sql.NullInt64
		createdAt  int64
	)

	err := row.Scan(&credential.ID, &credential.ProviderID, &credential.Label,
		&credential.MaskedKey, &credential.EncryptedKey, &status, &lastUsed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan credential: %w", err)
	}

	credential.Status = keypool.Status(status)
	credential.LastUsedAt = timeFromUnix(lastUsed)
	credential.CreatedAt = time.Unix(0, createdAt).UTC()

	return &credential, nil
}

var _ keypool.CredentialStore = (*CredentialStore)(nil)

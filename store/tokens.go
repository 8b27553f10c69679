package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ykq007/mcp-nexus-cf/auth"
)

// TokenStore is the SQLite implementation of auth.TokenStore.
type TokenStore struct {
	db *sql.DB
}

// Tokens returns the token store backed by this database.
func (d *DB) Tokens() *TokenStore {
	return &TokenStore{db: d.db}
}

const tokenColumns = `id, token_prefix, token_hash, token_encrypted, description,
	allowed_tools, rate_limit, created_at, expires_at, revoked_at`

// LookupByPrefix retrieves a token by prefix. Returns nil if not found.
func (s *TokenStore) LookupByPrefix(ctx context.Context, prefix string) (*auth.ClientToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM client_tokens WHERE token_prefix = ?`, prefix)
	return scanToken(row)
}

// Get retrieves a token by id. Returns nil if not found.
func (s *TokenStore) Get(ctx context.Context, id string) (*auth.ClientToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM client_tokens WHERE id = ?`, id)
	return scanToken(row)
}

// Put inserts or replaces a token record. Replacing keeps the original
// position in creation order.
func (s *TokenStore) Put(ctx context.Context, token *auth.ClientToken) error {
	allowedTools, err := encodeAllowedTools(token.AllowedTools)
	if err != nil {
		return fmt.Errorf("store: encode allowed tools: %w", err)
	}

	var rateLimit any
	if token.RateLimit != nil {
		rateLimit = *token.RateLimit
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_tokens
			(id, token_prefix, token_hash, token_encrypted, description,
			 allowed_tools, rate_limit, created_at, expires_at, revoked_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM client_tokens))
		ON CONFLICT(id) DO UPDATE SET
			token_prefix    = excluded.token_prefix,
			token_hash      = excluded.token_hash,
			token_encrypted = excluded.token_encrypted,
			description     = excluded.description,
			allowed_tools   = excluded.allowed_tools,
			rate_limit      = excluded.rate_limit,
			created_at      = excluded.created_at,
			expires_at      = excluded.expires_at,
			revoked_at      = excluded.revoked_at`,
		token.ID, token.TokenPrefix, token.TokenHash, token.TokenEncrypted,
		token.Description, allowedTools, rateLimit,
		token.CreatedAt.UnixNano(), nullableUnix(token.ExpiresAt), nullableUnix(token.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("store: put token: %w", err)
	}
	return nil
}

// MarkRevoked sets RevokedAt if unset. Idempotent; returns
// auth.ErrTokenUnknown for a missing id.
func (s *TokenStore) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE client_tokens SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("store: mark revoked: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: mark revoked: %w", err)
	}
	if affected == 0 {
		// Distinguish already-revoked from missing.
		existing, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return auth.ErrTokenUnknown
		}
	}
	return nil
}

// List returns all token records in creation order.
func (s *TokenStore) List(ctx context.Context) ([]*auth.ClientToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM client_tokens ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("store: list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*auth.ClientToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list tokens: %w", err)
	}
	return tokens, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*auth.ClientToken, error) {
	var (
		token        auth.ClientToken
		allowedTools sql.NullString
		rateLimit    sql.NullInt64
		createdAt    int64
		expiresAt    sql.NullInt64
		revokedAt    sql.NullInt64
	)

	err := row.Scan(&token.ID, &token.TokenPrefix, &token.TokenHash,
		&token.TokenEncrypted, &token.Description, &allowedTools, &rateLimit,
		&createdAt, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan token: %w", err)
	}

	if allowedTools.Valid {
		tools, err := decodeAllowedTools(allowedTools.String)
		if err != nil {
			return nil, fmt.Errorf("store: decode allowed tools: %w", err)
		}
		token.AllowedTools = tools
	}
	if rateLimit.Valid {
		limit := int(rateLimit.Int64)
		token.RateLimit = &limit
	}
	token.CreatedAt = time.Unix(0, createdAt).UTC()
	token.ExpiresAt = timeFromUnix(expiresAt)
	token.RevokedAt = timeFromUnix(revokedAt)

	return &token, nil
}

// encodeAllowedTools keeps the nil/empty distinction: nil maps to NULL
// (unrestricted), an empty slice to "[]" (deny all).
func encodeAllowedTools(tools []string) (any, error) {
	if tools == nil {
		return nil, nil
	}
	data, err := json.Marshal(tools)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeAllowedTools(raw string) ([]string, error) {
	tools := []string{}
	if err := json.Unmarshal([]byte(raw), &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

var _ auth.TokenStore = (*TokenStore)(nil)

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ykq007/mcp-nexus-cf/auth"
	"github.com/ykq007/mcp-nexus-cf/keypool"
	"github.com/ykq007/mcp-nexus-cf/secret"
)

// Kind is the stable machine-readable category of a request failure.
type Kind string

const (
	// KindAuth covers malformed, unknown, invalid, revoked, and expired tokens.
	KindAuth Kind = "auth_error"

	// KindScope covers requests for tools outside the token's allowlist.
	KindScope Kind = "scope_error"

	// KindRateLimit covers client-scope and global-scope limit rejections.
	KindRateLimit Kind = "rate_limit"

	// KindPoolExhausted covers providers with no usable credential.
	KindPoolExhausted Kind = "key_pool_exhausted"

	// KindDecryption covers credential or token ciphertext that cannot be opened.
	KindDecryption Kind = "decryption_error"

	// KindStorage covers backing-store failures.
	KindStorage Kind = "storage_error"

	// KindInternal covers everything else, including upstream forward failures.
	KindInternal Kind = "internal"
)

// Dispatcher errors.
var (
	// ErrStorage wraps failures of the token or credential store.
	ErrStorage = errors.New("gateway: storage failure")

	// ErrMissingDependency indicates a required collaborator was not provided.
	ErrMissingDependency = errors.New("gateway: missing dependency")
)

// RateLimitError reports a rate-limit rejection with enough detail for
// the client to back off.
type RateLimitError struct {
	// Scope is "client" or "global".
	Scope string

	// Limit is the per-window request budget that was exceeded.
	Limit int

	// RetryAfter is the time remaining until the window resets.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("gateway: %s rate limit of %d exceeded, retry after %s", e.Scope, e.Limit, e.RetryAfter)
}

// Payload is the wire shape of a request failure.
type Payload struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Classify maps an error from any dispatch stage to its failure kind.
func Classify(err error) Kind {
	var scopeErr *auth.ScopeError
	var limitErr *RateLimitError

	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &scopeErr), errors.Is(err, auth.ErrForbidden):
		return KindScope
	case errors.As(err, &limitErr):
		return KindRateLimit
	case errors.Is(err, keypool.ErrPoolExhausted):
		return KindPoolExhausted
	case errors.Is(err, secret.ErrDecryptFailed):
		return KindDecryption
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenUnknown),
		errors.Is(err, auth.ErrInvalidSecret),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrAdminUnauthorized):
		return KindAuth
	default:
		return KindInternal
	}
}

// PayloadFor converts an error into its wire payload. Storage and
// internal failures get a generic message; the detail belongs in logs,
// not in responses.
func PayloadFor(err error) Payload {
	kind := Classify(err)
	p := Payload{Kind: kind, Message: err.Error()}

	switch kind {
	case KindScope:
		var scopeErr *auth.ScopeError
		if errors.As(err, &scopeErr) {
			p.Data = map[string]any{
				"tool":          scopeErr.Tool,
				"allowed_tools": scopeErr.Allowed,
			}
		}
	case KindRateLimit:
		var limitErr *RateLimitError
		if errors.As(err, &limitErr) {
			p.Data = map[string]any{
				"scope":          limitErr.Scope,
				"limit":          limitErr.Limit,
				"retry_after_ms": ceilMillis(limitErr.RetryAfter),
			}
		}
	case KindStorage:
		p.Message = "storage failure"
	case KindInternal:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.Message = "request canceled"
		} else {
			p.Message = "internal error"
		}
	}

	return p
}

// ceilMillis rounds up so a sub-millisecond wait never reports zero.
func ceilMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	return ms
}

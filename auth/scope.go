package auth

import (
	"context"
	"fmt"
	"strings"
)

// Authorizer determines whether an identity may invoke a tool.
type Authorizer interface {
	// Authorize returns nil if the invocation is permitted, or an error
	// (typically *ScopeError) if denied.
	Authorize(ctx context.Context, identity *Identity, tool string) error

	// Name returns a unique identifier for this authorizer.
	Name() string
}

// ScopeError reports a tool invocation outside the token's allowlist.
// It carries the requested tool and the full allowed list so the caller can
// render an actionable message.
type ScopeError struct {
	// Tool is the requested tool name.
	Tool string

	// Allowed is the token's allowed-tool list at denial time.
	Allowed []string
}

// Error returns the denial message, including the allowed-tool list.
func (e *ScopeError) Error() string {
	return fmt.Sprintf("auth: tool %q is not allowed for this token (allowed tools: %s)",
		e.Tool, strings.Join(e.Allowed, ", "))
}

// Is reports whether this error matches the target.
func (e *ScopeError) Is(target error) bool {
	return target == ErrForbidden
}

// ScopeAuthorizer enforces the per-token allowed-tool list: an identity
// without a list may invoke anything, otherwise the tool name must match a
// member exactly (case-sensitive).
type ScopeAuthorizer struct{}

// NewScopeAuthorizer creates a tool-scope authorizer.
func NewScopeAuthorizer() *ScopeAuthorizer {
	return &ScopeAuthorizer{}
}

// Name returns "tool_scope".
func (a *ScopeAuthorizer) Name() string {
	return "tool_scope"
}

// Authorize checks the identity's allowed-tool list.
func (a *ScopeAuthorizer) Authorize(_ context.Context, identity *Identity, tool string) error {
	if identity == nil {
		return ErrForbidden
	}
	if identity.ToolAllowed(tool) {
		return nil
	}
	return &ScopeError{
		Tool:    tool,
		Allowed: append([]string{}, identity.AllowedTools...),
	}
}

// AllowAllAuthorizer permits every invocation.
type AllowAllAuthorizer struct{}

// Authorize always returns nil (permitted).
func (a AllowAllAuthorizer) Authorize(context.Context, *Identity, string) error {
	return nil
}

// Name returns "allow_all".
func (a AllowAllAuthorizer) Name() string {
	return "allow_all"
}

// AuthorizerFunc is an adapter to allow use of ordinary functions as
// Authorizers.
type AuthorizerFunc func(ctx context.Context, identity *Identity, tool string) error

// Authorize calls the function.
func (f AuthorizerFunc) Authorize(ctx context.Context, identity *Identity, tool string) error {
	return f(ctx, identity, tool)
}

// Name returns "func" for function-based authorizers.
func (f AuthorizerFunc) Name() string {
	return "func"
}

// Ensure implementations satisfy Authorizer
var (
	_ Authorizer = (*ScopeAuthorizer)(nil)
	_ Authorizer = AllowAllAuthorizer{}
	_ Authorizer = AuthorizerFunc(nil)
)

package auth

// Identity is the resolved authorization record for a verified bearer token.
type Identity struct {
	// TokenID is the client token's opaque stable identifier.
	TokenID string

	// AllowedTools restricts which tools this token may invoke.
	// nil means unrestricted; an empty non-nil slice allows nothing.
	AllowedTools []string

	// RateLimit overrides the configured per-client requests/minute limit.
	// nil means use the configured default.
	RateLimit *int
}

// Unrestricted reports whether the identity may invoke any tool.
func (id *Identity) Unrestricted() bool {
	return id.AllowedTools == nil
}

// ToolAllowed reports whether the identity may invoke the named tool.
// Matching is exact and case-sensitive.
func (id *Identity) ToolAllowed(tool string) bool {
	if id.AllowedTools == nil {
		return true
	}
	for _, t := range id.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// EffectiveRateLimit returns the per-client limit to enforce, falling back
// to defaultPerMinute when no override is set.
func (id *Identity) EffectiveRateLimit(defaultPerMinute int) int {
	if id.RateLimit != nil {
		return *id.RateLimit
	}
	return defaultPerMinute
}

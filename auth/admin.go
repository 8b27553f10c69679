package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AdminConfig configures the admin JWT verifier.
type AdminConfig struct {
	// SigningKey is the HMAC key for HS256 admin tokens.
	SigningKey []byte

	// Issuer is the expected token issuer (iss claim). Optional.
	Issuer string

	// Audience is the expected token audience (aud claim). Optional.
	Audience string
}

// AdminVerifier validates the JWT presented by the administrative surface
// before token issue/reveal/revoke and credential management calls reach
// the core. It authenticates the admin caller only; the core's own
// operations stay authorization-agnostic.
type AdminVerifier struct {
	config AdminConfig
}

// NewAdminVerifier creates an admin JWT verifier.
func NewAdminVerifier(config AdminConfig) (*AdminVerifier, error) {
	if len(config.SigningKey) == 0 {
		return nil, fmt.Errorf("auth: admin signing key is required")
	}
	return &AdminVerifier{config: config}, nil
}

// Verify validates an admin bearer value ("Bearer " prefix optional) and
// returns the token subject. Any validation failure maps to
// ErrAdminUnauthorized.
func (v *AdminVerifier) Verify(bearer string) (string, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearer), "Bearer "))
	if raw == "" {
		return "", ErrAdminUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return v.config.SigningKey, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdminUnauthorized, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrAdminUnauthorized)
	}
	return subject, nil
}

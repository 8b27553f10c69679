package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var adminKey = []byte("admin-signing-key-for-tests")

func signAdminToken(t *testing.T, claims jwt.MapClaims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminVerifier_Verify(t *testing.T) {
	verifier, err := NewAdminVerifier(AdminConfig{
		SigningKey: adminKey,
		Issuer:     "nexus-admin",
		Audience:   "gateway",
	})
	if err != nil {
		t.Fatalf("NewAdminVerifier() error = %v", err)
	}

	validClaims := jwt.MapClaims{
		"sub": "ops@example.com",
		"iss": "nexus-admin",
		"aud": "gateway",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	t.Run("valid token", func(t *testing.T) {
		subject, err := verifier.Verify("Bearer " + signAdminToken(t, validClaims, adminKey))
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if subject != "ops@example.com" {
			t.Errorf("subject = %q, want ops@example.com", subject)
		}
	})

	t.Run("without bearer prefix", func(t *testing.T) {
		if _, err := verifier.Verify(signAdminToken(t, validClaims, adminKey)); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})

	rejections := []struct {
		name   string
		bearer string
	}{
		{"empty", ""},
		{"garbage", "Bearer not.a.jwt"},
		{"wrong key", signAdminToken(t, validClaims, []byte("other-key"))},
		{"expired", signAdminToken(t, jwt.MapClaims{
			"sub": "ops", "iss": "nexus-admin", "aud": "gateway",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}, adminKey)},
		{"wrong issuer", signAdminToken(t, jwt.MapClaims{
			"sub": "ops", "iss": "someone-else", "aud": "gateway",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, adminKey)},
		{"wrong audience", signAdminToken(t, jwt.MapClaims{
			"sub": "ops", "iss": "nexus-admin", "aud": "other",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, adminKey)},
		{"missing expiry", signAdminToken(t, jwt.MapClaims{
			"sub": "ops", "iss": "nexus-admin", "aud": "gateway",
		}, adminKey)},
		{"missing subject", signAdminToken(t, jwt.MapClaims{
			"iss": "nexus-admin", "aud": "gateway",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, adminKey)},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifier.Verify(tt.bearer); !errors.Is(err, ErrAdminUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrAdminUnauthorized", err)
			}
		})
	}
}

func TestNewAdminVerifier_RequiresKey(t *testing.T) {
	if _, err := NewAdminVerifier(AdminConfig{}); err == nil {
		t.Error("NewAdminVerifier() accepted empty signing key")
	}
}

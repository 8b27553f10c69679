package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ykq007/mcp-nexus-cf/secret"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FullFile(t *testing.T) {
	t.Setenv("NEXUS_TEST_ENCRYPTION_KEY", testHexKey)
	t.Setenv("NEXUS_TEST_ADMIN_KEY", "admin-signing-material")

	path := writeConfig(t, `
gateway:
  global_rate_limit_per_minute: 1200
  client_rate_limit_per_minute: 90
  credential_strategy: random
  encryption_secret: secretref:env:NEXUS_TEST_ENCRYPTION_KEY
  admin_signing_secret: secretref:env:NEXUS_TEST_ADMIN_KEY
  admin_issuer: nexus-admin
database:
  path: /var/lib/nexus/nexus.db
telemetry:
  log_level: debug
  metrics_enabled: true
  metrics_exporter: prometheus
`)

	opts, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if opts.Gateway.GlobalRateLimitPerMinute != 1200 {
		t.Errorf("global limit = %d", opts.Gateway.GlobalRateLimitPerMinute)
	}
	if opts.Gateway.ClientRateLimitPerMinute != 90 {
		t.Errorf("client limit = %d", opts.Gateway.ClientRateLimitPerMinute)
	}
	if opts.Gateway.CredentialStrategy != "random" {
		t.Errorf("strategy = %q", opts.Gateway.CredentialStrategy)
	}
	if opts.Database.Path != "/var/lib/nexus/nexus.db" {
		t.Errorf("database path = %q", opts.Database.Path)
	}
	if opts.Telemetry.LogLevel != "debug" {
		t.Errorf("log level = %q", opts.Telemetry.LogLevel)
	}

	if len(opts.EncryptionKey) != secret.KeyLen {
		t.Errorf("encryption key length = %d, want %d", len(opts.EncryptionKey), secret.KeyLen)
	}
	if string(opts.AdminSigningKey) != "admin-signing-material" {
		t.Errorf("admin signing key = %q", opts.AdminSigningKey)
	}
	if opts.Gateway.AdminIssuer != "nexus-admin" {
		t.Errorf("admin issuer = %q", opts.Gateway.AdminIssuer)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  encryption_secret: `+testHexKey+`
`)

	opts, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if opts.Gateway.GlobalRateLimitPerMinute != DefaultGlobalRateLimitPerMinute {
		t.Errorf("global limit = %d, want default", opts.Gateway.GlobalRateLimitPerMinute)
	}
	if opts.Gateway.ClientRateLimitPerMinute != DefaultClientRateLimitPerMinute {
		t.Errorf("client limit = %d, want default", opts.Gateway.ClientRateLimitPerMinute)
	}
	if opts.Gateway.CredentialStrategy != DefaultCredentialStrategy {
		t.Errorf("strategy = %q, want default", opts.Gateway.CredentialStrategy)
	}
	if opts.Database.Path != DefaultDatabasePath {
		t.Errorf("database path = %q, want default", opts.Database.Path)
	}
	if opts.Telemetry.LogLevel != DefaultLogLevel {
		t.Errorf("log level = %q, want default", opts.Telemetry.LogLevel)
	}
	if len(opts.AdminSigningKey) != 0 {
		t.Errorf("admin signing key = %q, want empty", opts.AdminSigningKey)
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing encryption secret",
			body: "gateway: {}\n",
			want: "validation",
		},
		{
			name: "unknown strategy",
			body: "gateway:\n  credential_strategy: sticky\n  encryption_secret: " + testHexKey + "\n",
			want: "validation",
		},
		{
			name: "zero rate limit",
			body: "gateway:\n  global_rate_limit_per_minute: 0\n  encryption_secret: " + testHexKey + "\n",
			want: "validation",
		},
		{
			name: "bad log level",
			body: "telemetry:\n  log_level: loud\ngateway:\n  encryption_secret: " + testHexKey + "\n",
			want: "validation",
		},
		{
			name: "unresolvable secret ref",
			body: "gateway:\n  encryption_secret: secretref:env:NEXUS_TEST_DOES_NOT_EXIST\n",
			want: "resolve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			_, err := Load(context.Background(), path)
			if err == nil {
				t.Fatal("Load() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_BadKeyMaterial(t *testing.T) {
	path := writeConfig(t, "gateway:\n  encryption_secret: too-short\n")
	_, err := Load(context.Background(), path)
	if !errors.Is(err, secret.ErrBadKeyMaterial) {
		t.Errorf("Load() error = %v, want ErrBadKeyMaterial", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NEXUS_GATEWAY_GLOBAL_RATE_LIMIT_PER_MINUTE", "42")

	path := writeConfig(t, "gateway:\n  encryption_secret: "+testHexKey+"\n")
	opts, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if opts.Gateway.GlobalRateLimitPerMinute != 42 {
		t.Errorf("global limit = %d, want env override 42", opts.Gateway.GlobalRateLimitPerMinute)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NEXUS_GATEWAY_ENCRYPTION_SECRET", testHexKey)
	t.Chdir(t.TempDir())

	opts, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if opts.Gateway.CredentialStrategy != DefaultCredentialStrategy {
		t.Errorf("strategy = %q, want default", opts.Gateway.CredentialStrategy)
	}
}

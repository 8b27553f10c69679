package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ykq007/mcp-nexus-cf/secret"
)

// Defaults applied when the file and environment leave a field unset.
const (
	DefaultGlobalRateLimitPerMinute = 600
	DefaultClientRateLimitPerMinute = 60
	DefaultCredentialStrategy       = "round_robin"
	DefaultDatabasePath             = "nexus.db"
	DefaultLogLevel                 = "info"
)

// Options is the full configuration tree.
type Options struct {
	Gateway   GatewayOptions   `mapstructure:"gateway"`
	Database  DatabaseOptions  `mapstructure:"database"`
	Telemetry TelemetryOptions `mapstructure:"telemetry"`

	// EncryptionKey is the decoded 32-byte key derived from
	// Gateway.EncryptionSecret. Populated by Load, never read from file.
	EncryptionKey []byte `mapstructure:"-"`

	// AdminSigningKey is the resolved admin JWT signing key. Empty when
	// Gateway.AdminSigningSecret is unset.
	AdminSigningKey []byte `mapstructure:"-"`
}

// GatewayOptions holds the access-control tunables.
type GatewayOptions struct {
	GlobalRateLimitPerMinute int    `mapstructure:"global_rate_limit_per_minute" validate:"gt=0"`
	ClientRateLimitPerMinute int    `mapstructure:"client_rate_limit_per_minute" validate:"gt=0"`
	CredentialStrategy       string `mapstructure:"credential_strategy" validate:"oneof=round_robin random"`

	// EncryptionSecret names the AES-256-GCM key, either inline key
	// material or a secret reference such as secretref:env:NAME.
	EncryptionSecret string `mapstructure:"encryption_secret" validate:"required"`

	// AdminSigningSecret names the HS256 key for admin JWTs. Optional;
	// without it the operator surface cannot be constructed.
	AdminSigningSecret string `mapstructure:"admin_signing_secret"`

	// AdminIssuer and AdminAudience narrow admin JWT validation.
	AdminIssuer   string `mapstructure:"admin_issuer"`
	AdminAudience string `mapstructure:"admin_audience"`
}

// DatabaseOptions configures the SQLite store.
type DatabaseOptions struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelemetryOptions configures the observe package.
type TelemetryOptions struct {
	TracingEnabled   bool    `mapstructure:"tracing_enabled"`
	TracingExporter  string  `mapstructure:"tracing_exporter"`
	TracingSamplePct float64 `mapstructure:"tracing_sample_pct" validate:"gte=0,lte=1"`
	MetricsEnabled   bool    `mapstructure:"metrics_enabled"`
	MetricsExporter  string  `mapstructure:"metrics_exporter"`
	LogLevel         string  `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Load reads, resolves, validates, and decodes the configuration.
// An empty path falls back to config.yaml in ./configs or the working
// directory; a missing file is fine, the defaults and environment carry.
func Load(ctx context.Context, path string) (*Options, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("NEXUS")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("gateway.global_rate_limit_per_minute", DefaultGlobalRateLimitPerMinute)
	vip.SetDefault("gateway.client_rate_limit_per_minute", DefaultClientRateLimitPerMinute)
	vip.SetDefault("gateway.credential_strategy", DefaultCredentialStrategy)
	// Registering empty defaults makes these keys visible to
	// AutomaticEnv even when absent from the file.
	vip.SetDefault("gateway.encryption_secret", "")
	vip.SetDefault("gateway.admin_signing_secret", "")
	vip.SetDefault("database.path", DefaultDatabasePath)
	vip.SetDefault("telemetry.log_level", DefaultLogLevel)

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var opts Options
	if err := vip.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&opts); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	resolver := secret.NewResolver(true, secret.NewEnvProvider())

	material, err := resolver.ResolveValue(ctx, opts.Gateway.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("config: resolve encryption secret: %w", err)
	}
	key, err := secret.DecodeKey(material)
	if err != nil {
		return nil, fmt.Errorf("config: encryption secret: %w", err)
	}
	opts.EncryptionKey = key

	if opts.Gateway.AdminSigningSecret != "" {
		signing, err := resolver.ResolveValue(ctx, opts.Gateway.AdminSigningSecret)
		if err != nil {
			return nil, fmt.Errorf("config: resolve admin signing secret: %w", err)
		}
		opts.AdminSigningKey = []byte(signing)
	}

	return &opts, nil
}

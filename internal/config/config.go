// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.agentdeck/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Server: HTTP listen address, JWT session secret, CORS
//   - AI: provider, model selection, tool-step budget, prompt directory
//   - Storage: PostgreSQL connection (see storage.go)
//   - Usage: model pricing catalog endpoint and cache lifetime
//   - Stream: resumable-stream backing configuration and retention
//
// Security: sensitive data (passwords, secrets) are never logged; the config
// directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxToolSteps indicates the tool-step budget is out of range.
	ErrInvalidMaxToolSteps = errors.New("invalid max tool steps")

	// ErrInvalidListenAddr indicates the HTTP listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrMissingJWTSecret indicates the JWT session secret is not set.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT session secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidCatalogURL indicates the usage catalog URL is invalid.
	ErrInvalidCatalogURL = errors.New("invalid usage catalog URL")

	// ErrInvalidCatalogTTL indicates the usage catalog cache lifetime is out of range.
	ErrInvalidCatalogTTL = errors.New("invalid usage catalog TTL")

	// ErrInvalidStreamRetention indicates the stream retention window is out of range.
	ErrInvalidStreamRetention = errors.New("invalid stream retention")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultMaxToolSteps caps the number of tool-execution rounds per
	// generation. Matches the orchestrator's hard budget.
	DefaultMaxToolSteps = 5

	// MaxAllowedToolSteps is the absolute maximum to keep runaway tool
	// loops bounded even with permissive configuration.
	MaxAllowedToolSteps = 25

	// ReasoningModelID is the model selector that disables tool use.
	// Reasoning output replaces tool calls for this model.
	ReasoningModelID = "chat-model-reasoning"

	// DefaultCatalogTTLHours is how long a fetched pricing catalog stays
	// fresh before a lazy refresh.
	DefaultCatalogTTLHours = 24

	// DefaultStreamRetentionSeconds is how long a finished stream's replay
	// buffer is kept for resumption.
	DefaultStreamRetentionSeconds = 300
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, secrets, tokens), update MarshalJSON.
type Config struct {
	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	JWTSecret   string   `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE: masked in MarshalJSON
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// AI provider and model configuration
	Provider     string `mapstructure:"provider" json:"provider"`       // "gemini" (default)
	ModelName    string `mapstructure:"model_name" json:"model_name"`   // default model identifier (e.g. "gemini-2.5-flash")
	MaxToolSteps int    `mapstructure:"max_tool_steps" json:"max_tool_steps"`
	PromptDir    string `mapstructure:"prompt_dir" json:"prompt_dir"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Usage normalization configuration
	UsageCatalogURL      string `mapstructure:"usage_catalog_url" json:"usage_catalog_url"`
	UsageCatalogTTLHours int    `mapstructure:"usage_catalog_ttl_hours" json:"usage_catalog_ttl_hours"`

	// Resumable stream configuration. StreamBackendURL empty means the
	// resumable-stream context is soft-disabled for the process lifetime.
	StreamBackendURL       string `mapstructure:"stream_backend_url" json:"stream_backend_url"`
	StreamRetentionSeconds int    `mapstructure:"stream_retention_seconds" json:"stream_retention_seconds"`

	// TrustProxy trusts X-Real-IP/X-Forwarded-For headers (set true behind a reverse proxy).
	TrustProxy bool `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Configuration directory: ~/.agentdeck/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".agentdeck")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Server defaults
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)

	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("max_tool_steps", DefaultMaxToolSteps)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "agentdeck")
	viper.SetDefault("postgres_password", "agentdeck_dev_password")
	viper.SetDefault("postgres_db_name", "agentdeck")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Usage catalog defaults
	viper.SetDefault("usage_catalog_url", "https://models.dev/api.json")
	viper.SetDefault("usage_catalog_ttl_hours", DefaultCatalogTTLHours)

	// Stream defaults: no backend configured, manager soft-disables itself
	viper.SetDefault("stream_backend_url", "")
	viper.SetDefault("stream_retention_seconds", DefaultStreamRetentionSeconds)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment:
//  1. GEMINI_API_KEY - read directly by Genkit (not via Viper), presence checked in Validate()
//  2. AGENTDECK_JWT_SECRET - session token signing secret
//  3. DATABASE_URL - parsed separately in parseDatabaseURL()
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a bug in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("jwt_secret", "AGENTDECK_JWT_SECRET")
	mustBind("listen_addr", "AGENTDECK_LISTEN_ADDR")
	mustBind("cors_origins", "AGENTDECK_CORS_ORIGINS")
	mustBind("trust_proxy", "AGENTDECK_TRUST_PROXY")

	mustBind("provider", "AGENTDECK_PROVIDER")
	mustBind("model_name", "AGENTDECK_MODEL_NAME")

	mustBind("usage_catalog_url", "AGENTDECK_USAGE_CATALOG_URL")
	mustBind("stream_backend_url", "AGENTDECK_STREAM_BACKEND_URL")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked to prevent substring
// matching; longer secrets keep the first and last 2 characters for
// debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - JWTSecret
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.JWTSecret = maskSecret(a.JWTSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash". If name already contains a "/",
// it is returned as-is. An empty name falls back to the configured default.
func (c *Config) FullModelName(name string) string {
	if name == "" {
		name = c.ModelName
	}
	if strings.Contains(name, "/") {
		return name
	}
	return ProviderGoogleAI + "/" + name
}

// StreamEnabled reports whether a resumable-stream backend is configured.
func (c *Config) StreamEnabled() bool {
	return c.StreamBackendURL != ""
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

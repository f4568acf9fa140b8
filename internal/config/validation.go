package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API key validation (required for all AI operations)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Server validation
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("%w: set AGENTDECK_JWT_SECRET in the environment", ErrMissingJWTSecret)
	}
	// 32 bytes keeps HS256 signatures outside brute-force range
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("%w: must be at least 32 characters (got %d)",
			ErrInvalidJWTSecret, len(c.JWTSecret))
	}

	// 3. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.MaxToolSteps < 1 || c.MaxToolSteps > MaxAllowedToolSteps {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidMaxToolSteps, MaxAllowedToolSteps, c.MaxToolSteps)
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	if c.PostgresPassword == "agentdeck_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 5. Usage catalog validation
	if c.UsageCatalogURL != "" {
		parsed, err := url.Parse(c.UsageCatalogURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidCatalogURL, c.UsageCatalogURL)
		}
	}

	if c.UsageCatalogTTLHours < 1 || c.UsageCatalogTTLHours > 168 {
		return fmt.Errorf("%w: must be between 1 and 168 hours, got %d",
			ErrInvalidCatalogTTL, c.UsageCatalogTTLHours)
	}

	// 6. Stream retention validation
	if c.StreamRetentionSeconds < 1 || c.StreamRetentionSeconds > 86400 {
		return fmt.Errorf("%w: must be between 1 and 86400 seconds, got %d",
			ErrInvalidStreamRetention, c.StreamRetentionSeconds)
	}

	return nil
}

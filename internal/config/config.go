package config

import (
	"encoding/json"
	"fmt"
	"os"

	"wagate/internal/constants"
	"wagate/internal/models"
	"wagate/internal/security"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
	ErrMissingKey    = models.ConfigError{Message: "missing encryption key or passphrase"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	// Perform security validation after environment overrides
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Encryption.Key == "" && c.Encryption.Passphrase == "" {
		return ErrMissingKey
	}

	if c.Server.Port == "" {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Meta.APIBaseURL == "" {
		c.Meta.APIBaseURL = constants.DefaultMetaAPIBaseURL
	}
	if c.Meta.APIVersion == "" {
		c.Meta.APIVersion = constants.DefaultMetaAPIVersion
	}
	if c.Meta.TimeoutSec <= 0 {
		c.Meta.TimeoutSec = constants.DefaultMetaTimeoutSec
	}

	if c.Webhook.MaxRetries <= 0 {
		c.Webhook.MaxRetries = constants.DefaultWebhookMaxRetries
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.Sweeper.IntervalSec <= 0 {
		c.Sweeper.IntervalSec = constants.DefaultSweepIntervalSec
	}
	if c.Sweeper.BatchSize <= 0 {
		c.Sweeper.BatchSize = constants.DefaultSweepBatchSize
	}
	if c.Sweeper.RetentionDays <= 0 {
		c.Sweeper.RetentionDays = constants.DefaultRetentionDays
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("META_API_BASE_URL"); url != "" {
		c.Meta.APIBaseURL = url
	}
	if version := os.Getenv("META_API_VERSION"); version != "" {
		c.Meta.APIVersion = version
	}

	// SECURITY: Webhook secrets and key material should come from the environment
	if secret := os.Getenv("WAGATE_WEBHOOK_SECRET"); secret != "" {
		c.Webhook.Secret = secret
	}
	if token := os.Getenv("WAGATE_VERIFY_TOKEN"); token != "" {
		c.Webhook.VerifyToken = token
	}
	if key := os.Getenv("WAGATE_ENCRYPTION_KEY"); key != "" {
		c.Encryption.Key = key
	}
	if passphrase := os.Getenv("WAGATE_ENCRYPTION_PASSPHRASE"); passphrase != "" {
		c.Encryption.Passphrase = passphrase
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("WAGATE_ENV") == "production"

	if isProduction {
		// In production, webhook secrets are mandatory
		if c.Webhook.Secret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set WAGATE_WEBHOOK_SECRET environment variable)"}
		}
		if len(c.Webhook.Secret) < constants.MinWebhookSecretLength {
			return models.ConfigError{Message: fmt.Sprintf("webhook secret must be at least %d characters long", constants.MinWebhookSecretLength)}
		}
		if c.Webhook.VerifyToken == "" {
			return models.ConfigError{Message: "webhook verify token is required in production (set WAGATE_VERIFY_TOKEN environment variable)"}
		}

		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else {
		if c.Webhook.Secret == "" {
			fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set WAGATE_WEBHOOK_SECRET environment variable for security.\n")
		}
	}

	return nil
}

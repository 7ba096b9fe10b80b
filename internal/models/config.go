package models

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Meta       MetaConfig       `json:"meta"`
	Webhook    WebhookConfig    `json:"webhook"`
	Database   DatabaseConfig   `json:"database"`
	Encryption EncryptionConfig `json:"encryption"`
	Retry      RetryConfig      `json:"retry"`
	Sweeper    SweeperConfig    `json:"sweeper"`
	Tracing    TracingConfig    `json:"tracing"`
	LogLevel   string           `json:"log_level"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Port            string `json:"port"`
	ReadTimeoutSec  int    `json:"readTimeoutSec"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	IdleTimeoutSec  int    `json:"idleTimeoutSec"`
}

// MetaConfig holds the provider API configuration
type MetaConfig struct {
	APIBaseURL string `json:"api_base_url"`
	APIVersion string `json:"api_version"`
	TimeoutSec int    `json:"timeoutSec"`
}

// WebhookConfig holds inbound webhook configuration. Secret and verify token
// are expected via environment overrides in production.
type WebhookConfig struct {
	Secret      string `json:"secret"`
	VerifyToken string `json:"verify_token"`
	MaxRetries  int    `json:"maxRetries"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// EncryptionConfig holds the credential vault key material. Key is a
// hex-encoded 32-byte key; Passphrase is an alternative from which a key is
// derived when Key is unset.
type EncryptionConfig struct {
	Key        string `json:"key"`
	Passphrase string `json:"passphrase"`
}

// RetryConfig holds startup/database retry configuration
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// SweeperConfig drives the due-retry sweep loop
type SweeperConfig struct {
	IntervalSec    int  `json:"intervalSec"`
	BatchSize      int  `json:"batchSize"`
	PruneProcessed bool `json:"pruneProcessed"`
	RetentionDays  int  `json:"retentionDays"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

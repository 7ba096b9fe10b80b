package constants

// Default server values
const (
	DefaultServerPort            = "8084"
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Default provider API values
const (
	DefaultMetaAPIBaseURL  = "https://graph.facebook.com"
	DefaultMetaAPIVersion  = "v18.0"
	DefaultMetaTimeoutSec  = 15
	DefaultTemplateLocale  = "en_US"
	DefaultMessageCurrency = "USD"
)

// DefaultMessageCostUSD is the flat-rate cost estimate attached to each
// outbound message.
const DefaultMessageCostUSD = 0.004

// Default webhook processing values
const (
	DefaultWebhookMaxRetries = 3
	// RetryBaseDelaySec is the backoff base: delay = base * 2^retryCount.
	RetryBaseDelaySec        = 60
	DefaultSweepIntervalSec  = 30
	DefaultSweepBatchSize    = 50
	DefaultRetentionDays     = 30
	MaxRetriesExhaustedError = "max retries reached"
)

// Default retry/backoff values for startup resilience
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultDatabaseRetryAttempts = 3
)

// Minimum secret lengths enforced in production
const (
	MinWebhookSecretLength = 32
	MinPassphraseLength    = 32
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)

// ServerErrorChannelSize buffers the server goroutine's error handoff.
const ServerErrorChannelSize = 1

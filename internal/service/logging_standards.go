package service

// Standard Field Names
// Use these exact field names for consistency across all logging calls
const (
	// Core identifiers
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"
	LogFieldWebhookID = "webhook_id"
	LogFieldMessageID = "message_id"
	LogFieldWabaID    = "waba_id"
	LogFieldUserID    = "user_id"
	LogFieldContactID = "contact_id"
	LogFieldPhoneID   = "phone_number_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Event fields
	LogFieldEvent       = "event"
	LogFieldEventType   = "event_type"
	LogFieldMessageType = "message_type"
	LogFieldDirection   = "direction"
	LogFieldStatus      = "status"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network and external services
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Error and debugging
	LogFieldErrorCode  = "error_code"
	LogFieldErrorType  = "error_type"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

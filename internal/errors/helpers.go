package errors

import "fmt"

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewProviderError creates an error for a failed provider API call. 5xx and
// throttling responses are marked retryable.
func NewProviderError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeExternalAPI, "provider API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewRateLimitError creates a messaging limit error
func NewRateLimitError(limit int64) *AppError {
	return New(ErrCodeRateLimit, "daily messaging limit exceeded").
		WithContext("daily_limit", limit).
		WithUserMessage("Daily messaging limit reached, try again after the window resets")
}

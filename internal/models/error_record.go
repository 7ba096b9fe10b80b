package models

import "time"

// ErrorRecord is an append-only capture of a provider-reported failure.
// Resolution is a manual, external action; this service only writes.
type ErrorRecord struct {
	ID            int64     `db:"id"`
	PhoneNumberID string    `db:"phone_number_id"`
	ErrorCode     string    `db:"error_code"`
	ErrorMessage  string    `db:"error_message"`
	Operation     string    `db:"operation"`
	Recipient     string    `db:"recipient"`
	MessageType   string    `db:"message_type"`
	Resolved      bool      `db:"resolved"`
	Timestamp     time.Time `db:"timestamp"`
	CreatedAt     time.Time `db:"created_at"`
}

// Operations recorded in error context.
const (
	OperationSendMessage    = "SEND_MESSAGE"
	OperationProcessWebhook = "PROCESS_WEBHOOK"
)

package models

import (
	"encoding/json"
	"time"
)

type WebhookEventType string

const (
	EventTypeMessage        WebhookEventType = "message"
	EventTypeMessageStatus  WebhookEventType = "message_status"
	EventTypeTemplateStatus WebhookEventType = "template_status"
	EventTypeAccountAlert   WebhookEventType = "account_alert"
	EventTypePhoneQuality   WebhookEventType = "phone_number_quality_update"
	EventTypeUnknown        WebhookEventType = "unknown"
)

// WebhookRecord is the persisted form of one (entry, change) pair from a
// provider callback. Records are append-only: processing and retry state
// mutate in place, but records are never deleted while unprocessed.
type WebhookRecord struct {
	ID              int64            `db:"id"`
	WabaID          string           `db:"waba_id"`
	EventType       WebhookEventType `db:"event_type"`
	EventID         string           `db:"event_id"`
	Payload         json.RawMessage  `db:"payload"`
	Processed       bool             `db:"processed"`
	ProcessedAt     *time.Time       `db:"processed_at"`
	ProcessingError *string          `db:"processing_error"`
	RetryCount      int              `db:"retry_count"`
	MaxRetries      int              `db:"max_retries"`
	NextRetryAt     *time.Time       `db:"next_retry_at"`
	SourceIP        string           `db:"source_ip"`
	Signature       *string          `db:"signature"`
	ReceivedAt      time.Time        `db:"received_at"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

// RetryExhausted reports whether the record has reached its terminal failed
// state and must never be scheduled again.
func (w *WebhookRecord) RetryExhausted() bool {
	return !w.Processed && w.RetryCount >= w.MaxRetries
}

// ChangeValue is the "value" object of a webhook change, holding whichever
// event-specific lists the provider attached.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product,omitempty"`
	Metadata         *ChangeMetadata  `json:"metadata,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate   `json:"statuses,omitempty"`
	// Template / quality update events carry their fields at the top level.
	ID                  string `json:"id,omitempty"`
	Status              string `json:"status,omitempty"`
	MessageTemplateID   string `json:"message_template_id,omitempty"`
	MessageTemplateName string `json:"message_template_name,omitempty"`
	DisplayPhoneNumber  string `json:"display_phone_number,omitempty"`
	PhoneNumberID       string `json:"phone_number_id,omitempty"`
	CurrentLimit        string `json:"current_limit,omitempty"`
	QualityRating       string `json:"quality_rating,omitempty"`
}

type ChangeMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// InboundMessage is one message entry of a "messages" change.
type InboundMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp json.Number     `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *TextContent    `json:"text,omitempty"`
	Image     json.RawMessage `json:"image,omitempty"`
	Document  json.RawMessage `json:"document,omitempty"`
}

type TextContent struct {
	Body string `json:"body"`
}

// StatusUpdate is one entry of a "message_status" change, keyed by the
// provider-assigned message id.
type StatusUpdate struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Timestamp   json.Number `json:"timestamp"`
	RecipientID string      `json:"recipient_id"`
}

// WebhookEnvelope is the outer shape of a provider POST body.
type WebhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

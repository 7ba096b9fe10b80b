package models

import "time"

// Contact is a CRM record keyed by WhatsApp phone number. The ingestion
// pipeline only touches its running statistics; everything else belongs to
// the CRM surface outside this service.
type Contact struct {
	ID                   string            `db:"id"`
	WabaID               string            `db:"waba_id"`
	PhoneNumber          string            `db:"phone_number"`
	DisplayName          string            `db:"display_name"`
	TotalMessages        int64             `db:"total_messages"`
	LastMessageAt        *time.Time        `db:"last_message_at"`
	LastMessageDirection *MessageDirection `db:"last_message_direction"`
	CreatedAt            time.Time         `db:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at"`
}

package models

import (
	"encoding/json"
	"time"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeTemplate    MessageType = "template"
	MessageTypeInteractive MessageType = "interactive"
	MessageTypeDocument    MessageType = "document"
	MessageTypeVideo       MessageType = "video"
	MessageTypeAudio       MessageType = "audio"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// statusRanks orders the delivery lifecycle. Status writes must be monotonic
// in this order; "failed" is terminal and reachable from any non-terminal
// state.
var statusRanks = map[MessageStatus]int{
	MessageStatusPending:   0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// Rank returns the position of s in the delivery lifecycle, or -1 for
// statuses outside the ordered sequence (failed, unrecognized).
func (s MessageStatus) Rank() int {
	if r, ok := statusRanks[s]; ok {
		return r
	}
	return -1
}

func (s MessageStatus) Terminal() bool {
	return s == MessageStatusRead || s == MessageStatusFailed
}

// CanTransition reports whether a status callback moving from "from" to "to"
// is a legal forward transition. Equal or backward moves are rejected so that
// a replayed "delivered" can never regress a record already marked "read".
func CanTransition(from, to MessageStatus) bool {
	if from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == MessageStatusFailed {
		return true
	}
	fromRank, toRank := from.Rank(), to.Rank()
	if fromRank < 0 || toRank < 0 {
		return false
	}
	return toRank > fromRank
}

// EarlierStatuses returns every status that ranks strictly below s, used to
// build conditional status updates that cannot overwrite a later state.
func EarlierStatuses(s MessageStatus) []MessageStatus {
	if s == MessageStatusFailed {
		return []MessageStatus{MessageStatusPending, MessageStatusSent, MessageStatusDelivered}
	}
	var out []MessageStatus
	for candidate, rank := range statusRanks {
		if rank < s.Rank() {
			out = append(out, candidate)
		}
	}
	return out
}

type MessageCost struct {
	Currency        string  `json:"currency"`
	PricePerMessage float64 `json:"pricePerMessage"`
	TotalCost       float64 `json:"totalCost"`
	BillingCategory string  `json:"billingCategory,omitempty"`
}

// MessageRecord is one inbound or outbound WhatsApp message. Outbound records
// are created at send time with status=sent; inbound records are created by
// the message-received processor. Status callbacks match on ProviderMsgID,
// never on the local ID.
type MessageRecord struct {
	ID            int64            `db:"id"`
	WabaID        string           `db:"waba_id"`
	PhoneNumberID string           `db:"phone_number_id"`
	UserID        string           `db:"user_id"`
	ContactID     *string          `db:"contact_id"`
	ProviderMsgID string           `db:"provider_msg_id"`
	Direction     MessageDirection `db:"direction"`
	Type          MessageType      `db:"type"`
	Content       json.RawMessage  `db:"content"`
	Status        MessageStatus    `db:"status"`
	FailureReason *string          `db:"failure_reason"`
	TemplateName  *string          `db:"template_name"`
	Cost          *MessageCost     `db:"cost"`
	Timestamp     time.Time        `db:"timestamp"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

// SystemUserID attributes inbound webhook messages that have no human owner
// at ingestion time.
const SystemUserID = "webhook"

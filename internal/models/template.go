package models

import "time"

type TemplateStatus string

const (
	TemplateStatusApproved TemplateStatus = "APPROVED"
	TemplateStatusPending  TemplateStatus = "PENDING"
	TemplateStatusRejected TemplateStatus = "REJECTED"
)

// Template mirrors the provider-side message template. Only the status field
// is mutated here, by the template-status-update processor; matching is on
// the provider's template id.
type Template struct {
	ID              string         `db:"id"`
	WabaID          string         `db:"waba_id"`
	Name            string         `db:"name"`
	Language        string         `db:"language"`
	ProviderTplID   string         `db:"provider_tpl_id"`
	Status          TemplateStatus `db:"status"`
	RejectionReason *string        `db:"rejection_reason"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

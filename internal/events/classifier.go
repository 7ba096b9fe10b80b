// Package events maps provider webhook change fields onto the closed set of
// event types the processors dispatch on.
package events

import "wagate/internal/models"

// ClassifyField resolves a webhook change's "field" name to an event type.
// The mapping is closed: fields this build does not know map to an explicit
// unknown type rather than being aliased into the message processor.
func ClassifyField(field string) models.WebhookEventType {
	switch field {
	case "messages":
		return models.EventTypeMessage
	case "message_status":
		return models.EventTypeMessageStatus
	case "template_status_update":
		return models.EventTypeTemplateStatus
	case "account_alert":
		return models.EventTypeAccountAlert
	case "phone_number_quality_update":
		return models.EventTypePhoneQuality
	default:
		return models.EventTypeUnknown
	}
}

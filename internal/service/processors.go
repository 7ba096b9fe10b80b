package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wagate/internal/models"
	"wagate/internal/privacy"

	"github.com/sirupsen/logrus"
)

// processMessageReceived creates INBOUND message records for each message of
// a "messages" change and bumps contact/phone statistics. Each entry is
// applied atomically under a per-entry idempotency key: the ledger claim,
// the insert and the counter bumps commit together, so a retry after a
// mid-entry failure re-applies the entry exactly once instead of
// double-counting statistics.
func (s *WebhookService) processMessageReceived(ctx context.Context, record *models.WebhookRecord) error {
	var value models.ChangeValue
	if err := json.Unmarshal(record.Payload, &value); err != nil {
		// Unparseable stored payload will not parse on retry either.
		s.logger.WithError(err).WithField(LogFieldWebhookID, record.ID).Warn("Skipping message change with unparseable payload")
		return nil
	}

	phoneNumberID := ""
	if value.Metadata != nil {
		phoneNumberID = value.Metadata.PhoneNumberID
	}

	for _, msg := range value.Messages {
		message := inboundRecord(record, phoneNumberID, msg)
		applied, err := s.db.ApplyInboundMessage(ctx, appliedEventKey(record.EventType, msg.ID), record.ID, message, msg.From)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}

		s.logger.WithFields(logrus.Fields{
			LogFieldWebhookID:   record.ID,
			LogFieldMessageID:   privacy.MaskMessageID(msg.ID),
			LogFieldMessageType: string(message.Type),
			"from":              privacy.MaskPhoneNumber(msg.From),
		}).Info("Inbound message recorded")
	}

	return nil
}

// inboundRecord builds the stored message for one inbound entry. Provider
// timestamps are epoch seconds; entries without one get the ingestion time.
func inboundRecord(record *models.WebhookRecord, phoneNumberID string, msg models.InboundMessage) *models.MessageRecord {
	msgType, content := inboundContent(msg)

	timestamp := time.Now().UTC()
	if secs, err := msg.Timestamp.Int64(); err == nil && secs > 0 {
		timestamp = time.Unix(secs, 0).UTC()
	}

	return &models.MessageRecord{
		WabaID:        record.WabaID,
		PhoneNumberID: phoneNumberID,
		UserID:        models.SystemUserID,
		ProviderMsgID: msg.ID,
		Direction:     models.DirectionInbound,
		Type:          msgType,
		Content:       content,
		Status:        models.MessageStatusDelivered,
		Timestamp:     timestamp,
	}
}

// inboundContent picks the message body: first of text/image/document, with
// an explicit unknown fallback so nothing is silently dropped.
func inboundContent(msg models.InboundMessage) (models.MessageType, json.RawMessage) {
	switch {
	case msg.Text != nil:
		content, _ := json.Marshal(msg.Text)
		return models.MessageTypeText, content
	case len(msg.Image) > 0:
		return models.MessageTypeImage, msg.Image
	case len(msg.Document) > 0:
		return models.MessageTypeDocument, msg.Document
	default:
		content, _ := json.Marshal(models.TextContent{Body: "Unknown"})
		return models.MessageTypeText, content
	}
}

// processStatusUpdate applies provider delivery callbacks to stored outbound
// messages. The write is rank-guarded so replays and out-of-order callbacks
// can never move a status backward; a callback for a message we do not have
// is skipped, since status delivery can race record creation.
func (s *WebhookService) processStatusUpdate(ctx context.Context, record *models.WebhookRecord) error {
	var value models.ChangeValue
	if err := json.Unmarshal(record.Payload, &value); err != nil {
		s.logger.WithError(err).WithField(LogFieldWebhookID, record.ID).Warn("Skipping status change with unparseable payload")
		return nil
	}

	for _, status := range value.Statuses {
		target, ok := providerStatus(status.Status)
		if !ok {
			s.logger.WithFields(logrus.Fields{
				LogFieldWebhookID: record.ID,
				LogFieldStatus:    status.Status,
			}).Warn("Skipping unrecognized provider status")
			continue
		}

		updated, err := s.db.AdvanceMessageStatus(ctx, status.ID, target)
		if err != nil {
			return err
		}
		if !updated {
			s.logger.WithFields(logrus.Fields{
				LogFieldWebhookID: record.ID,
				LogFieldMessageID: privacy.MaskMessageID(status.ID),
				LogFieldStatus:    string(target),
			}).Debug("Status update skipped: unknown message or non-forward transition")
		}
	}

	return nil
}

// providerStatus maps a provider status string to the local status enum.
func providerStatus(s string) (models.MessageStatus, bool) {
	switch s {
	case "sent":
		return models.MessageStatusSent, true
	case "delivered":
		return models.MessageStatusDelivered, true
	case "read":
		return models.MessageStatusRead, true
	case "failed":
		return models.MessageStatusFailed, true
	default:
		return "", false
	}
}

// processTemplateStatus applies a template review decision. Unknown templates
// are skipped for the same race tolerance as unknown messages.
func (s *WebhookService) processTemplateStatus(ctx context.Context, record *models.WebhookRecord) error {
	var value models.ChangeValue
	if err := json.Unmarshal(record.Payload, &value); err != nil {
		s.logger.WithError(err).WithField(LogFieldWebhookID, record.ID).Warn("Skipping template change with unparseable payload")
		return nil
	}

	providerTplID := value.MessageTemplateID
	if providerTplID == "" {
		providerTplID = value.ID
	}
	if providerTplID == "" {
		return nil
	}

	status, rejectionReason := templateStatus(value.Status)

	updated, err := s.db.UpdateTemplateStatusByProviderID(ctx, providerTplID, status, rejectionReason)
	if err != nil {
		return err
	}
	if !updated {
		s.logger.WithFields(logrus.Fields{
			LogFieldWebhookID: record.ID,
			"provider_tpl_id": providerTplID,
		}).Debug("Template status update skipped: unknown template")
	}

	return nil
}

func templateStatus(raw string) (models.TemplateStatus, *string) {
	switch strings.ToUpper(raw) {
	case "APPROVED":
		return models.TemplateStatusApproved, nil
	case "REJECTED":
		reason := "rejected by provider review"
		return models.TemplateStatusRejected, &reason
	default:
		return models.TemplateStatusPending, nil
	}
}

// processPhoneQuality updates the local phone record's quality rating.
func (s *WebhookService) processPhoneQuality(ctx context.Context, record *models.WebhookRecord) error {
	var value models.ChangeValue
	if err := json.Unmarshal(record.Payload, &value); err != nil {
		s.logger.WithError(err).WithField(LogFieldWebhookID, record.ID).Warn("Skipping quality change with unparseable payload")
		return nil
	}

	phoneNumberID := value.PhoneNumberID
	if phoneNumberID == "" && value.Metadata != nil {
		phoneNumberID = value.Metadata.PhoneNumberID
	}
	if phoneNumberID == "" {
		return nil
	}

	rating := qualityRating(value.QualityRating)
	if rating == "" {
		return nil
	}

	updated, err := s.db.UpdatePhoneQuality(ctx, phoneNumberID, rating)
	if err != nil {
		return err
	}
	if !updated {
		s.logger.WithFields(logrus.Fields{
			LogFieldWebhookID: record.ID,
			LogFieldPhoneID:   phoneNumberID,
		}).Debug("Quality update skipped: unknown phone number")
	}

	return nil
}

func qualityRating(raw string) models.QualityRating {
	switch strings.ToUpper(raw) {
	case "GREEN":
		return models.QualityGreen
	case "YELLOW":
		return models.QualityYellow
	case "RED":
		return models.QualityRed
	default:
		return ""
	}
}

func appliedEventKey(eventType models.WebhookEventType, providerID string) string {
	return fmt.Sprintf("%s:%s", eventType, providerID)
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"wagate/internal/events"
	"wagate/internal/metrics"
	"wagate/internal/models"

	"github.com/sirupsen/logrus"
)

// WebhookDatabase is the persistence surface the ingestion pipeline and the
// event processors need.
type WebhookDatabase interface {
	CreateWebhookEvent(ctx context.Context, record *models.WebhookRecord) (int64, error)
	GetWebhookEvent(ctx context.Context, id int64) (*models.WebhookRecord, error)
	MarkWebhookProcessed(ctx context.Context, id int64, processedAt time.Time) error
	UpdateWebhookRetryState(ctx context.Context, id int64, retryCount int, nextRetryAt *time.Time, processingError string) error
	GetDueWebhookEvents(ctx context.Context, now time.Time, limit int) ([]*models.WebhookRecord, error)
	ClaimWebhookEvent(ctx context.Context, id int64, observedRetryCount int) (bool, error)
	PruneProcessedWebhookEvents(ctx context.Context, retentionDays int) (int64, error)

	ApplyInboundMessage(ctx context.Context, eventKey string, webhookID int64, msg *models.MessageRecord, senderPhone string) (bool, error)
	AdvanceMessageStatus(ctx context.Context, providerMsgID string, to models.MessageStatus) (bool, error)

	UpdatePhoneQuality(ctx context.Context, phoneNumberID string, rating models.QualityRating) (bool, error)
	UpdateTemplateStatusByProviderID(ctx context.Context, providerTplID string, status models.TemplateStatus, rejectionReason *string) (bool, error)

	CreateErrorRecord(ctx context.Context, rec *models.ErrorRecord) error
}

// AckResult reports what ingestion did with one webhook POST. The HTTP layer
// answers 200 regardless; the distinction feeds logs and metrics only.
type AckResult struct {
	RecordIDs []int64
	Swallowed bool
}

// WebhookService ingests provider callbacks and applies them to local state.
type WebhookService struct {
	db         WebhookDatabase
	logger     *logrus.Logger
	maxRetries int

	// processTimeout bounds one async processing attempt.
	processTimeout time.Duration
}

func NewWebhookService(db WebhookDatabase, logger *logrus.Logger, maxRetries int) *WebhookService {
	return &WebhookService{
		db:             db,
		logger:         logger,
		maxRetries:     maxRetries,
		processTimeout: 30 * time.Second,
	}
}

// Receive persists one WebhookRecord per (entry, change) pair of an already
// authenticated payload and hands each record to async processing. Malformed
// payloads are swallowed: the provider retries aggressively on non-200 and a
// retry cannot fix a body we cannot parse.
func (s *WebhookService) Receive(ctx context.Context, rawBody []byte, sourceIP string, signature *string) *AckResult {
	var envelope models.WebhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		metrics.WebhookReceived.WithLabelValues("malformed").Inc()
		s.logger.WithError(err).WithField(LogFieldRemoteIP, sourceIP).Warn("Swallowing malformed webhook payload")
		return &AckResult{Swallowed: true}
	}
	if len(envelope.Entry) == 0 {
		metrics.WebhookReceived.WithLabelValues("malformed").Inc()
		s.logger.WithField(LogFieldRemoteIP, sourceIP).Warn("Swallowing webhook payload without entries")
		return &AckResult{Swallowed: true}
	}

	result := &AckResult{}
	now := time.Now().UTC()

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			eventType := events.ClassifyField(change.Field)
			record := &models.WebhookRecord{
				WabaID:     entry.ID,
				EventType:  eventType,
				EventID:    deriveEventID(eventType, change.Value),
				Payload:    change.Value,
				MaxRetries: s.maxRetries,
				SourceIP:   sourceIP,
				Signature:  signature,
				ReceivedAt: now,
			}

			id, err := s.db.CreateWebhookEvent(ctx, record)
			if err != nil {
				metrics.WebhookReceived.WithLabelValues("error").Inc()
				s.logger.WithError(err).WithFields(logrus.Fields{
					LogFieldWabaID:    entry.ID,
					LogFieldEventType: string(eventType),
				}).Error("Failed to persist webhook record")
				continue
			}

			metrics.WebhookReceived.WithLabelValues("stored").Inc()
			result.RecordIDs = append(result.RecordIDs, id)

			// Fire and forget: processing must not block the HTTP ack,
			// and a processing failure must never reach the HTTP layer.
			go s.processAsync(id)
		}
	}

	return result
}

func (s *WebhookService) processAsync(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()
	s.ProcessRecord(ctx, id)
}

// ProcessRecord runs one processing attempt for a stored record. Success
// marks it processed; failure routes into the retry scheduler. Terminal and
// already-processed records are left untouched.
func (s *WebhookService) ProcessRecord(ctx context.Context, id int64) {
	record, err := s.db.GetWebhookEvent(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField(LogFieldWebhookID, id).Error("Failed to load webhook record for processing")
		return
	}
	if record == nil || record.Processed || record.RetryExhausted() {
		return
	}

	log := s.logger.WithFields(logrus.Fields{
		LogFieldWebhookID:  record.ID,
		LogFieldWabaID:     record.WabaID,
		LogFieldEventType:  string(record.EventType),
		LogFieldRetryCount: record.RetryCount,
	})

	if err := s.applyEvent(ctx, record); err != nil {
		metrics.WebhookProcessed.WithLabelValues(string(record.EventType), "failed").Inc()
		log.WithError(err).Warn("Webhook processing attempt failed")
		s.scheduleRetry(ctx, record, err)
		return
	}

	if err := s.db.MarkWebhookProcessed(ctx, record.ID, time.Now().UTC()); err != nil {
		log.WithError(err).Error("Failed to mark webhook processed")
		return
	}

	metrics.WebhookProcessed.WithLabelValues(string(record.EventType), "ok").Inc()
	log.Debug("Webhook processed")
}

// applyEvent dispatches to the processor for the record's event type.
func (s *WebhookService) applyEvent(ctx context.Context, record *models.WebhookRecord) error {
	switch record.EventType {
	case models.EventTypeMessage:
		return s.processMessageReceived(ctx, record)
	case models.EventTypeMessageStatus:
		return s.processStatusUpdate(ctx, record)
	case models.EventTypeTemplateStatus:
		return s.processTemplateStatus(ctx, record)
	case models.EventTypePhoneQuality:
		return s.processPhoneQuality(ctx, record)
	case models.EventTypeAccountAlert:
		s.logger.WithFields(logrus.Fields{
			LogFieldWebhookID: record.ID,
			LogFieldWabaID:    record.WabaID,
		}).Info("Account alert received")
		return nil
	default:
		// Unrecognized fields are stored for audit but deliberately not
		// routed into the message processor.
		s.logger.WithFields(logrus.Fields{
			LogFieldWebhookID: record.ID,
			LogFieldEventType: string(record.EventType),
		}).Info("Ignoring webhook event of unknown type")
		return nil
	}
}

// deriveEventID pulls the provider-assigned id for the change, when present.
func deriveEventID(eventType models.WebhookEventType, payload json.RawMessage) string {
	var value models.ChangeValue
	if err := json.Unmarshal(payload, &value); err != nil {
		return ""
	}

	switch eventType {
	case models.EventTypeMessage:
		if len(value.Messages) > 0 {
			return value.Messages[0].ID
		}
	case models.EventTypeMessageStatus:
		if len(value.Statuses) > 0 {
			return value.Statuses[0].ID
		}
	case models.EventTypeTemplateStatus:
		if value.MessageTemplateID != "" {
			return value.MessageTemplateID
		}
		return value.ID
	}
	return value.ID
}

package service

import (
	"context"
	"fmt"
	"time"

	"wagate/internal/constants"
	"wagate/internal/metrics"
	"wagate/internal/models"

	"github.com/sirupsen/logrus"
)

// scheduleRetry records a failed processing attempt. While attempts remain,
// the next retry time doubles with each failure (2min, 4min, 8min for the
// default cap of 3). At exhaustion the record is terminal: processed stays
// false, the error is prefixed to mark exhaustion, and nothing schedules it
// again.
func (s *WebhookService) scheduleRetry(ctx context.Context, record *models.WebhookRecord, procErr error) {
	newCount := record.RetryCount + 1

	log := s.logger.WithFields(logrus.Fields{
		LogFieldWebhookID:  record.ID,
		LogFieldEventType:  string(record.EventType),
		LogFieldRetryCount: newCount,
	})

	if newCount >= record.MaxRetries {
		terminalErr := fmt.Sprintf("%s: %v", constants.MaxRetriesExhaustedError, procErr)
		if err := s.db.UpdateWebhookRetryState(ctx, record.ID, newCount, nil, terminalErr); err != nil {
			log.WithError(err).Error("Failed to record retry exhaustion")
			return
		}

		metrics.WebhookProcessed.WithLabelValues(string(record.EventType), "exhausted").Inc()
		log.WithError(procErr).Error("Webhook processing retries exhausted")

		errRecord := &models.ErrorRecord{
			ErrorCode:    "WEBHOOK_RETRY_EXHAUSTED",
			ErrorMessage: terminalErr,
			Operation:    models.OperationProcessWebhook,
			MessageType:  string(record.EventType),
			Timestamp:    time.Now().UTC(),
		}
		if err := s.db.CreateErrorRecord(ctx, errRecord); err != nil {
			log.WithError(err).Error("Failed to persist exhaustion error record")
		}
		return
	}

	delay := time.Duration(constants.RetryBaseDelaySec*(1<<newCount)) * time.Second
	nextRetryAt := time.Now().UTC().Add(delay)

	if err := s.db.UpdateWebhookRetryState(ctx, record.ID, newCount, &nextRetryAt, procErr.Error()); err != nil {
		log.WithError(err).Error("Failed to schedule webhook retry")
		return
	}

	metrics.WebhookRetries.Inc()
	log.WithFields(logrus.Fields{
		"next_retry_at": nextRetryAt.Format(time.RFC3339),
		"backoff":       delay.String(),
	}).Info("Webhook retry scheduled")
}

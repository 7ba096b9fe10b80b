package service

import (
	"context"
	"time"

	"wagate/internal/metrics"
	"wagate/internal/models"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically re-invokes processing for webhook records whose
// next-retry time has come due, and optionally prunes old processed records.
// Each due record is claimed with a conditional update keyed on the observed
// retry count, so a slow sweep and a fresh one can never run the same retry
// twice.
type Sweeper struct {
	svc    *WebhookService
	cfg    models.SweeperConfig
	logger *logrus.Logger
	stopCh chan struct{}
}

func NewSweeper(svc *WebhookService, cfg models.SweeperConfig, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.IntervalSec) * time.Second)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"interval_sec": s.cfg.IntervalSec,
		"batch_size":   s.cfg.BatchSize,
	}).Info("Starting webhook retry sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Sweeper stop signal received, stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.svc.db.GetDueWebhookEvents(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load due webhook events")
		return
	}

	metrics.SweepDue.Observe(float64(len(due)))
	if len(due) > 0 {
		s.logger.WithField(LogFieldCount, len(due)).Info("Retrying due webhook events")
	}

	for _, record := range due {
		claimed, err := s.svc.db.ClaimWebhookEvent(ctx, record.ID, record.RetryCount)
		if err != nil {
			s.logger.WithError(err).WithField(LogFieldWebhookID, record.ID).Error("Failed to claim webhook event")
			continue
		}
		if !claimed {
			// Another sweep got here first.
			continue
		}

		s.svc.ProcessRecord(ctx, record.ID)
	}

	if s.cfg.PruneProcessed {
		pruned, err := s.svc.db.PruneProcessedWebhookEvents(ctx, s.cfg.RetentionDays)
		if err != nil {
			s.logger.WithError(err).Error("Failed to prune processed webhook events")
		} else if pruned > 0 {
			s.logger.WithFields(logrus.Fields{
				LogFieldCount:    pruned,
				"retention_days": s.cfg.RetentionDays,
			}).Info("Pruned processed webhook events")
		}
	}
}

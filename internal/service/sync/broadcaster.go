package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/internal/service/event"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

// Handler receives post-mutation snapshots. Payloads are shared across
// handlers and must be treated as read-only; handlers must not call back
// into the scheduler synchronously.
type Handler func(eventType string, payload interface{})

// Broadcaster fans out visits_updated and weekly_limits_updated snapshots
// to in-process subscribers, synchronously and in registration order, then
// bridges the same event to the outbox so other processes observe an
// identical stream. Every mutation publishes exactly once.
type Broadcaster struct {
	mu       stdsync.RWMutex
	handlers []Handler

	visitRepo repository.VisitRepository
	limitRepo repository.WeeklyLimitRepository
	events    *event.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewBroadcaster(
	visitRepo repository.VisitRepository,
	limitRepo repository.WeeklyLimitRepository,
	events *event.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Broadcaster {
	return &Broadcaster{
		visitRepo: visitRepo,
		limitRepo: limitRepo,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

func (b *Broadcaster) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// PublishVisitSnapshot reads the current visit set for the period and fans
// it out. Call after the mutation has been persisted so subscribers see
// stored state, not intent.
func (b *Broadcaster) PublishVisitSnapshot(ctx context.Context, certPeriodID, patientID uuid.UUID) error {
	visits, err := b.visitRepo.ListByCertPeriod(ctx, certPeriodID, nil)
	if err != nil {
		return fmt.Errorf("failed to snapshot visits: %w", err)
	}

	payload := &model.VisitsUpdatedPayload{
		CertificationPeriodID: certPeriodID,
		PatientID:             patientID,
		Visits:                visits,
	}
	return b.publish(ctx, model.EventVisitsUpdated, payload)
}

// PublishLimitSnapshot reads the stored weekly-limit set for the period and
// fans it out.
func (b *Broadcaster) PublishLimitSnapshot(ctx context.Context, certPeriodID uuid.UUID) error {
	limits, err := b.limitRepo.GetForPeriod(ctx, certPeriodID)
	if err != nil {
		return fmt.Errorf("failed to snapshot weekly limits: %w", err)
	}

	payload := &model.WeeklyLimitsUpdatedPayload{
		CertificationPeriodID: certPeriodID,
		Limits:                limits,
	}
	return b.publish(ctx, model.EventWeeklyLimitsUpdated, payload)
}

func (b *Broadcaster) publish(ctx context.Context, eventType string, payload interface{}) error {
	timer := prometheus.NewTimer(b.metrics.BroadcastLatency)
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(eventType, payload)
	}
	timer.ObserveDuration()

	if err := b.events.Emit(ctx, eventType, payload); err != nil {
		b.logger.Error(err, "Failed to emit sync event to outbox", "event_type", eventType)
		return fmt.Errorf("failed to emit %s: %w", eventType, err)
	}
	return nil
}

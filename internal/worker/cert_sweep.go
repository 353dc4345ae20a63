package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/pkg/logger"
)

// CertSweepWorker keeps certification period is_active flags consistent
// with their date spans. Periods are created and edited by clinical intake
// outside this service, so the flag is recomputed rather than trusted.
type CertSweepWorker struct {
	repo          repository.CertPeriodRepository
	sweepInterval time.Duration
	logger        *logger.Logger
}

func NewCertSweepWorker(repo repository.CertPeriodRepository, sweepInterval time.Duration, logger *logger.Logger) *CertSweepWorker {
	return &CertSweepWorker{
		repo:          repo,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

func (w *CertSweepWorker) Start(ctx context.Context) {
	// Sweep once at startup so a long-stopped worker converges immediately.
	if err := w.sweep(ctx); err != nil {
		w.logger.Error(err, "Failed to sweep certification periods")
	}

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error(err, "Failed to sweep certification periods")
			}
		}
	}
}

func (w *CertSweepWorker) sweep(ctx context.Context) error {
	changed, err := w.repo.UpdateActiveFlags(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update active flags: %w", err)
	}
	if changed > 0 {
		w.logger.Info("Recomputed certification period activation", "changed", changed)
	}
	return nil
}

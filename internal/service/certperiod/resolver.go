package certperiod

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
)

const (
	pinTTL        = 12 * time.Hour
	pinSweepEvery = 1 * time.Hour
)

// Resolver selects the certification period all scheduling operations work
// against. Selection order: operator pin, then the period covering today,
// then the period with the most recent start date. The pin is advisory and
// re-validated against the live period list on every resolution, so a
// deleted or foreign period never wins.
type Resolver struct {
	repo   repository.CertPeriodRepository
	pins   *cache.Cache
	logger *logger.Logger
}

func NewResolver(repo repository.CertPeriodRepository, logger *logger.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		pins:   cache.New(pinTTL, pinSweepEvery),
		logger: logger,
	}
}

// ResolveCurrent returns the working certification period for the patient.
func (r *Resolver) ResolveCurrent(ctx context.Context, patientID uuid.UUID, today time.Time) (*model.CertificationPeriod, error) {
	periods, err := r.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certification periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, errors.NoCertificationPeriod(fmt.Sprintf("patient %s has no certification periods", patientID))
	}

	if pinned, ok := r.pins.Get(patientID.String()); ok {
		pinnedID := pinned.(uuid.UUID)
		for _, p := range periods {
			if p.ID == pinnedID {
				return p, nil
			}
		}
		// Stale pin, fall through to automatic selection.
		r.pins.Delete(patientID.String())
	}

	for _, p := range periods {
		if p.Contains(today) {
			return p, nil
		}
	}

	// ListByPatient orders by start date descending.
	return periods[0], nil
}

// Pin fixes the working period for a patient until Unpin or expiry.
func (r *Resolver) Pin(ctx context.Context, patientID, periodID uuid.UUID) error {
	period, err := r.repo.Get(ctx, periodID)
	if err != nil {
		return errors.NotFound("certification period", err)
	}
	if period.PatientID != patientID {
		return errors.BadRequest("certification period does not belong to patient", nil)
	}

	r.pins.Set(patientID.String(), periodID, cache.DefaultExpiration)
	return nil
}

func (r *Resolver) Unpin(patientID uuid.UUID) {
	r.pins.Delete(patientID.String())
}

func (r *Resolver) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.CertificationPeriod, error) {
	periods, err := r.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certification periods: %w", err)
	}
	return periods, nil
}

// Get loads a single period by id.
func (r *Resolver) Get(ctx context.Context, id uuid.UUID) (*model.CertificationPeriod, error) {
	period, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, errors.NotFound("certification period", err)
	}
	return period, nil
}

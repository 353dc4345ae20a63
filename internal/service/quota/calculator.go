package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

// Calculator owns the weekly visit caps for a certification period. Caps
// derive from the patient's plan-of-care frequency specs bounded by the
// approved-visit ceilings; disciplines without a spec fall back to fixed
// defaults. A wholesale recomputation replaces any manual overrides.
type Calculator struct {
	certRepo    repository.CertPeriodRepository
	patientRepo repository.PatientRepository
	limitRepo   repository.WeeklyLimitRepository
	visitRepo   repository.VisitRepository
	staffRepo   repository.StaffRepository
	broadcaster *sync.Broadcaster
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewCalculator(
	certRepo repository.CertPeriodRepository,
	patientRepo repository.PatientRepository,
	limitRepo repository.WeeklyLimitRepository,
	visitRepo repository.VisitRepository,
	staffRepo repository.StaffRepository,
	broadcaster *sync.Broadcaster,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Calculator {
	return &Calculator{
		certRepo:    certRepo,
		patientRepo: patientRepo,
		limitRepo:   limitRepo,
		visitRepo:   visitRepo,
		staffRepo:   staffRepo,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
	}
}

// BuildLimits derives the full cap table for a period from frequency specs
// and approved ceilings. Pure; persistence and broadcasting live on the
// Calculator methods.
func BuildLimits(period *model.CertificationPeriod, specs map[model.Discipline]model.FrequencySpec, ceilings map[model.Discipline]int) model.WeeklyLimit {
	limits := make(model.WeeklyLimit)
	weeks := weeksInPeriod(period)

	for _, d := range model.TherapyDisciplines() {
		cap := model.DefaultWeeklyCap(d)
		if spec, ok := specs[d]; ok {
			var ceiling *int
			if c, ok := ceilings[d]; ok {
				ceiling = &c
			}
			cap = spec.PerWeekCap(ceiling)
		} else if c, ok := ceilings[d]; ok && c < cap {
			cap = c
		}

		for _, week := range weeks {
			limits.Set(d, week, cap)
		}
	}
	return limits
}

// weeksInPeriod lists the distinct week numbers the period's days fall in,
// in chronological order.
func weeksInPeriod(period *model.CertificationPeriod) []int {
	var weeks []int
	seen := make(map[int]bool)
	for d := period.StartDate; !d.After(period.EndDate); d = d.AddDate(0, 0, 1) {
		week := model.WeekOf(d)
		if !seen[week] {
			seen[week] = true
			weeks = append(weeks, week)
		}
	}
	return weeks
}

// ComputeLimits rebuilds and persists the cap table for a period, then
// publishes the new snapshot. Manual overrides do not survive this.
func (c *Calculator) ComputeLimits(ctx context.Context, certPeriodID uuid.UUID) (model.WeeklyLimit, error) {
	period, err := c.certRepo.Get(ctx, certPeriodID)
	if err != nil {
		return nil, fmt.Errorf("failed to get certification period: %w", err)
	}

	patient, err := c.patientRepo.Get(ctx, period.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	limits := BuildLimits(period, patient.Frequencies(), patient.ApprovedCeilings())
	if err := c.limitRepo.ReplaceForPeriod(ctx, certPeriodID, limits); err != nil {
		return nil, fmt.Errorf("failed to persist weekly limits: %w", err)
	}

	c.metrics.QuotaRecomputations.Inc()

	if err := c.broadcaster.PublishLimitSnapshot(ctx, certPeriodID); err != nil {
		c.logger.Error(err, "Failed to publish weekly limits", "cert_period_id", certPeriodID.String())
	}
	return limits, nil
}

// LimitsFor returns the stored cap table, computing it first when the
// period has never been calculated.
func (c *Calculator) LimitsFor(ctx context.Context, certPeriodID uuid.UUID) (model.WeeklyLimit, error) {
	limits, err := c.limitRepo.GetForPeriod(ctx, certPeriodID)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly limits: %w", err)
	}
	if len(limits) == 0 {
		return c.ComputeLimits(ctx, certPeriodID)
	}
	return limits, nil
}

// SetLimit applies a manual per-week override and publishes the result.
func (c *Calculator) SetLimit(ctx context.Context, certPeriodID uuid.UUID, d model.Discipline, week, cap int) error {
	if cap < 0 {
		cap = 0
	}
	if err := c.limitRepo.SetCap(ctx, certPeriodID, d, week, cap); err != nil {
		return fmt.Errorf("failed to set weekly cap: %w", err)
	}

	if err := c.broadcaster.PublishLimitSnapshot(ctx, certPeriodID); err != nil {
		c.logger.Error(err, "Failed to publish weekly limits", "cert_period_id", certPeriodID.String())
	}
	return nil
}

// UsedVisits counts the visits consuming quota for a discipline and week.
// Only Scheduled, InProgress and Completed visits consume quota; the visit
// being edited is excluded so moving it never double-counts.
func (c *Calculator) UsedVisits(ctx context.Context, certPeriodID uuid.UUID, d model.Discipline, week int, excludeID *uuid.UUID) (int, error) {
	visits, err := c.visitRepo.ListByCertPeriod(ctx, certPeriodID, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list visits: %w", err)
	}

	disciplines := make(map[uuid.UUID]model.Discipline)
	used := 0
	for _, v := range visits {
		if excludeID != nil && v.ID == *excludeID {
			continue
		}
		if !v.Status.CountsTowardQuota() || model.WeekOf(v.VisitDate) != week {
			continue
		}

		vd, ok := disciplines[v.StaffID]
		if !ok {
			staff, err := c.staffRepo.Get(ctx, v.StaffID)
			if err != nil {
				return 0, fmt.Errorf("failed to get staff member: %w", err)
			}
			vd = staff.Discipline()
			disciplines[v.StaffID] = vd
		}
		if vd == d {
			used++
		}
	}
	return used, nil
}

// CapFor resolves the effective cap for a discipline and week, falling
// back to the discipline default when the week has no stored entry.
func (c *Calculator) CapFor(ctx context.Context, certPeriodID uuid.UUID, d model.Discipline, date time.Time) (int, error) {
	limits, err := c.LimitsFor(ctx, certPeriodID)
	if err != nil {
		return 0, err
	}
	if cap, ok := limits.Cap(d, model.WeekOf(date)); ok {
		return cap, nil
	}
	return model.DefaultWeeklyCap(d), nil
}

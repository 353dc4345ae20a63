package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/internal/service/audit"
	"github.com/therapysync/schedule-api/internal/service/quota"
	"github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

// Service validates and persists visit mutations. Validation is fail-fast
// in a fixed order: missing fields, certification window, time-slot
// conflict, weekly quota. The first failure is returned and nothing is
// persisted or published.
type Service struct {
	visitRepo   repository.VisitRepository
	staffRepo   repository.StaffRepository
	certRepo    repository.CertPeriodRepository
	quota       *quota.Calculator
	broadcaster *sync.Broadcaster
	auditor     *audit.Service
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewService(
	visitRepo repository.VisitRepository,
	staffRepo repository.StaffRepository,
	certRepo repository.CertPeriodRepository,
	quota *quota.Calculator,
	broadcaster *sync.Broadcaster,
	auditor *audit.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		visitRepo:   visitRepo,
		staffRepo:   staffRepo,
		certRepo:    certRepo,
		quota:       quota,
		broadcaster: broadcaster,
		auditor:     auditor,
		metrics:     metrics,
		logger:      logger,
	}
}

// ValidateAndSave runs the full validation chain for a create or update
// intent, persists on success, and publishes one visits_updated snapshot.
// The returned visit is the canonical stored record.
func (s *Service) ValidateAndSave(ctx context.Context, intent *model.VisitIntent) (*model.Visit, error) {
	if fields := missingFields(intent); len(fields) > 0 {
		s.metrics.ValidationRejections.WithLabelValues("missing_fields").Inc()
		return nil, errors.MissingFields(fields...)
	}

	period, err := s.certRepo.Get(ctx, intent.CertificationPeriodID)
	if err != nil {
		return nil, errors.NotFound("certification period", err)
	}
	if !period.Contains(intent.VisitDate) {
		s.metrics.ValidationRejections.WithLabelValues("outside_cert_period").Inc()
		return nil, errors.OutsideCertPeriod(fmt.Sprintf(
			"visit date %s is outside the certification period %s to %s",
			intent.VisitDate.Format("2006-01-02"),
			period.StartDate.Format("2006-01-02"),
			period.EndDate.Format("2006-01-02"),
		))
	}

	if intent.ScheduledTime != nil && *intent.ScheduledTime != "" {
		conflict, err := s.visitRepo.CheckTimeSlotConflict(ctx, intent.StaffID, intent.VisitDate, *intent.ScheduledTime, intent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check time slot: %w", err)
		}
		if conflict {
			s.metrics.ValidationRejections.WithLabelValues("time_slot_conflict").Inc()
			return nil, errors.TimeSlotConflict(fmt.Sprintf(
				"staff member already has a visit on %s at %s",
				intent.VisitDate.Format("2006-01-02"), *intent.ScheduledTime,
			))
		}
	}

	staff, err := s.staffRepo.Get(ctx, intent.StaffID)
	if err != nil {
		return nil, errors.NotFound("staff member", err)
	}
	discipline := staff.Discipline()

	var existing *model.Visit
	if intent.ID != nil {
		existing, err = s.visitRepo.Get(ctx, *intent.ID)
		if err != nil {
			return nil, errors.NotFound("visit", err)
		}
	}

	check, err := s.needsQuotaCheck(ctx, intent, existing, discipline)
	if err != nil {
		return nil, err
	}
	if check {
		if err := s.checkQuota(ctx, intent, discipline); err != nil {
			return nil, err
		}
	}

	visit, operation, err := s.persist(ctx, intent, existing)
	if err != nil {
		return nil, err
	}

	s.metrics.VisitsScheduled.WithLabelValues(string(discipline), operation).Inc()
	if err := s.auditor.Log(ctx, visit.StaffID, visit.PatientID, operation, model.AuditEntityVisit, visit.ID, &audit.LogOptions{Changes: visit}); err != nil {
		s.logger.Error(err, "Failed to write audit log", "visit_id", visit.ID.String())
	}
	if err := s.broadcaster.PublishVisitSnapshot(ctx, visit.CertificationPeriodID, visit.PatientID); err != nil {
		s.logger.Error(err, "Failed to publish visit snapshot", "visit_id", visit.ID.String())
	}

	return visit, nil
}

func missingFields(intent *model.VisitIntent) []string {
	var fields []string
	if intent.PatientID == uuid.Nil {
		fields = append(fields, "patient_id")
	}
	if intent.StaffID == uuid.Nil {
		fields = append(fields, "staff_id")
	}
	if intent.CertificationPeriodID == uuid.Nil {
		fields = append(fields, "certification_period_id")
	}
	if intent.VisitDate.IsZero() {
		fields = append(fields, "visit_date")
	}
	if intent.VisitType == "" {
		fields = append(fields, "visit_type")
	}
	return fields
}

// needsQuotaCheck is true for new visits and for edits that move the visit
// into a different discipline or week. Edits that only touch other fields,
// or that move the date within the same week, skip the quota gate.
func (s *Service) needsQuotaCheck(ctx context.Context, intent *model.VisitIntent, existing *model.Visit, discipline model.Discipline) (bool, error) {
	if discipline == model.DisciplineOther {
		return false, nil
	}
	if existing == nil {
		return true, nil
	}

	if model.WeekOf(existing.VisitDate) != model.WeekOf(intent.VisitDate) {
		return true, nil
	}
	if existing.StaffID != intent.StaffID {
		prev, err := s.staffRepo.Get(ctx, existing.StaffID)
		if err != nil {
			return false, fmt.Errorf("failed to get staff member: %w", err)
		}
		if prev.Discipline() != discipline {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) checkQuota(ctx context.Context, intent *model.VisitIntent, discipline model.Discipline) error {
	week := model.WeekOf(intent.VisitDate)

	cap, err := s.quota.CapFor(ctx, intent.CertificationPeriodID, discipline, intent.VisitDate)
	if err != nil {
		return err
	}
	used, err := s.quota.UsedVisits(ctx, intent.CertificationPeriodID, discipline, week, intent.ID)
	if err != nil {
		return err
	}

	if used >= cap {
		s.metrics.ValidationRejections.WithLabelValues("weekly_quota_exceeded").Inc()
		return errors.WeeklyQuotaExceeded(fmt.Sprintf(
			"%s already has %d of %d visits in week %d", discipline, used, cap, week,
		))
	}
	return nil
}

func (s *Service) persist(ctx context.Context, intent *model.VisitIntent, existing *model.Visit) (*model.Visit, string, error) {
	if existing == nil {
		status := intent.Status
		if status == "" {
			status = model.VisitStatusScheduled
		}
		visit := &model.Visit{
			PatientID:             intent.PatientID,
			StaffID:               intent.StaffID,
			CertificationPeriodID: intent.CertificationPeriodID,
			VisitDate:             intent.VisitDate,
			ScheduledTime:         intent.ScheduledTime,
			VisitType:             intent.VisitType,
			Status:                status,
			Notes:                 intent.Notes,
			IsActive:              true,
		}
		if err := s.visitRepo.Create(ctx, visit); err != nil {
			return nil, "", fmt.Errorf("failed to create visit: %w", err)
		}
		return visit, model.AuditActionCreate, nil
	}

	existing.StaffID = intent.StaffID
	existing.VisitDate = intent.VisitDate
	existing.ScheduledTime = intent.ScheduledTime
	existing.VisitType = intent.VisitType
	existing.Notes = intent.Notes
	if intent.Status != "" {
		existing.Status = intent.Status
	}
	if err := s.visitRepo.Update(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("failed to update visit: %w", err)
	}
	return existing, model.AuditActionUpdate, nil
}

// Delete removes a visit. A visit that already has a saved clinical note is
// deactivated instead and DeactivatedInsteadOfDeleted is returned; the
// caller should treat that as success with a different outcome. Either path
// publishes one visits_updated snapshot.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	visit, err := s.visitRepo.Get(ctx, id)
	if err != nil {
		return errors.NotFound("visit", err)
	}

	if visit.HasNoteSaved {
		if err := s.visitRepo.Deactivate(ctx, id); err != nil {
			return fmt.Errorf("failed to deactivate visit: %w", err)
		}
		if err := s.auditor.Log(ctx, visit.StaffID, visit.PatientID, model.AuditActionDeactivate, model.AuditEntityVisit, id, nil); err != nil {
			s.logger.Error(err, "Failed to write audit log", "visit_id", id.String())
		}
		if err := s.broadcaster.PublishVisitSnapshot(ctx, visit.CertificationPeriodID, visit.PatientID); err != nil {
			s.logger.Error(err, "Failed to publish visit snapshot", "visit_id", id.String())
		}
		return errors.DeactivatedInsteadOfDeleted(
			"visit has a saved clinical note and was deactivated instead of deleted")
	}

	if err := s.visitRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}
	if err := s.auditor.Log(ctx, visit.StaffID, visit.PatientID, model.AuditActionDelete, model.AuditEntityVisit, id, nil); err != nil {
		s.logger.Error(err, "Failed to write audit log", "visit_id", id.String())
	}
	if err := s.broadcaster.PublishVisitSnapshot(ctx, visit.CertificationPeriodID, visit.PatientID); err != nil {
		s.logger.Error(err, "Failed to publish visit snapshot", "visit_id", id.String())
	}
	return nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	visit, err := s.visitRepo.Get(ctx, id)
	if err != nil {
		return nil, errors.NotFound("visit", err)
	}
	return visit, nil
}

// ListVisits lists the visits in a certification period. The read is
// idempotent, so a transport failure is retried once before surfacing
// TransportFailure.
func (s *Service) ListVisits(ctx context.Context, certPeriodID uuid.UUID, filters *model.VisitFilters) ([]*model.Visit, error) {
	visits, err := s.visitRepo.ListByCertPeriod(ctx, certPeriodID, filters)
	if err != nil {
		s.logger.Warn("Retrying visit list after store failure", "cert_period_id", certPeriodID.String())
		visits, err = s.visitRepo.ListByCertPeriod(ctx, certPeriodID, filters)
		if err != nil {
			return nil, errors.TransportFailure(err)
		}
	}
	return visits, nil
}

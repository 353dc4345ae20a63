package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
)

// All repository interfaces in one file
type (
	// VisitRepository is the engine's visit store. Deactivate is the
	// soft-delete path used when a visit has a saved clinical note.
	VisitRepository interface {
		Create(ctx context.Context, visit *model.Visit) error
		Get(ctx context.Context, id uuid.UUID) (*model.Visit, error)
		Update(ctx context.Context, visit *model.Visit) error
		Delete(ctx context.Context, id uuid.UUID) error
		Deactivate(ctx context.Context, id uuid.UUID) error
		ListByCertPeriod(ctx context.Context, certPeriodID uuid.UUID, filters *model.VisitFilters) ([]*model.Visit, error)
		CheckTimeSlotConflict(ctx context.Context, staffID uuid.UUID, visitDate time.Time, scheduledTime string, excludeID *uuid.UUID) (bool, error)
	}

	CertPeriodRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.CertificationPeriod, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.CertificationPeriod, error)
		// UpdateActiveFlags recomputes is_active for every period against
		// the given date and returns the number of rows changed.
		UpdateActiveFlags(ctx context.Context, today time.Time) (int64, error)
	}

	StaffRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Staff, error)
		List(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		UpdateAuthorizations(ctx context.Context, id uuid.UUID, approvedVisits, frequencySpecs []byte) error
	}

	NoteRepository interface {
		Create(ctx context.Context, note *model.ClinicalNote) error
		Get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error)
		GetByVisit(ctx context.Context, visitID uuid.UUID) (*model.ClinicalNote, error)
		Update(ctx context.Context, note *model.ClinicalNote) error
	}

	// WeeklyLimitRepository persists the per-period quota snapshot so
	// every consumer reads the same caps.
	WeeklyLimitRepository interface {
		GetForPeriod(ctx context.Context, certPeriodID uuid.UUID) (model.WeeklyLimit, error)
		ReplaceForPeriod(ctx context.Context, certPeriodID uuid.UUID, limits model.WeeklyLimit) error
		SetCap(ctx context.Context, certPeriodID uuid.UUID, discipline model.Discipline, week, cap int) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, processedAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

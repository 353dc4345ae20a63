package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/therapysync/schedule-api/internal/repository"
)

type visitRepository struct {
	db *sqlx.DB
}

type certPeriodRepository struct {
	db *sqlx.DB
}

type staffRepository struct {
	db *sqlx.DB
}

type patientRepository struct {
	db *sqlx.DB
}

type noteRepository struct {
	db *sqlx.DB
}

type weeklyLimitRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

type auditRepository struct {
	db *sqlx.DB
}

func NewVisitRepository(db *sqlx.DB) repository.VisitRepository {
	return &visitRepository{db: db}
}

func NewCertPeriodRepository(db *sqlx.DB) repository.CertPeriodRepository {
	return &certPeriodRepository{db: db}
}

func NewStaffRepository(db *sqlx.DB) repository.StaffRepository {
	return &staffRepository{db: db}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewNoteRepository(db *sqlx.DB) repository.NoteRepository {
	return &noteRepository{db: db}
}

func NewWeeklyLimitRepository(db *sqlx.DB) repository.WeeklyLimitRepository {
	return &weeklyLimitRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

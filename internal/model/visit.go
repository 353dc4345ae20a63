package model

import (
	"time"

	"github.com/google/uuid"
)

type VisitStatus string

const (
	VisitStatusScheduled  VisitStatus = "Scheduled"
	VisitStatusInProgress VisitStatus = "InProgress"
	VisitStatusCompleted  VisitStatus = "Completed"
	VisitStatusPending    VisitStatus = "Pending"
	VisitStatusMissed     VisitStatus = "Missed"
	VisitStatusCancelled  VisitStatus = "Cancelled"
)

// CountsTowardQuota reports whether a visit in this status consumes weekly
// quota. Missed, cancelled and pending visits release their slot until they
// re-enter an active status.
func (s VisitStatus) CountsTowardQuota() bool {
	switch s {
	case VisitStatusScheduled, VisitStatusInProgress, VisitStatusCompleted:
		return true
	}
	return false
}

type Visit struct {
	Base
	PatientID             uuid.UUID   `db:"patient_id" json:"patient_id"`
	StaffID               uuid.UUID   `db:"staff_id" json:"staff_id"`
	CertificationPeriodID uuid.UUID   `db:"certification_period_id" json:"certification_period_id"`
	VisitDate             time.Time   `db:"visit_date" json:"visit_date"`
	ScheduledTime         *string     `db:"scheduled_time" json:"scheduled_time,omitempty"`
	VisitType             string      `db:"visit_type" json:"visit_type"`
	Status                VisitStatus `db:"status" json:"status"`
	Notes                 string      `db:"notes" json:"notes,omitempty"`
	HasNoteSaved          bool        `db:"has_note_saved" json:"has_note_saved"`
	IsActive              bool        `db:"is_active" json:"is_active"`
	MissedReason          *string     `db:"missed_reason" json:"missed_reason,omitempty"`
	MissedAction          *string     `db:"missed_action" json:"missed_action,omitempty"`
	MDNotified            bool        `db:"md_notified" json:"md_notified"`
	NoShow                bool        `db:"no_show" json:"no_show"`
}

// MissedVisitRecord is the structured record required to mark a visit
// missed.
type MissedVisitRecord struct {
	Reason      string `json:"reason" validate:"required"`
	ActionTaken string `json:"action_taken"`
	MDNotified  bool   `json:"md_notified"`
	NoShow      bool   `json:"no_show"`
}

// VisitIntent is a requested create or update of a visit, prior to
// validation. A nil ID means a new visit.
type VisitIntent struct {
	ID                    *uuid.UUID  `json:"id,omitempty"`
	PatientID             uuid.UUID   `json:"patient_id" validate:"required"`
	StaffID               uuid.UUID   `json:"staff_id" validate:"required"`
	CertificationPeriodID uuid.UUID   `json:"certification_period_id"`
	VisitDate             time.Time   `json:"visit_date" validate:"required"`
	ScheduledTime         *string     `json:"scheduled_time,omitempty"`
	VisitType             string      `json:"visit_type" validate:"required"`
	Status                VisitStatus `json:"status"`
	Notes                 string      `json:"notes"`
}

type CreateVisitRequest struct {
	PatientID             uuid.UUID `json:"patient_id" binding:"required"`
	StaffID               uuid.UUID `json:"staff_id" binding:"required"`
	CertificationPeriodID uuid.UUID `json:"certification_period_id"`
	VisitDate             string    `json:"visit_date" binding:"required"`
	ScheduledTime         *string   `json:"scheduled_time"`
	VisitType             string    `json:"visit_type" binding:"required"`
	Notes                 string    `json:"notes" binding:"max=1000"`
}

type UpdateVisitRequest struct {
	StaffID       *uuid.UUID `json:"staff_id"`
	VisitDate     *string    `json:"visit_date"`
	ScheduledTime *string    `json:"scheduled_time"`
	VisitType     *string    `json:"visit_type"`
	Notes         *string    `json:"notes"`
}

type ChangeVisitStatusRequest struct {
	Status VisitStatus        `json:"status" binding:"required"`
	Missed *MissedVisitRecord `json:"missed,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

type VisitFilters struct {
	Status          VisitStatus `form:"status"`
	Discipline      Discipline  `form:"discipline"`
	IncludeInactive bool        `form:"include_inactive"`
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Event types emitted by the scheduling engine. Each carries the full
// post-mutation snapshot so consumers never need to diff.
const (
	EventVisitsUpdated       = "visits_updated"
	EventWeeklyLimitsUpdated = "weekly_limits_updated"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// VisitsUpdatedPayload is the snapshot published after any visit-set
// mutation within a certification period.
type VisitsUpdatedPayload struct {
	CertificationPeriodID uuid.UUID `json:"certification_period_id"`
	PatientID             uuid.UUID `json:"patient_id"`
	Visits                []*Visit  `json:"visits"`
}

// WeeklyLimitsUpdatedPayload is the snapshot published after any quota
// recomputation or manual override.
type WeeklyLimitsUpdatedPayload struct {
	CertificationPeriodID uuid.UUID   `json:"certification_period_id"`
	Limits                WeeklyLimit `json:"limits"`
}

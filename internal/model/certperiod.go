package model

import (
	"time"

	"github.com/google/uuid"
)

// CertificationPeriod is a clinician-authorized date range during which a
// patient's therapy plan and visit quotas apply. Periods are created by
// clinical intake; the scheduling engine only selects and reads them.
type CertificationPeriod struct {
	Base
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

// Contains reports whether the date falls inside the period, inclusive.
func (p *CertificationPeriod) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate.Truncate(24*time.Hour)) && !d.After(p.EndDate.Truncate(24*time.Hour))
}

// WeekSpan is the number of calendar weeks the period covers, inclusive of
// partial weeks at either end.
func (p *CertificationPeriod) WeekSpan() int {
	days := int(p.EndDate.Sub(p.StartDate).Hours()/24) + 1
	if days < 1 {
		return 0
	}
	return (days + 6) / 7
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCertPeriodContains(t *testing.T) {
	p := &CertificationPeriod{
		StartDate: day(2025, 1, 6),
		EndDate:   day(2025, 3, 2),
	}

	assert.True(t, p.Contains(day(2025, 1, 6)), "start date is inclusive")
	assert.True(t, p.Contains(day(2025, 3, 2)), "end date is inclusive")
	assert.True(t, p.Contains(day(2025, 2, 14)))
	assert.False(t, p.Contains(day(2025, 1, 5)))
	assert.False(t, p.Contains(day(2025, 3, 3)))

	// Time-of-day must not matter.
	assert.True(t, p.Contains(time.Date(2025, 3, 2, 23, 30, 0, 0, time.UTC)))
}

func TestCertPeriodWeekSpan(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"single day", day(2025, 1, 6), day(2025, 1, 6), 1},
		{"exactly one week", day(2025, 1, 6), day(2025, 1, 12), 1},
		{"one week and a day", day(2025, 1, 6), day(2025, 1, 13), 2},
		{"eight weeks", day(2025, 1, 6), day(2025, 3, 2), 8},
		{"inverted dates", day(2025, 3, 2), day(2025, 1, 6), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &CertificationPeriod{StartDate: tt.start, EndDate: tt.end}
			assert.Equal(t, tt.want, p.WeekSpan())
		})
	}
}

func TestVisitStatusCountsTowardQuota(t *testing.T) {
	assert.True(t, VisitStatusScheduled.CountsTowardQuota())
	assert.True(t, VisitStatusInProgress.CountsTowardQuota())
	assert.True(t, VisitStatusCompleted.CountsTowardQuota())
	assert.False(t, VisitStatusPending.CountsTowardQuota())
	assert.False(t, VisitStatusMissed.CountsTowardQuota())
	assert.False(t, VisitStatusCancelled.CountsTowardQuota())
}

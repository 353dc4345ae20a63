package model

import "time"

// Default weekly caps applied to disciplines that have no frequency spec.
const (
	DefaultWeeklyCapPT = 2
	DefaultWeeklyCapOT = 3
	DefaultWeeklyCapST = 2
)

// WeekOf returns the ISO week number a date falls in. Certification periods
// are at most a few months long, so the bare week number is a sufficient
// bucket key within one period.
func WeekOf(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// DefaultWeeklyCap is the fallback cap for a discipline without a
// frequency spec.
func DefaultWeeklyCap(d Discipline) int {
	switch d {
	case DisciplineOT:
		return DefaultWeeklyCapOT
	default:
		return DefaultWeeklyCapPT
	}
}

// WeeklyLimit maps discipline -> ISO week number -> maximum active visits.
// It is a point-in-time snapshot: the quota calculator recomputes it
// wholesale when frequency specs or approved ceilings change, and manual
// per-week overrides survive only until the next recomputation.
type WeeklyLimit map[Discipline]map[int]int

// Cap returns the cap for a discipline/week and whether one is defined.
func (w WeeklyLimit) Cap(d Discipline, week int) (int, bool) {
	weeks, ok := w[d]
	if !ok {
		return 0, false
	}
	cap, ok := weeks[week]
	return cap, ok
}

// Set records a cap for a discipline/week. Negative caps clamp to zero.
func (w WeeklyLimit) Set(d Discipline, week, cap int) {
	if cap < 0 {
		cap = 0
	}
	if w[d] == nil {
		w[d] = make(map[int]int)
	}
	w[d][week] = cap
}

// Clone deep-copies the limit map so snapshots handed to observers are
// safe to read after later mutations.
func (w WeeklyLimit) Clone() WeeklyLimit {
	out := make(WeeklyLimit, len(w))
	for d, weeks := range w {
		out[d] = make(map[int]int, len(weeks))
		for week, cap := range weeks {
			out[d][week] = cap
		}
	}
	return out
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWeeklyCap(t *testing.T) {
	assert.Equal(t, 2, DefaultWeeklyCap(DisciplinePT))
	assert.Equal(t, 3, DefaultWeeklyCap(DisciplineOT))
	assert.Equal(t, 2, DefaultWeeklyCap(DisciplineST))
}

func TestWeekOf(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	nextMonday := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, WeekOf(monday), WeekOf(sunday), "same ISO week")
	assert.NotEqual(t, WeekOf(monday), WeekOf(nextMonday), "different ISO weeks")
}

func TestWeeklyLimitSetAndCap(t *testing.T) {
	limits := make(WeeklyLimit)

	_, ok := limits.Cap(DisciplinePT, 10)
	assert.False(t, ok)

	limits.Set(DisciplinePT, 10, 2)
	cap, ok := limits.Cap(DisciplinePT, 10)
	assert.True(t, ok)
	assert.Equal(t, 2, cap)

	limits.Set(DisciplinePT, 10, -5)
	cap, _ = limits.Cap(DisciplinePT, 10)
	assert.Equal(t, 0, cap, "negative caps clamp to zero")
}

func TestWeeklyLimitClone(t *testing.T) {
	limits := make(WeeklyLimit)
	limits.Set(DisciplineOT, 3, 3)

	clone := limits.Clone()
	limits.Set(DisciplineOT, 3, 1)

	cap, _ := clone.Cap(DisciplineOT, 3)
	assert.Equal(t, 3, cap, "clone is unaffected by later writes")
}

package model

import (
	"fmt"
	"regexp"
)

// FrequencySpec is the care-plan visit frequency, e.g. "2w1" authorizes
// 2 visits every 1 week.
type FrequencySpec struct {
	VisitsPerPeriod int `json:"visits_per_period"`
	WeeksPerPeriod  int `json:"weeks_per_period"`
}

var frequencyPattern = regexp.MustCompile(`^(\d+)w(\d+)$`)

// ParseFrequency parses the compact "NwM" notation used on plans of care.
func ParseFrequency(s string) (FrequencySpec, error) {
	parts := frequencyPattern.FindStringSubmatch(s)
	if parts == nil {
		return FrequencySpec{}, fmt.Errorf("invalid frequency %q: expected NwM notation", s)
	}

	var spec FrequencySpec
	fmt.Sscanf(parts[1], "%d", &spec.VisitsPerPeriod)
	fmt.Sscanf(parts[2], "%d", &spec.WeeksPerPeriod)

	if spec.VisitsPerPeriod < 1 || spec.WeeksPerPeriod < 1 {
		return FrequencySpec{}, fmt.Errorf("invalid frequency %q: visits and weeks must be positive", s)
	}
	return spec, nil
}

// PerWeekCap derives the weekly visit cap from the spec, bounded by the
// approved-visit ceiling when one is set.
func (f FrequencySpec) PerWeekCap(approvedCeiling *int) int {
	cap := (f.VisitsPerPeriod + f.WeeksPerPeriod - 1) / f.WeeksPerPeriod
	if approvedCeiling != nil && *approvedCeiling < cap {
		cap = *approvedCeiling
	}
	return cap
}

func (f FrequencySpec) String() string {
	return fmt.Sprintf("%dw%d", f.VisitsPerPeriod, f.WeeksPerPeriod)
}

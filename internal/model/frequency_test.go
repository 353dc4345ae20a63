package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FrequencySpec
		wantErr bool
	}{
		{name: "twice a week", input: "2w1", want: FrequencySpec{VisitsPerPeriod: 2, WeeksPerPeriod: 1}},
		{name: "three per two weeks", input: "3w2", want: FrequencySpec{VisitsPerPeriod: 3, WeeksPerPeriod: 2}},
		{name: "once a week", input: "1w1", want: FrequencySpec{VisitsPerPeriod: 1, WeeksPerPeriod: 1}},
		{name: "double digits", input: "10w4", want: FrequencySpec{VisitsPerPeriod: 10, WeeksPerPeriod: 4}},
		{name: "zero visits", input: "0w1", wantErr: true},
		{name: "zero weeks", input: "2w0", wantErr: true},
		{name: "missing weeks", input: "2w", wantErr: true},
		{name: "wrong separator", input: "2x1", wantErr: true},
		{name: "trailing garbage", input: "2w1x", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPerWeekCap(t *testing.T) {
	ceiling := func(n int) *int { return &n }

	tests := []struct {
		name    string
		spec    string
		ceiling *int
		want    int
	}{
		{name: "2w1 is two per week", spec: "2w1", want: 2},
		{name: "3w2 rounds up", spec: "3w2", want: 2},
		{name: "1w1", spec: "1w1", want: 1},
		{name: "5w4 rounds up", spec: "5w4", want: 2},
		{name: "ceiling below derived cap wins", spec: "3w1", ceiling: ceiling(1), want: 1},
		{name: "ceiling above derived cap is inert", spec: "2w1", ceiling: ceiling(10), want: 2},
		{name: "ceiling equal to cap", spec: "2w1", ceiling: ceiling(2), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseFrequency(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.PerWeekCap(tt.ceiling))
		})
	}
}

func TestFrequencyString(t *testing.T) {
	spec, err := ParseFrequency("3w2")
	require.NoError(t, err)
	assert.Equal(t, "3w2", spec.String())
}

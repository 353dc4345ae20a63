package model

import "encoding/json"

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

type Patient struct {
	Base
	Name           string          `db:"name" json:"name"`
	Email          string          `db:"email" json:"email"`
	Status         string          `db:"status" json:"status"`
	ApprovedVisits json.RawMessage `db:"approved_visits" json:"approved_visits,omitempty"`
	FrequencySpecs json.RawMessage `db:"frequency_specs" json:"frequency_specs,omitempty"`
}

// ApprovedCeilings decodes the per-discipline approved-visit ceilings
// stored on the patient record. Missing or malformed data yields an empty
// map, which the quota calculator treats as "no ceiling".
func (p *Patient) ApprovedCeilings() map[Discipline]int {
	out := make(map[Discipline]int)
	if len(p.ApprovedVisits) == 0 {
		return out
	}
	_ = json.Unmarshal(p.ApprovedVisits, &out)
	return out
}

// Frequencies decodes the per-discipline frequency specs ("2w1" notation)
// stored on the patient record. Unparseable entries are skipped.
func (p *Patient) Frequencies() map[Discipline]FrequencySpec {
	raw := make(map[Discipline]string)
	out := make(map[Discipline]FrequencySpec)
	if len(p.FrequencySpecs) == 0 {
		return out
	}
	if err := json.Unmarshal(p.FrequencySpecs, &raw); err != nil {
		return out
	}
	for d, s := range raw {
		spec, err := ParseFrequency(s)
		if err != nil {
			continue
		}
		out[d] = spec
	}
	return out
}

package model

import (
	"sort"
	"strings"
)

// Discipline is the therapy discipline a visit is counted under.
type Discipline string

const (
	DisciplinePT    Discipline = "PT"
	DisciplineOT    Discipline = "OT"
	DisciplineST    Discipline = "ST"
	DisciplineOther Discipline = "Other"
)

// roleDisciplines maps staff roles to their parent discipline. Assistant
// roles count against the same discipline as the supervising therapist.
var roleDisciplines = map[string]Discipline{
	"PT":   DisciplinePT,
	"PTA":  DisciplinePT,
	"OT":   DisciplineOT,
	"COTA": DisciplineOT,
	"ST":   DisciplineST,
	"STA":  DisciplineST,
}

// DisciplineOf classifies a staff role. Unknown roles classify to
// DisciplineOther, which is excluded from discipline-scoped quota checks.
func DisciplineOf(role string) Discipline {
	if d, ok := roleDisciplines[strings.ToUpper(strings.TrimSpace(role))]; ok {
		return d
	}
	return DisciplineOther
}

// RolesForDiscipline lists the staff roles counted under a discipline.
func RolesForDiscipline(d Discipline) []string {
	var roles []string
	for role, rd := range roleDisciplines {
		if rd == d {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}

// TherapyDisciplines are the disciplines that carry weekly quotas.
func TherapyDisciplines() []Discipline {
	return []Discipline{DisciplinePT, DisciplineOT, DisciplineST}
}

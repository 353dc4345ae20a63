package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ClinicalNote struct {
	Base
	VisitID    uuid.UUID       `db:"visit_id" json:"visit_id"`
	Discipline Discipline      `db:"discipline" json:"discipline"`
	NoteType   string          `db:"note_type" json:"note_type"`
	Sections   json.RawMessage `db:"sections" json:"sections"`
	Completed  bool            `db:"completed" json:"completed"`
	CreatedBy  uuid.UUID       `db:"created_by" json:"created_by"`
}

// NoteSession is the context handed back when a note is opened for a visit:
// the note record plus the prefill the documentation surface renders from.
type NoteSession struct {
	Note    *ClinicalNote `json:"note"`
	Prefill NotePrefill   `json:"prefill"`
}

type NotePrefill struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	TherapistID   uuid.UUID  `json:"therapist_id"`
	TherapistName string     `json:"therapist_name"`
	Discipline    Discipline `json:"discipline"`
	VisitType     string     `json:"visit_type"`
	VisitDate     time.Time  `json:"visit_date"`
}

type SaveNoteRequest struct {
	Sections  json.RawMessage `json:"sections" binding:"required"`
	Completed bool            `json:"completed"`
}

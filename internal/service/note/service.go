package note

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/internal/service/audit"
	"github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
)

// Service manages the clinical note attached to a visit. Each visit has at
// most one note; opening is idempotent and saving flips the visit's
// has_note_saved flag, which in turn blocks hard deletion of the visit.
type Service struct {
	noteRepo    repository.NoteRepository
	visitRepo   repository.VisitRepository
	staffRepo   repository.StaffRepository
	broadcaster *sync.Broadcaster
	auditor     *audit.Service
	logger      *logger.Logger
}

func NewService(
	noteRepo repository.NoteRepository,
	visitRepo repository.VisitRepository,
	staffRepo repository.StaffRepository,
	broadcaster *sync.Broadcaster,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		noteRepo:    noteRepo,
		visitRepo:   visitRepo,
		staffRepo:   staffRepo,
		broadcaster: broadcaster,
		auditor:     auditor,
		logger:      logger,
	}
}

// Open returns the note session for a visit, creating an empty note record
// on first open. The prefill carries the visit context the documentation
// surface renders from.
func (s *Service) Open(ctx context.Context, visitID uuid.UUID) (*model.NoteSession, error) {
	visit, err := s.visitRepo.Get(ctx, visitID)
	if err != nil {
		return nil, errors.NotFound("visit", err)
	}
	staff, err := s.staffRepo.Get(ctx, visit.StaffID)
	if err != nil {
		return nil, errors.NotFound("staff member", err)
	}

	note, err := s.noteRepo.GetByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinical note: %w", err)
	}
	if note == nil {
		note = &model.ClinicalNote{
			VisitID:    visitID,
			Discipline: staff.Discipline(),
			NoteType:   visit.VisitType,
			Sections:   json.RawMessage("{}"),
			CreatedBy:  staff.ID,
		}
		if err := s.noteRepo.Create(ctx, note); err != nil {
			return nil, fmt.Errorf("failed to create clinical note: %w", err)
		}
	}

	return &model.NoteSession{
		Note: note,
		Prefill: model.NotePrefill{
			PatientID:     visit.PatientID,
			TherapistID:   staff.ID,
			TherapistName: staff.Name,
			Discipline:    staff.Discipline(),
			VisitType:     visit.VisitType,
			VisitDate:     visit.VisitDate,
		},
	}, nil
}

// Save persists note content, marks the visit as having a saved note, and
// moves a Pending visit back to Completed when the note is complete.
func (s *Service) Save(ctx context.Context, visitID uuid.UUID, req *model.SaveNoteRequest) (*model.ClinicalNote, error) {
	visit, err := s.visitRepo.Get(ctx, visitID)
	if err != nil {
		return nil, errors.NotFound("visit", err)
	}

	note, err := s.noteRepo.GetByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinical note: %w", err)
	}
	if note == nil {
		staff, err := s.staffRepo.Get(ctx, visit.StaffID)
		if err != nil {
			return nil, errors.NotFound("staff member", err)
		}
		note = &model.ClinicalNote{
			VisitID:    visitID,
			Discipline: staff.Discipline(),
			NoteType:   visit.VisitType,
			Sections:   req.Sections,
			Completed:  req.Completed,
			CreatedBy:  staff.ID,
		}
		if err := s.noteRepo.Create(ctx, note); err != nil {
			return nil, fmt.Errorf("failed to create clinical note: %w", err)
		}
	} else {
		note.Sections = req.Sections
		note.Completed = req.Completed
		if err := s.noteRepo.Update(ctx, note); err != nil {
			return nil, fmt.Errorf("failed to update clinical note: %w", err)
		}
	}

	visit.HasNoteSaved = true
	if req.Completed && visit.Status == model.VisitStatusPending {
		visit.Status = model.VisitStatusCompleted
	}
	if err := s.visitRepo.Update(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to update visit: %w", err)
	}

	if err := s.auditor.Log(ctx, note.CreatedBy, visit.PatientID, model.AuditActionUpdate, model.AuditEntityNote, note.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"completed": note.Completed},
	}); err != nil {
		s.logger.Error(err, "Failed to write audit log", "note_id", note.ID.String())
	}
	if err := s.broadcaster.PublishVisitSnapshot(ctx, visit.CertificationPeriodID, visit.PatientID); err != nil {
		s.logger.Error(err, "Failed to publish visit snapshot", "visit_id", visitID.String())
	}

	return note, nil
}

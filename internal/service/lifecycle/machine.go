package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/email"
	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/repository"
	"github.com/therapysync/schedule-api/internal/service/audit"
	"github.com/therapysync/schedule-api/internal/service/note"
	"github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
	"github.com/therapysync/schedule-api/pkg/validator"
)

// transitions lists the allowed target statuses per current status.
// Cancelled is the only terminal status. Pending is the return-to-therapist
// state, so it is only reachable from Completed; finishing the returned note
// moves the visit back to Completed. A Missed visit can be put back on the
// schedule.
var transitions = map[model.VisitStatus][]model.VisitStatus{
	model.VisitStatusScheduled:  {model.VisitStatusInProgress, model.VisitStatusCompleted, model.VisitStatusMissed, model.VisitStatusCancelled},
	model.VisitStatusInProgress: {model.VisitStatusCompleted, model.VisitStatusMissed, model.VisitStatusCancelled},
	model.VisitStatusCompleted:  {model.VisitStatusPending, model.VisitStatusCancelled},
	model.VisitStatusPending:    {model.VisitStatusCompleted, model.VisitStatusCancelled},
	model.VisitStatusMissed:     {model.VisitStatusScheduled, model.VisitStatusCancelled},
	model.VisitStatusCancelled:  {},
}

func allowed(from, to model.VisitStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Result carries the updated visit and, when the transition opened a
// documentation session, the note session to hand to the caller.
type Result struct {
	Visit       *model.Visit       `json:"visit"`
	NoteSession *model.NoteSession `json:"note_session,omitempty"`
}

// Machine drives visit status transitions and their side effects.
type Machine struct {
	visitRepo   repository.VisitRepository
	staffRepo   repository.StaffRepository
	notes       *note.Service
	emailer     email.Service
	mdEmail     string
	broadcaster *sync.Broadcaster
	auditor     *audit.Service
	metrics     *metrics.Metrics
	logger      *logger.Logger
	validate    validator.Validator
}

func NewMachine(
	visitRepo repository.VisitRepository,
	staffRepo repository.StaffRepository,
	notes *note.Service,
	emailer email.Service,
	mdEmail string,
	broadcaster *sync.Broadcaster,
	auditor *audit.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Machine {
	return &Machine{
		visitRepo:   visitRepo,
		staffRepo:   staffRepo,
		notes:       notes,
		emailer:     emailer,
		mdEmail:     mdEmail,
		broadcaster: broadcaster,
		auditor:     auditor,
		metrics:     metrics,
		logger:      logger,
		validate:    validator.New(),
	}
}

// Transition moves a visit to the target status, applying side effects:
// completing opens a note session, returning a completed visit to Pending
// clears has_note_saved and emails the therapist, marking Missed requires a
// structured missed-visit record and may notify the MD.
func (m *Machine) Transition(ctx context.Context, visitID uuid.UUID, req *model.ChangeVisitStatusRequest) (*Result, error) {
	visit, err := m.visitRepo.Get(ctx, visitID)
	if err != nil {
		return nil, errors.NotFound("visit", err)
	}

	from := visit.Status
	to := req.Status
	if !allowed(from, to) {
		return nil, errors.InvalidTransition(string(from), string(to))
	}

	switch to {
	case model.VisitStatusMissed:
		if req.Missed == nil {
			return nil, errors.MissingFields("missed")
		}
		if err := m.validate.Validate(req.Missed); err != nil {
			return nil, errors.MissingFields("missed.reason")
		}
		visit.MissedReason = &req.Missed.Reason
		visit.MissedAction = &req.Missed.ActionTaken
		visit.MDNotified = req.Missed.MDNotified
		visit.NoShow = req.Missed.NoShow
	case model.VisitStatusPending:
		visit.HasNoteSaved = false
	case model.VisitStatusCompleted:
		// Re-completing a returned visit means the note revision is done;
		// the saved flag must survive the round trip.
		if from == model.VisitStatusPending {
			visit.HasNoteSaved = true
		}
	case model.VisitStatusScheduled:
		// Rescheduling a missed visit clears the missed record.
		visit.MissedReason = nil
		visit.MissedAction = nil
		visit.MDNotified = false
		visit.NoShow = false
	}
	visit.Status = to

	if err := m.visitRepo.Update(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to update visit: %w", err)
	}

	m.metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	if err := m.auditor.Log(ctx, visit.StaffID, visit.PatientID, model.AuditActionTransition, model.AuditEntityVisit, visit.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"from": from, "to": to},
	}); err != nil {
		m.logger.Error(err, "Failed to write audit log", "visit_id", visit.ID.String())
	}

	m.notify(ctx, visit, from, to, req)

	result := &Result{Visit: visit}
	if to == model.VisitStatusCompleted && from != model.VisitStatusPending {
		session, err := m.notes.Open(ctx, visit.ID)
		if err != nil {
			m.logger.Error(err, "Failed to open note session", "visit_id", visit.ID.String())
		} else {
			result.NoteSession = session
		}
	}

	if err := m.broadcaster.PublishVisitSnapshot(ctx, visit.CertificationPeriodID, visit.PatientID); err != nil {
		m.logger.Error(err, "Failed to publish visit snapshot", "visit_id", visit.ID.String())
	}

	return result, nil
}

// notify sends the transition emails. Delivery failures are logged, never
// returned; the transition has already been persisted.
func (m *Machine) notify(ctx context.Context, visit *model.Visit, from, to model.VisitStatus, req *model.ChangeVisitStatusRequest) {
	switch {
	case to == model.VisitStatusPending && from == model.VisitStatusCompleted:
		therapist, err := m.staffRepo.Get(ctx, visit.StaffID)
		if err != nil {
			m.logger.Error(err, "Failed to load therapist for notification", "visit_id", visit.ID.String())
			return
		}
		if err := m.emailer.SendReturnToTherapist(ctx, therapist, visit, req.Reason); err != nil {
			m.logger.Error(err, "Failed to send return-to-therapist email", "visit_id", visit.ID.String())
		}
	case to == model.VisitStatusMissed && req.Missed != nil && req.Missed.MDNotified && m.mdEmail != "":
		if err := m.emailer.SendMissedVisitNotice(ctx, m.mdEmail, visit, req.Missed); err != nil {
			m.logger.Error(err, "Failed to send missed-visit email", "visit_id", visit.ID.String())
		}
	}
}

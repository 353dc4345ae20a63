package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapysync/schedule-api/internal/model"
	auditService "github.com/therapysync/schedule-api/internal/service/audit"
	eventService "github.com/therapysync/schedule-api/internal/service/event"
	noteService "github.com/therapysync/schedule-api/internal/service/note"
	syncService "github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

// Prometheus collectors register globally, so the test binary shares one
// metrics instance.
var testMetrics = metrics.NewMetrics("test", "lifecycle")

type fakeVisitRepo struct {
	visits map[uuid.UUID]*model.Visit
}

func (f *fakeVisitRepo) Create(ctx context.Context, v *model.Visit) error {
	v.ID = uuid.New()
	clone := *v
	f.visits[v.ID] = &clone
	return nil
}

func (f *fakeVisitRepo) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	v, ok := f.visits[id]
	if !ok {
		return nil, errors.NotFound("visit", nil)
	}
	clone := *v
	return &clone, nil
}

func (f *fakeVisitRepo) Update(ctx context.Context, v *model.Visit) error {
	clone := *v
	f.visits[v.ID] = &clone
	return nil
}

func (f *fakeVisitRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.visits, id)
	return nil
}

func (f *fakeVisitRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	f.visits[id].IsActive = false
	return nil
}

func (f *fakeVisitRepo) ListByCertPeriod(ctx context.Context, certPeriodID uuid.UUID, filters *model.VisitFilters) ([]*model.Visit, error) {
	var out []*model.Visit
	for _, v := range f.visits {
		if v.CertificationPeriodID == certPeriodID {
			clone := *v
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeVisitRepo) CheckTimeSlotConflict(ctx context.Context, staffID uuid.UUID, visitDate time.Time, scheduledTime string, excludeID *uuid.UUID) (bool, error) {
	return false, nil
}

type fakeStaffRepo struct {
	staff map[uuid.UUID]*model.Staff
}

func (f *fakeStaffRepo) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	s, ok := f.staff[id]
	if !ok {
		return nil, errors.NotFound("staff member", nil)
	}
	return s, nil
}

func (f *fakeStaffRepo) List(ctx context.Context, filters *model.StaffFilters) ([]*model.Staff, error) {
	var out []*model.Staff
	for _, s := range f.staff {
		out = append(out, s)
	}
	return out, nil
}

type fakeNoteRepo struct {
	byVisit map[uuid.UUID]*model.ClinicalNote
}

func (f *fakeNoteRepo) Create(ctx context.Context, n *model.ClinicalNote) error {
	n.ID = uuid.New()
	f.byVisit[n.VisitID] = n
	return nil
}

func (f *fakeNoteRepo) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalNote, error) {
	for _, n := range f.byVisit {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, errors.NotFound("clinical note", nil)
}

func (f *fakeNoteRepo) GetByVisit(ctx context.Context, visitID uuid.UUID) (*model.ClinicalNote, error) {
	return f.byVisit[visitID], nil
}

func (f *fakeNoteRepo) Update(ctx context.Context, n *model.ClinicalNote) error {
	f.byVisit[n.VisitID] = n
	return nil
}

type fakeLimitRepo struct{}

func (fakeLimitRepo) GetForPeriod(ctx context.Context, certPeriodID uuid.UUID) (model.WeeklyLimit, error) {
	return make(model.WeeklyLimit), nil
}

func (fakeLimitRepo) ReplaceForPeriod(ctx context.Context, certPeriodID uuid.UUID, limits model.WeeklyLimit) error {
	return nil
}

func (fakeLimitRepo) SetCap(ctx context.Context, certPeriodID uuid.UUID, d model.Discipline, week, cap int) error {
	return nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, processedAt *time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeAuditRepo struct {
	logs []*model.AuditLog
}

func (f *fakeAuditRepo) Create(ctx context.Context, l *model.AuditLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeAuditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type sentEmail struct {
	kind      string
	recipient string
	reason    string
}

type fakeEmailer struct {
	sent []sentEmail
}

func (f *fakeEmailer) SendReturnToTherapist(ctx context.Context, therapist *model.Staff, visit *model.Visit, reason string) error {
	f.sent = append(f.sent, sentEmail{kind: "return", recipient: therapist.Email, reason: reason})
	return nil
}

func (f *fakeEmailer) SendMissedVisitNotice(ctx context.Context, mdEmail string, visit *model.Visit, record *model.MissedVisitRecord) error {
	f.sent = append(f.sent, sentEmail{kind: "missed", recipient: mdEmail, reason: record.Reason})
	return nil
}

type harness struct {
	machine *Machine
	visits  *fakeVisitRepo
	notes   *fakeNoteRepo
	emailer *fakeEmailer
	visitID uuid.UUID
}

func newHarness(t *testing.T, status model.VisitStatus) *harness {
	t.Helper()

	visits := &fakeVisitRepo{visits: make(map[uuid.UUID]*model.Visit)}
	staff := &fakeStaffRepo{staff: make(map[uuid.UUID]*model.Staff)}
	noteRepo := &fakeNoteRepo{byVisit: make(map[uuid.UUID]*model.ClinicalNote)}
	outbox := &fakeOutboxRepo{}
	emailer := &fakeEmailer{}

	therapist := &model.Staff{Role: "PT", Name: "Pat Therapist", Email: "pat@example.com", IsActive: true}
	therapist.ID = uuid.New()
	staff.staff[therapist.ID] = therapist

	visit := &model.Visit{
		PatientID:             uuid.New(),
		StaffID:               therapist.ID,
		CertificationPeriodID: uuid.New(),
		VisitDate:             time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		VisitType:             "Treatment",
		Status:                status,
		IsActive:              true,
	}
	require.NoError(t, visits.Create(context.Background(), visit))

	log := logger.NewLogger(nil)
	auditor := auditService.NewService(&fakeAuditRepo{})
	events := eventService.NewService(outbox)
	broadcaster := syncService.NewBroadcaster(visits, fakeLimitRepo{}, events, testMetrics, log)
	notes := noteService.NewService(noteRepo, visits, staff, broadcaster, auditor, log)
	machine := NewMachine(visits, staff, notes, emailer, "md@example.com", broadcaster, auditor, testMetrics, log)

	return &harness{
		machine: machine,
		visits:  visits,
		notes:   noteRepo,
		emailer: emailer,
		visitID: visit.ID,
	}
}

func (h *harness) transition(t *testing.T, req *model.ChangeVisitStatusRequest) *Result {
	t.Helper()
	result, err := h.machine.Transition(context.Background(), h.visitID, req)
	require.NoError(t, err)
	return result
}

func TestTransitionRejectsInvalidTarget(t *testing.T) {
	h := newHarness(t, model.VisitStatusCompleted)

	_, err := h.machine.Transition(context.Background(), h.visitID,
		&model.ChangeVisitStatusRequest{Status: model.VisitStatusInProgress})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestCancelledIsTerminal(t *testing.T) {
	h := newHarness(t, model.VisitStatusCancelled)

	for _, to := range []model.VisitStatus{
		model.VisitStatusScheduled, model.VisitStatusInProgress,
		model.VisitStatusCompleted, model.VisitStatusPending, model.VisitStatusMissed,
	} {
		_, err := h.machine.Transition(context.Background(), h.visitID,
			&model.ChangeVisitStatusRequest{Status: to})
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "Cancelled -> %s", to)
	}
}

func TestCompletingOpensNoteSession(t *testing.T) {
	h := newHarness(t, model.VisitStatusScheduled)

	result := h.transition(t, &model.ChangeVisitStatusRequest{Status: model.VisitStatusCompleted})

	assert.Equal(t, model.VisitStatusCompleted, result.Visit.Status)
	require.NotNil(t, result.NoteSession)
	assert.Equal(t, "Pat Therapist", result.NoteSession.Prefill.TherapistName)
	assert.Equal(t, model.DisciplinePT, result.NoteSession.Prefill.Discipline)

	note, err := h.notes.GetByVisit(context.Background(), h.visitID)
	require.NoError(t, err)
	require.NotNil(t, note, "first open creates the note record")
}

func TestReturnToTherapistClearsNoteFlagAndEmails(t *testing.T) {
	h := newHarness(t, model.VisitStatusCompleted)
	stored, _ := h.visits.Get(context.Background(), h.visitID)
	stored.HasNoteSaved = true
	require.NoError(t, h.visits.Update(context.Background(), stored))

	result := h.transition(t, &model.ChangeVisitStatusRequest{
		Status: model.VisitStatusPending,
		Reason: "goals section incomplete",
	})

	assert.False(t, result.Visit.HasNoteSaved, "returning for edits reopens the note")
	require.Len(t, h.emailer.sent, 1)
	assert.Equal(t, "return", h.emailer.sent[0].kind)
	assert.Equal(t, "pat@example.com", h.emailer.sent[0].recipient)
	assert.Equal(t, "goals section incomplete", h.emailer.sent[0].reason)
}

func TestPendingToCompletedSkipsNoteSession(t *testing.T) {
	h := newHarness(t, model.VisitStatusPending)

	result := h.transition(t, &model.ChangeVisitStatusRequest{Status: model.VisitStatusCompleted})

	assert.Equal(t, model.VisitStatusCompleted, result.Visit.Status)
	assert.Nil(t, result.NoteSession, "finishing a returned note does not reopen a session")
}

func TestMissedRequiresRecord(t *testing.T) {
	h := newHarness(t, model.VisitStatusScheduled)

	_, err := h.machine.Transition(context.Background(), h.visitID,
		&model.ChangeVisitStatusRequest{Status: model.VisitStatusMissed})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingFields))

	_, err = h.machine.Transition(context.Background(), h.visitID, &model.ChangeVisitStatusRequest{
		Status: model.VisitStatusMissed,
		Missed: &model.MissedVisitRecord{ActionTaken: "called patient"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingFields), "reason is required")
}

func TestMissedRecordsFieldsAndNotifiesMD(t *testing.T) {
	h := newHarness(t, model.VisitStatusScheduled)

	result := h.transition(t, &model.ChangeVisitStatusRequest{
		Status: model.VisitStatusMissed,
		Missed: &model.MissedVisitRecord{
			Reason:      "patient hospitalized",
			ActionTaken: "notified MD office",
			MDNotified:  true,
			NoShow:      false,
		},
	})

	require.NotNil(t, result.Visit.MissedReason)
	assert.Equal(t, "patient hospitalized", *result.Visit.MissedReason)
	assert.True(t, result.Visit.MDNotified)

	require.Len(t, h.emailer.sent, 1)
	assert.Equal(t, "missed", h.emailer.sent[0].kind)
	assert.Equal(t, "md@example.com", h.emailer.sent[0].recipient)
}

func TestMissedWithoutMDFlagSendsNothing(t *testing.T) {
	h := newHarness(t, model.VisitStatusScheduled)

	h.transition(t, &model.ChangeVisitStatusRequest{
		Status: model.VisitStatusMissed,
		Missed: &model.MissedVisitRecord{Reason: "weather", NoShow: true},
	})

	assert.Empty(t, h.emailer.sent)
}

func TestReschedulingMissedClearsRecord(t *testing.T) {
	h := newHarness(t, model.VisitStatusScheduled)

	h.transition(t, &model.ChangeVisitStatusRequest{
		Status: model.VisitStatusMissed,
		Missed: &model.MissedVisitRecord{Reason: "patient ill", MDNotified: true},
	})
	result := h.transition(t, &model.ChangeVisitStatusRequest{Status: model.VisitStatusScheduled})

	assert.Nil(t, result.Visit.MissedReason)
	assert.Nil(t, result.Visit.MissedAction)
	assert.False(t, result.Visit.MDNotified)
	assert.False(t, result.Visit.NoShow)
}

func TestPendingOnlyReachableFromCompleted(t *testing.T) {
	for _, from := range []model.VisitStatus{model.VisitStatusScheduled, model.VisitStatusInProgress} {
		h := newHarness(t, from)

		_, err := h.machine.Transition(context.Background(), h.visitID,
			&model.ChangeVisitStatusRequest{Status: model.VisitStatusPending})
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "%s -> Pending", from)
	}
}

func TestCompletedPendingCompletedRoundTrip(t *testing.T) {
	h := newHarness(t, model.VisitStatusScheduled)

	h.transition(t, &model.ChangeVisitStatusRequest{Status: model.VisitStatusCompleted})
	stored, _ := h.visits.Get(context.Background(), h.visitID)
	stored.HasNoteSaved = true
	require.NoError(t, h.visits.Update(context.Background(), stored))

	returned := h.transition(t, &model.ChangeVisitStatusRequest{Status: model.VisitStatusPending, Reason: "fix goals"})
	assert.False(t, returned.Visit.HasNoteSaved, "return to therapist reopens the note")

	result := h.transition(t, &model.ChangeVisitStatusRequest{Status: model.VisitStatusCompleted})

	assert.Equal(t, model.VisitStatusCompleted, result.Visit.Status)
	assert.True(t, result.Visit.HasNoteSaved, "the round trip must re-mark the note as saved")
}

package scheduler

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapysync/schedule-api/internal/model"
	auditService "github.com/therapysync/schedule-api/internal/service/audit"
	eventService "github.com/therapysync/schedule-api/internal/service/event"
	quotaService "github.com/therapysync/schedule-api/internal/service/quota"
	syncService "github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

// Prometheus collectors register globally, so the test binary shares one
// metrics instance.
var testMetrics = metrics.NewMetrics("test", "scheduler")

type fakeVisitRepo struct {
	visits    map[uuid.UUID]*model.Visit
	listFails int
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: make(map[uuid.UUID]*model.Visit)}
}

func (f *fakeVisitRepo) Create(ctx context.Context, v *model.Visit) error {
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	v.UpdatedAt = time.Now()
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
	if _, ok := f.visits[v.ID]; !ok {
		return errors.NotFound("visit", nil)
	}
	v.UpdatedAt = time.Now()
	clone := *v
	f.visits[v.ID] = &clone
	return nil
}

func (f *fakeVisitRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.visits[id]; !ok {
		return errors.NotFound("visit", nil)
	}
	delete(f.visits, id)
	return nil
}

func (f *fakeVisitRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	v, ok := f.visits[id]
	if !ok {
		return errors.NotFound("visit", nil)
	}
	v.IsActive = false
	return nil
}

func (f *fakeVisitRepo) ListByCertPeriod(ctx context.Context, certPeriodID uuid.UUID, filters *model.VisitFilters) ([]*model.Visit, error) {
	if f.listFails > 0 {
		f.listFails--
		return nil, assertableTransportErr
	}
	var out []*model.Visit
	for _, v := range f.visits {
		if v.CertificationPeriodID != certPeriodID {
			continue
		}
		if (filters == nil || !filters.IncludeInactive) && !v.IsActive {
			continue
		}
		if filters != nil && filters.Status != "" && v.Status != filters.Status {
			continue
		}
		clone := *v
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitDate.Before(out[j].VisitDate) })
	return out, nil
}

func (f *fakeVisitRepo) CheckTimeSlotConflict(ctx context.Context, staffID uuid.UUID, visitDate time.Time, scheduledTime string, excludeID *uuid.UUID) (bool, error) {
	for _, v := range f.visits {
		if excludeID != nil && v.ID == *excludeID {
			continue
		}
		if !v.IsActive || v.Status == model.VisitStatusCancelled || v.Status == model.VisitStatusMissed {
			continue
		}
		if v.StaffID == staffID && v.VisitDate.Equal(visitDate) &&
			v.ScheduledTime != nil && *v.ScheduledTime == scheduledTime {
			return true, nil
		}
	}
	return false, nil
}

var assertableTransportErr = errors.Internal(nil)

type fakeStaffRepo struct {
	staff map[uuid.UUID]*model.Staff
}

func (f *fakeStaffRepo) add(role string) uuid.UUID {
	s := &model.Staff{Role: role, Name: role + " Therapist", IsActive: true}
	s.ID = uuid.New()
	f.staff[s.ID] = s
	return s.ID
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

type fakeCertRepo struct {
	periods map[uuid.UUID]*model.CertificationPeriod
}

func (f *fakeCertRepo) Get(ctx context.Context, id uuid.UUID) (*model.CertificationPeriod, error) {
	p, ok := f.periods[id]
	if !ok {
		return nil, errors.NotFound("certification period", nil)
	}
	return p, nil
}

func (f *fakeCertRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.CertificationPeriod, error) {
	var out []*model.CertificationPeriod
	for _, p := range f.periods {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCertRepo) UpdateActiveFlags(ctx context.Context, today time.Time) (int64, error) {
	return 0, nil
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.Patient
}

func (f *fakePatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", nil)
	}
	return p, nil
}

func (f *fakePatientRepo) UpdateAuthorizations(ctx context.Context, id uuid.UUID, approvedVisits, frequencySpecs []byte) error {
	p, ok := f.patients[id]
	if !ok {
		return errors.NotFound("patient", nil)
	}
	p.ApprovedVisits = approvedVisits
	p.FrequencySpecs = frequencySpecs
	return nil
}

type fakeLimitRepo struct {
	limits map[uuid.UUID]model.WeeklyLimit
}

func (f *fakeLimitRepo) GetForPeriod(ctx context.Context, certPeriodID uuid.UUID) (model.WeeklyLimit, error) {
	l, ok := f.limits[certPeriodID]
	if !ok {
		return make(model.WeeklyLimit), nil
	}
	return l.Clone(), nil
}

func (f *fakeLimitRepo) ReplaceForPeriod(ctx context.Context, certPeriodID uuid.UUID, limits model.WeeklyLimit) error {
	f.limits[certPeriodID] = limits.Clone()
	return nil
}

func (f *fakeLimitRepo) SetCap(ctx context.Context, certPeriodID uuid.UUID, d model.Discipline, week, cap int) error {
	l, ok := f.limits[certPeriodID]
	if !ok {
		l = make(model.WeeklyLimit)
		f.limits[certPeriodID] = l
	}
	l.Set(d, week, cap)
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

func (f *fakeOutboxRepo) countByType(eventType string) int {
	n := 0
	for _, e := range f.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
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

type harness struct {
	svc          *Service
	visits       *fakeVisitRepo
	staff        *fakeStaffRepo
	certs        *fakeCertRepo
	patients     *fakePatientRepo
	outbox       *fakeOutboxRepo
	audits       *fakeAuditRepo
	patientID    uuid.UUID
	certPeriodID uuid.UUID
	ptStaffID    uuid.UUID
	otStaffID    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	visits := newFakeVisitRepo()
	staff := &fakeStaffRepo{staff: make(map[uuid.UUID]*model.Staff)}
	certs := &fakeCertRepo{periods: make(map[uuid.UUID]*model.CertificationPeriod)}
	patients := &fakePatientRepo{patients: make(map[uuid.UUID]*model.Patient)}
	limits := &fakeLimitRepo{limits: make(map[uuid.UUID]model.WeeklyLimit)}
	outbox := &fakeOutboxRepo{}
	audits := &fakeAuditRepo{}

	patientID := uuid.New()
	patient := &model.Patient{
		Name:           "Test Patient",
		FrequencySpecs: json.RawMessage(`{"PT":"2w1"}`),
	}
	patient.ID = patientID
	patients.patients[patientID] = patient

	period := &model.CertificationPeriod{
		PatientID: patientID,
		StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	period.ID = uuid.New()
	certs.periods[period.ID] = period

	log := logger.NewLogger(nil)
	auditor := auditService.NewService(audits)
	events := eventService.NewService(outbox)
	broadcaster := syncService.NewBroadcaster(visits, limits, events, testMetrics, log)
	quota := quotaService.NewCalculator(certs, patients, limits, visits, staff, broadcaster, testMetrics, log)
	svc := NewService(visits, staff, certs, quota, broadcaster, auditor, testMetrics, log)

	return &harness{
		svc:          svc,
		visits:       visits,
		staff:        staff,
		certs:        certs,
		patients:     patients,
		outbox:       outbox,
		audits:       audits,
		patientID:    patientID,
		certPeriodID: period.ID,
		ptStaffID:    staff.add("PT"),
		otStaffID:    staff.add("OT"),
	}
}

func (h *harness) intent(staffID uuid.UUID, date time.Time, slot string) *model.VisitIntent {
	var scheduled *string
	if slot != "" {
		scheduled = &slot
	}
	return &model.VisitIntent{
		PatientID:             h.patientID,
		StaffID:               staffID,
		CertificationPeriodID: h.certPeriodID,
		VisitDate:             date,
		ScheduledTime:         scheduled,
		VisitType:             "Treatment",
	}
}

func visitDay(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestValidateAndSaveMissingFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ValidateAndSave(context.Background(), &model.VisitIntent{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingFields))
	assert.Empty(t, h.outbox.events, "rejected intents never publish")
}

func TestValidateAndSaveOutsideCertPeriod(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ValidateAndSave(context.Background(),
		h.intent(h.ptStaffID, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOutsideCertPeriod))
}

func TestValidateAndSaveTimeSlotConflict(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)

	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeSlotConflict))

	// Different slot on the same day is fine.
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "10:00"))
	assert.NoError(t, err)
}

func TestValidateAndSaveWeeklyQuota(t *testing.T) {
	h := newHarness(t)

	// PT frequency 2w1 allows two visits in the week of Jan 6.
	_, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(9), "09:00"))
	require.NoError(t, err)

	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(10), "09:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWeeklyQuotaExceeded))

	// OT quota is independent of the exhausted PT quota.
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.otStaffID, visitDay(10), "09:00"))
	assert.NoError(t, err)

	// The next week has its own budget.
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(14), "09:00"))
	assert.NoError(t, err)
}

func TestCancelledVisitReleasesQuota(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(9), "09:00"))
	require.NoError(t, err)

	stored, err := h.visits.Get(context.Background(), first.ID)
	require.NoError(t, err)
	stored.Status = model.VisitStatusCancelled
	require.NoError(t, h.visits.Update(context.Background(), stored))

	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(10), "09:00"))
	assert.NoError(t, err, "cancelled visits do not consume quota")
}

func TestUpdateWithinSameWeekSkipsQuota(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(9), "09:00"))
	require.NoError(t, err)

	// Quota is full, but moving a visit within its week is allowed.
	edit := h.intent(h.ptStaffID, visitDay(8), "11:00")
	edit.ID = &first.ID
	updated, err := h.svc.ValidateAndSave(context.Background(), edit)
	require.NoError(t, err)
	assert.Equal(t, visitDay(8), updated.VisitDate)
}

func TestUpdateIntoFullWeekRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)
	_, err = h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(9), "09:00"))
	require.NoError(t, err)

	next, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(14), "09:00"))
	require.NoError(t, err)

	// Moving the next-week visit back into the full week re-runs the gate.
	edit := h.intent(h.ptStaffID, visitDay(10), "09:00")
	edit.ID = &next.ID
	_, err = h.svc.ValidateAndSave(context.Background(), edit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWeeklyQuotaExceeded))
}

func TestDeleteWithSavedNoteDeactivates(t *testing.T) {
	h := newHarness(t)

	visit, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)

	stored, _ := h.visits.Get(context.Background(), visit.ID)
	stored.HasNoteSaved = true
	require.NoError(t, h.visits.Update(context.Background(), stored))

	err = h.svc.Delete(context.Background(), visit.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeactivatedInsteadOfDeleted))

	// Still stored, but hidden from default listings.
	active, err := h.svc.ListVisits(context.Background(), h.certPeriodID, nil)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := h.svc.ListVisits(context.Background(), h.certPeriodID, &model.VisitFilters{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestDeleteWithoutNoteRemoves(t *testing.T) {
	h := newHarness(t)

	visit, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(context.Background(), visit.ID))

	_, err = h.svc.GetVisit(context.Background(), visit.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestEveryMutationPublishesOneSnapshot(t *testing.T) {
	h := newHarness(t)

	visit, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.outbox.countByType(model.EventVisitsUpdated))

	edit := h.intent(h.ptStaffID, visitDay(8), "09:00")
	edit.ID = &visit.ID
	_, err = h.svc.ValidateAndSave(context.Background(), edit)
	require.NoError(t, err)
	assert.Equal(t, 2, h.outbox.countByType(model.EventVisitsUpdated))

	require.NoError(t, h.svc.Delete(context.Background(), visit.ID))
	assert.Equal(t, 3, h.outbox.countByType(model.EventVisitsUpdated))
}

func TestListVisitsRetriesOnceThenTransportFailure(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ValidateAndSave(context.Background(), h.intent(h.ptStaffID, visitDay(7), "09:00"))
	require.NoError(t, err)

	h.visits.listFails = 1
	visits, err := h.svc.ListVisits(context.Background(), h.certPeriodID, nil)
	require.NoError(t, err, "single failure is retried")
	assert.Len(t, visits, 1)

	h.visits.listFails = 2
	_, err = h.svc.ListVisits(context.Background(), h.certPeriodID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransportFailure))
}

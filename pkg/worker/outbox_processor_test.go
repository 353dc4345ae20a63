package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

// Prometheus collectors register globally, so the test binary shares one
// metrics instance.
var testMetrics = metrics.NewMetrics("test", "worker")

type fakeOutboxRepo struct {
	pending  []*model.OutboxEvent
	statuses map[uuid.UUID]string
	errs     map[uuid.UUID]string
	fail     bool
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{
		statuses: make(map[uuid.UUID]string),
		errs:     make(map[uuid.UUID]string),
	}
}

func (f *fakeOutboxRepo) add(eventType string) *model.OutboxEvent {
	e := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   json.RawMessage(`{}`),
		Status:    string(model.OutboxStatusPending),
	}
	f.pending = append(f.pending, e)
	return e
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	f.pending = append(f.pending, e)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if f.fail {
		return nil, errors.Internal(nil)
	}
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string, processedAt *time.Time) error {
	f.statuses[id] = status
	if errorMessage != nil {
		f.errs[id] = *errorMessage
	}
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	published []string
	failures  int
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	if f.failures > 0 {
		f.failures--
		return errors.Internal(nil)
	}
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

func newProcessor(repo *fakeOutboxRepo, broker *fakeBroker) *OutboxProcessor {
	return NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(nil), testMetrics)
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	repo := newFakeOutboxRepo()
	visits := repo.add(model.EventVisitsUpdated)
	limits := repo.add(model.EventWeeklyLimitsUpdated)
	broker := &fakeBroker{}

	err := newProcessor(repo, broker).processEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{model.EventVisitsUpdated, model.EventWeeklyLimitsUpdated}, broker.published)
	assert.Equal(t, string(model.OutboxStatusProcessed), repo.statuses[visits.ID])
	assert.Equal(t, string(model.OutboxStatusProcessed), repo.statuses[limits.ID])
}

func TestProcessEventRecoversAfterOneBrokerFailure(t *testing.T) {
	repo := newFakeOutboxRepo()
	event := repo.add(model.EventVisitsUpdated)
	broker := &fakeBroker{failures: 1}

	err := newProcessor(repo, broker).processEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{model.EventVisitsUpdated}, broker.published)
	assert.Equal(t, string(model.OutboxStatusProcessed), repo.statuses[event.ID])
}

func TestProcessEventMarksFailedWhenRetriesExhausted(t *testing.T) {
	repo := newFakeOutboxRepo()
	event := repo.add(model.EventVisitsUpdated)
	broker := &fakeBroker{failures: 2}

	err := newProcessor(repo, broker).processEvents(context.Background())
	require.NoError(t, err, "a failed event is recorded, not bubbled up")

	assert.Empty(t, broker.published)
	assert.Equal(t, string(model.OutboxStatusFailed), repo.statuses[event.ID])
	assert.NotEmpty(t, repo.errs[event.ID])
}

func TestProcessEventsSurfacesRepoError(t *testing.T) {
	repo := newFakeOutboxRepo()
	repo.fail = true

	err := newProcessor(repo, &fakeBroker{}).processEvents(context.Background())
	assert.Error(t, err)
}

package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/therapysync/schedule-api/pkg/errors"
)

func newBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(Settings{
		Name:        "test",
		MaxRequests: threshold,
		Interval:    10 * time.Second,
		Timeout:     timeout,
	})
}

func TestClosedBreakerPassesCallsThrough(t *testing.T) {
	cb := newBreaker(3, time.Second)

	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	failure := apperrors.Internal(nil)
	err = cb.Execute(func() error { calls++; return failure })
	assert.Equal(t, failure, err, "a single failure is returned, not swallowed")
	assert.Equal(t, 2, calls)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return apperrors.Internal(nil) })
	}

	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.Zero(t, calls, "an open breaker must not invoke the call")
}

func TestProbeAfterTimeoutClosesOnSuccess(t *testing.T) {
	cb := newBreaker(1, time.Millisecond)

	_ = cb.Execute(func() error { return apperrors.Internal(nil) })
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.NoError(t, cb.Execute(func() error { return nil }), "breaker stays closed after a good probe")
}

func TestProbeFailureReopensImmediately(t *testing.T) {
	cb := newBreaker(3, time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return apperrors.Internal(nil) })
	}
	time.Sleep(5 * time.Millisecond)

	_ = cb.Execute(func() error { return apperrors.Internal(nil) })

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen, "one failed probe re-opens the breaker")
}

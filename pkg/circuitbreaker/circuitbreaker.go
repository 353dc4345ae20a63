// Package circuitbreaker provides the failure gate the redis broker wraps
// around publishes, so a struggling broker fails fast instead of stalling
// the outbox drain behind connection timeouts.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Settings configures a breaker. MaxRequests is the consecutive-failure
// threshold that trips it, Interval is how long a quiet period must last
// before old failures are forgotten, and Timeout is how long an open
// breaker waits before letting a probe call through.
type Settings struct {
	Name        string
	MaxRequests int
	Interval    time.Duration
	Timeout     time.Duration
}

type CircuitBreaker struct {
	name      string
	threshold int
	interval  time.Duration
	timeout   time.Duration

	mu          sync.Mutex
	state       state
	failures    int
	lastFailure time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		name:      settings.Name,
		threshold: settings.MaxRequests,
		interval:  settings.Interval,
		timeout:   settings.Timeout,
		state:     stateClosed,
	}
}

// Execute runs fn unless the breaker is open. The first call after the open
// timeout elapses goes through as a probe; its outcome decides whether the
// breaker closes again.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if time.Since(cb.lastFailure) <= cb.timeout {
			return ErrOpen
		}
		cb.state = stateHalfOpen
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if cb.interval > 0 && time.Since(cb.lastFailure) > cb.interval {
			cb.failures = 0
		}
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.threshold || cb.state == stateHalfOpen {
			cb.state = stateOpen
		}
		return
	}

	cb.state = stateClosed
	cb.failures = 0
}

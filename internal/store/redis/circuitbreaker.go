package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = errors.New("redis circuit breaker open")

// breakerState models the circuit breaker's three states.
type breakerState int

const (
	breakerClosed   breakerState = iota // normal operation
	breakerOpen                         // tripped, calls rejected
	breakerHalfOpen                     // probing with a single call
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after maxFailures consecutive failures, rejecting
// calls for resetTimeout, then allows one probe through. A successful probe
// closes the breaker; a failed one reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange is an optional transition hook for metrics.
	OnStateChange func(from, to breakerState)
}

// NewCircuitBreaker creates a breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        breakerClosed,
	}
}

// Execute runs fn through the breaker, returning ErrCircuitOpen while
// tripped.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == breakerOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(breakerHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == breakerHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(breakerOpen)
		}
		return err
	}
	if cb.state == breakerHalfOpen {
		cb.transition(breakerClosed)
	}
	cb.failures = 0
	return nil
}

func (cb *CircuitBreaker) transition(to breakerState) {
	from := cb.state
	cb.state = to
	if to == breakerClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

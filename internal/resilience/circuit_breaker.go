// Package resilience provides the failure-tracking primitives shared by the
// provider fallback chains: a per-provider circuit breaker and network error
// classification helpers.
package resilience

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Provider is skipped until the reset timeout elapses
	StateHalfOpen                     // One trial request is allowed through
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker tracks consecutive hard failures of a single provider.
// The fallback chain consults Allow before attempting a provider; an open
// breaker makes the provider look unavailable, exactly like a missing
// credential would.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	lastFailTime time.Time
}

// NewCircuitBreaker creates a breaker that opens after maxFailures consecutive
// failures and allows a trial request after resetTimeout.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Allow reports whether a request to this provider should be attempted.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.lastFailTime) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	}
	return false
}

// RecordResult feeds the outcome of an attempted request back into the breaker.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.state = StateClosed
		cb.failureCount = 0
		return
	}

	cb.lastFailTime = time.Now()
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		// The trial request failed; back to open.
		cb.state = StateOpen
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the provider this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

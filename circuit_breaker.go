package oren

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState string

const (
	// CircuitClosed means requests pass through normally.
	CircuitClosed CircuitState = "closed"

	// CircuitOpen means requests fail fast after too many failures.
	CircuitOpen CircuitState = "open"

	// CircuitHalfOpen means one trial request is allowed to test recovery.
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreaker stops the client from hammering a directory that keeps failing.
// After maxFailures consecutive failures it opens and rejects calls with
// ErrCircuitOpen; after resetTimeout it lets one trial call through.
type CircuitBreaker struct {
	address      string
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	lastFailure  time.Time
	state        CircuitState
	mu           sync.Mutex
}

// NewCircuitBreaker creates the circuit breaker of one directory address.
// maxFailures 0 never opens.
func NewCircuitBreaker(address string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		address:      address,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
// Canceled calls are not held against the directory.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	if err != nil && isCanceled(err) {
		return err
	}
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			Debug("Directory %s: trying again after %v", cb.address, cb.resetTimeout)
			return nil
		}
		return fmt.Errorf("%w: directory %s failed %v ago", ErrCircuitOpen, cb.address,
			time.Since(cb.lastFailure).Round(time.Millisecond))
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == CircuitHalfOpen {
			Info("Directory %s recovered", cb.address)
		}
		cb.state = CircuitClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()
	switch cb.state {
	case CircuitClosed:
		if cb.maxFailures > 0 && cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			Warning("Directory %s failed %d times in a row, skipping it for %v", cb.address, cb.failures, cb.resetTimeout)
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		Warning("Directory %s still failing", cb.address)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
}

func (cb *CircuitBreaker) String() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fmt.Sprintf("CircuitBreaker{%s state=%s failures=%d/%d}", cb.address, cb.state, cb.failures, cb.maxFailures)
}

// breakerSet holds one circuit breaker per directory address.
type breakerSet struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	breakers     map[string]*CircuitBreaker
}

func newBreakerSet(maxFailures int, resetTimeout time.Duration) *breakerSet {
	return &breakerSet{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

func (s *breakerSet) get(address string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[address]
	if !ok {
		cb = NewCircuitBreaker(address, s.maxFailures, s.resetTimeout)
		s.breakers[address] = cb
	}
	return cb
}

// states returns a copy of every breaker state keyed by address.
func (s *breakerSet) states() map[string]CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]CircuitState, len(s.breakers))
	for addr, cb := range s.breakers {
		out[addr] = cb.State()
	}
	return out
}

package oren

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestNewCircuitBreaker tests circuit breaker initialization
func TestNewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 3, 30*time.Second)

	if cb.State() != CircuitClosed {
		t.Errorf("Initial state = %v, want %v", cb.State(), CircuitClosed)
	}
	if cb.Failures() != 0 {
		t.Errorf("Initial failures = %d, want 0", cb.Failures())
	}
}

// TestCircuitBreakerOpensAndRejects tests transition from closed to open state
func TestCircuitBreakerOpensAndRejects(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 3, time.Hour)
	testErr := errors.New("test error")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return testErr }); err != testErr {
			t.Errorf("Execute() = %v, want %v", err, testErr)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("State = %v after 3 failures, want %v", cb.State(), CircuitOpen)
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit = %v, want %v", err, ErrCircuitOpen)
	}
	if called {
		t.Error("open circuit ran the function")
	}
}

// TestCircuitBreakerHalfOpen tests recovery through the half-open state
func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 1, 10*time.Millisecond)
	cb.Execute(func() error { return errors.New("fail") })
	if cb.State() != CircuitOpen {
		t.Fatalf("State = %v, want %v", cb.State(), CircuitOpen)
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Execute(func() error { return errors.New("still failing") }); err == nil {
		t.Fatal("half-open trial should return its error")
	}
	if cb.State() != CircuitOpen {
		t.Errorf("State after failed trial = %v, want %v", cb.State(), CircuitOpen)
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open trial error = %v", err)
	}
	if cb.State() != CircuitClosed || cb.Failures() != 0 {
		t.Errorf("after successful trial: %v", cb)
	}
}

// TestCircuitBreakerIgnoresCancellation tests that canceled calls are not failures
func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 1, time.Hour)

	err := cb.Execute(func() error { return fmt.Errorf("lookup: %w", context.Canceled) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() = %v", err)
	}
	if cb.State() != CircuitClosed || cb.Failures() != 0 {
		t.Errorf("canceled call was recorded: %v", cb)
	}
}

// TestCircuitBreakerSuccessResetsFailures tests failure count reset
func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 3, time.Hour)
	fail := func() error { return errors.New("fail") }

	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(func() error { return nil })
	cb.Execute(fail)
	cb.Execute(fail)

	if cb.State() != CircuitClosed {
		t.Errorf("State = %v, want %v", cb.State(), CircuitClosed)
	}
	if cb.Failures() != 2 {
		t.Errorf("Failures = %d, want 2", cb.Failures())
	}
}

// TestCircuitBreakerReset tests manual reset
func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 1, time.Hour)
	cb.Execute(func() error { return errors.New("fail") })
	cb.Reset()

	if cb.State() != CircuitClosed || cb.Failures() != 0 {
		t.Errorf("after Reset: %v", cb)
	}
	if !strings.Contains(cb.String(), "state=closed") {
		t.Errorf("String() = %q", cb.String())
	}
}

// TestCircuitBreakerZeroFailures tests that maxFailures 0 never opens
func TestCircuitBreakerZeroFailures(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 0, time.Hour)
	for i := 0; i < 10; i++ {
		cb.Execute(func() error { return errors.New("fail") })
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State = %v, want %v", cb.State(), CircuitClosed)
	}
}

// TestCircuitBreakerConcurrency tests concurrent Execute calls
func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker("127.0.0.1:7474", 1000, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				cb.Execute(func() error {
					if (i+j)%2 == 0 {
						return errors.New("fail")
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	if cb.State() != CircuitClosed {
		t.Errorf("State = %v, want %v", cb.State(), CircuitClosed)
	}
}

// TestBreakerSet tests per-address breakers
func TestBreakerSet(t *testing.T) {
	set := newBreakerSet(1, time.Hour)

	a := set.get("10.0.0.1:7474")
	if set.get("10.0.0.1:7474") != a {
		t.Error("get returned a different breaker for the same address")
	}
	a.Execute(func() error { return errors.New("fail") })
	set.get("10.0.0.2:7474")

	states := set.states()
	if states["10.0.0.1:7474"] != CircuitOpen || states["10.0.0.2:7474"] != CircuitClosed {
		t.Errorf("states = %v", states)
	}
}

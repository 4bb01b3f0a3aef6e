package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("tts", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("Breaker rejected request %d while closed", i)
		}
		cb.RecordResult(false)
	}

	if cb.State() != StateOpen {
		t.Errorf("Expected open state after 3 failures, got %v", cb.State())
	}
	if cb.Allow() {
		t.Error("Open breaker allowed a request before the reset timeout")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("tts", 3, time.Minute)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(true)
	cb.RecordResult(false)
	cb.RecordResult(false)

	if cb.State() != StateClosed {
		t.Errorf("Expected closed state, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	cb := NewCircuitBreaker("tts", 1, 10*time.Millisecond)

	cb.RecordResult(false)
	if cb.State() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("Breaker did not allow a trial request after the reset timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected half-open state, got %v", cb.State())
	}

	// Failed trial reopens the circuit.
	cb.RecordResult(false)
	if cb.State() != StateOpen {
		t.Errorf("Expected open state after failed trial, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker("tts", 1, 10*time.Millisecond)

	cb.RecordResult(false)
	time.Sleep(20 * time.Millisecond)
	cb.Allow()
	cb.RecordResult(true)

	if cb.State() != StateClosed {
		t.Errorf("Expected closed state after successful trial, got %v", cb.State())
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp 127.0.0.1:1: connection refused"), true},
		{fmt.Errorf("read: %w", errors.New("i/o timeout")), true},
		{errors.New("lookup api.example.com: no such host"), true},
		{errors.New("status 400: invalid voice id"), false},
	}

	for _, tt := range tests {
		if got := IsNetworkError(tt.err); got != tt.want {
			t.Errorf("IsNetworkError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

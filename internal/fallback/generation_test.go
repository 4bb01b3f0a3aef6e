package fallback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/voxbridge/relay-gateway/internal/llm"
)

type scriptedGenerator struct {
	name      string
	available bool
	reply     string
	err       error

	mu    sync.Mutex
	calls int
}

func (g *scriptedGenerator) Name() string    { return g.name }
func (g *scriptedGenerator) Available() bool { return g.available }

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *scriptedGenerator) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Text: g.reply, Provider: g.name}, nil
}

func newTestGeneration(providers ...llm.Provider) *Generation {
	return NewGeneration(providers, zerolog.Nop())
}

func TestComplete_FirstProviderWins(t *testing.T) {
	primary := &scriptedGenerator{name: "primary", available: true, reply: "hi there"}
	secondary := &scriptedGenerator{name: "secondary", available: true, reply: "unused"}
	gen := newTestGeneration(primary, secondary)

	resp, outcome, err := gen.Complete(context.Background(), "c1", llm.Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "hi there" {
		t.Errorf("Expected primary's reply, got '%s'", resp.Text)
	}
	if outcome.FellBack || outcome.Provider != "primary" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
	if secondary.Calls() != 0 {
		t.Error("Secondary must not be called when the primary succeeds")
	}
}

func TestComplete_RetryableFailureFallsThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", &llm.ProviderError{Provider: "primary", Class: llm.ClassNetwork, Message: "connection refused"}},
		{"unauthorized", &llm.ProviderError{Provider: "primary", Class: llm.ClassUnauthorized, Status: 401}},
		{"rate limited", &llm.ProviderError{Provider: "primary", Class: llm.ClassRateLimited, Status: 429}},
		{"server error", &llm.ProviderError{Provider: "primary", Class: llm.ClassServer, Status: 503}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &scriptedGenerator{name: "primary", available: true, err: tt.err}
			secondary := &scriptedGenerator{name: "secondary", available: true, reply: "fallback reply"}
			gen := newTestGeneration(primary, secondary)

			resp, outcome, err := gen.Complete(context.Background(), "c1", llm.Request{Prompt: "hello"})
			if err != nil {
				t.Fatalf("Complete failed: %v", err)
			}
			if resp.Text != "fallback reply" {
				t.Errorf("Expected secondary's reply, got '%s'", resp.Text)
			}
			if !outcome.FellBack {
				t.Error("FellBack should be true")
			}
			if len(outcome.Failures) != 1 || outcome.Failures[0].Provider != "primary" {
				t.Errorf("Expected one accumulated failure from 'primary', got %v", outcome.Failures)
			}
		})
	}
}

func TestComplete_FatalFailureAbortsChain(t *testing.T) {
	fatal := &llm.ProviderError{Provider: "primary", Class: llm.ClassBadRequest, Status: 400, Message: "prompt too long"}
	primary := &scriptedGenerator{name: "primary", available: true, err: fatal}
	secondary := &scriptedGenerator{name: "secondary", available: true, reply: "never"}
	gen := newTestGeneration(primary, secondary)

	_, _, err := gen.Complete(context.Background(), "c1", llm.Request{Prompt: "hello"})

	var pe *llm.ProviderError
	if !errors.As(err, &pe) || pe.Class != llm.ClassBadRequest {
		t.Fatalf("Expected the fatal error to surface, got %v", err)
	}
	if secondary.Calls() != 0 {
		t.Error("A fatal failure must abort the chain before the next candidate")
	}
}

func TestComplete_UnconfiguredProviderIsSkipped(t *testing.T) {
	primary := &scriptedGenerator{name: "primary", available: false}
	secondary := &scriptedGenerator{name: "secondary", available: true, reply: "served"}
	gen := newTestGeneration(primary, secondary)

	resp, outcome, err := gen.Complete(context.Background(), "c1", llm.Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "served" {
		t.Errorf("Expected secondary's reply, got '%s'", resp.Text)
	}
	if primary.Calls() != 0 {
		t.Error("Unconfigured provider must not be called")
	}
	// The skip is recorded for observability.
	if len(outcome.Failures) != 1 {
		t.Errorf("Expected the skip to be recorded, got %v", outcome.Failures)
	}
}

func TestComplete_ExhaustionNamesEveryFailure(t *testing.T) {
	primary := &scriptedGenerator{name: "primary", available: true, err: &llm.ProviderError{Provider: "primary", Class: llm.ClassServer, Status: 500}}
	secondary := &scriptedGenerator{name: "secondary", available: true, err: &llm.ProviderError{Provider: "secondary", Class: llm.ClassNetwork}}
	gen := newTestGeneration(primary, secondary)

	_, outcome, err := gen.Complete(context.Background(), "c1", llm.Request{Prompt: "hello"})

	var exhausted *GenExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected GenExhaustedError, got %v", err)
	}
	if len(exhausted.Failures) != 2 {
		t.Fatalf("Expected 2 failures, got %v", exhausted.Failures)
	}
	if outcome.Provider != "" {
		t.Errorf("No provider should be reported, got '%s'", outcome.Provider)
	}
}

func TestComplete_CanceledContext(t *testing.T) {
	primary := &scriptedGenerator{name: "primary", available: true, reply: "hi"}
	gen := newTestGeneration(primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := gen.Complete(ctx, "c1", llm.Request{Prompt: "hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if primary.Calls() != 0 {
		t.Error("No provider should be called after cancellation")
	}
}

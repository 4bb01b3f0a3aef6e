package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxbridge/relay-gateway/internal/llm"
	"github.com/voxbridge/relay-gateway/internal/observability"
)

// GenOutcome reports which generation provider served a request and the
// failures accumulated before it.
type GenOutcome struct {
	Provider string
	FellBack bool
	Failures []Attempt
}

// GenExhaustedError reports that every generation candidate failed or was
// unavailable.
type GenExhaustedError struct {
	Failures []Attempt
}

func (e *GenExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "no viable generation provider in chain"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, a := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "all generation providers failed: " + strings.Join(parts, "; ")
}

// Generation walks a fixed generation provider chain for one-shot calls.
// Retryable failures move to the next candidate; a fatal (bad request)
// failure aborts the whole chain, since the same input would fail anywhere.
type Generation struct {
	chain  []llm.Provider
	logger zerolog.Logger
}

// NewGeneration creates the orchestrator over an ordered provider chain.
func NewGeneration(chain []llm.Provider, logger zerolog.Logger) *Generation {
	return &Generation{chain: chain, logger: logger}
}

// Chain returns the configured provider names in priority order.
func (g *Generation) Chain() []string {
	names := make([]string, 0, len(g.chain))
	for _, p := range g.chain {
		names = append(names, p.Name())
	}
	return names
}

// Viable reports whether any provider in the chain is currently available.
func (g *Generation) Viable() bool {
	for _, p := range g.chain {
		if p.Available() {
			return true
		}
	}
	return false
}

// Complete runs req against the chain and returns the first success. The
// outcome is always returned, also alongside an error, for observability.
func (g *Generation) Complete(ctx context.Context, correlationID string, req llm.Request) (*llm.Response, *GenOutcome, error) {
	logger := g.logger.With().Str("correlation_id", correlationID).Logger()
	outcome := &GenOutcome{}

	for _, p := range g.chain {
		if err := ctx.Err(); err != nil {
			return nil, outcome, err
		}

		if !p.Available() {
			// "Not configured" is retryable by definition: record and move on.
			outcome.Failures = append(outcome.Failures, Attempt{Provider: p.Name(), Err: llm.NotConfigured(p.Name())})
			continue
		}

		start := time.Now()
		resp, err := p.Complete(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			observability.RecordGeneration(p.Name(), "ok", elapsed)
			outcome.Provider = p.Name()
			outcome.FellBack = len(outcome.Failures) > 0
			logger.Info().
				Str("provider", p.Name()).
				Dur("elapsed", elapsed).
				Bool("fell_back", outcome.FellBack).
				Msg("Generation completed")
			return resp, outcome, nil
		}

		observability.RecordGeneration(p.Name(), "error", elapsed)
		observability.RecordProviderError(p.Name(), errorClass(err))
		outcome.Failures = append(outcome.Failures, Attempt{Provider: p.Name(), Err: err})
		logger.Warn().
			Str("provider", p.Name()).
			Dur("elapsed", elapsed).
			Err(redact(err)).
			Msg("Generation provider failed")

		if !llm.IsRetryable(err) {
			// The input itself is unprocessable; trying the next provider
			// would fail identically.
			return nil, outcome, err
		}
	}

	return nil, outcome, &GenExhaustedError{Failures: outcome.Failures}
}

func errorClass(err error) string {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return string(pe.Class)
	}
	return "unclassified"
}

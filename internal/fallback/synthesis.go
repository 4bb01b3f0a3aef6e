// Package fallback implements the provider failover chains: a streaming
// orchestrator for speech synthesis and a one-shot orchestrator for text
// generation. Both walk a fixed priority list decided at startup.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxbridge/relay-gateway/internal/observability"
	"github.com/voxbridge/relay-gateway/internal/resilience"
	"github.com/voxbridge/relay-gateway/internal/synth"
)

// SpeakRequest describes one synthesis request.
type SpeakRequest struct {
	Text          string
	Provider      string   // explicit provider name; set, and not disabled, disables fallback
	Disabled      []string // provider names excluded for this request
	CorrelationID string
}

// Attempt records one provider consulted and why it did not serve.
type Attempt struct {
	Provider string
	Err      error
}

// Outcome reports which provider ultimately served a request and what was
// tried along the way. Returned to the caller and logged, never persisted.
type Outcome struct {
	Provider   string
	FellBack   bool
	Frames     int
	Codec      string
	SampleRate int
	Attempts   []Attempt
}

// FrameSink receives the ordered output of one speak stream. A sink error
// means the client transport is gone: the stream stops silently without
// walking further candidates.
type FrameSink interface {
	Frame(frame synth.Frame, provider string) error
	Switched(from, to, correlationID string) error
}

// ErrClientGone reports that the frame sink rejected a write because the
// client transport closed mid-stream.
var ErrClientGone = errors.New("client transport closed")

// ExhaustedError reports that every candidate in the chain was unavailable
// or failed.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no viable synthesis provider in chain"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "all synthesis providers failed: " + strings.Join(parts, "; ")
}

// Synthesis walks a fixed synthesis provider chain, streaming from the first
// viable candidate and restarting the full text on the next candidate after a
// failure. Sequence numbers continue monotonically across switches so the
// client sees one logical utterance.
type Synthesis struct {
	chain    []synth.Provider
	breakers map[string]*resilience.CircuitBreaker
	logger   zerolog.Logger
}

// NewSynthesis creates the orchestrator over an ordered provider chain.
// Each provider gets its own circuit breaker; an open breaker is skipped the
// same way an unconfigured provider is.
func NewSynthesis(chain []synth.Provider, maxFailures int, resetTimeout time.Duration, logger zerolog.Logger) *Synthesis {
	breakers := make(map[string]*resilience.CircuitBreaker, len(chain))
	for _, p := range chain {
		breakers[p.Name()] = resilience.NewCircuitBreaker(p.Name(), maxFailures, resetTimeout)
	}
	return &Synthesis{chain: chain, breakers: breakers, logger: logger}
}

// Chain returns the configured provider names in priority order.
func (s *Synthesis) Chain() []string {
	names := make([]string, 0, len(s.chain))
	for _, p := range s.chain {
		names = append(names, p.Name())
	}
	return names
}

// Viable reports whether any provider in the chain is currently available.
func (s *Synthesis) Viable() bool {
	for _, p := range s.chain {
		if p.Available() {
			return true
		}
	}
	return false
}

// Speak streams req.Text through the chain into sink. On success the
// returned error is nil and Outcome.Provider names the serving backend. On
// exhaustion the error is an *ExhaustedError; on client disconnect it is
// ErrClientGone; on caller cancellation it is the context error.
func (s *Synthesis) Speak(ctx context.Context, req SpeakRequest, sink FrameSink) (*Outcome, error) {
	logger := s.logger.With().Str("correlation_id", req.CorrelationID).Logger()

	outcome := &Outcome{}
	candidates := s.candidates(req, outcome)
	if len(candidates) == 0 {
		return outcome, &ExhaustedError{Attempts: outcome.Attempts}
	}

	seq := 0
	for i, p := range candidates {
		start := time.Now()
		attemptCtx, cancel := context.WithCancel(ctx)

		frames, errs := p.Stream(attemptCtx, req.Text)

		var streamErr error
		framesFromAttempt := 0
	attempt:
		for frames != nil || errs != nil {
			select {
			case <-ctx.Done():
				cancel()
				drain(frames, errs)
				outcome.Frames = seq
				return outcome, ctx.Err()

			case f, ok := <-frames:
				if !ok {
					frames = nil
					continue
				}
				f.Seq = seq
				if err := sink.Frame(f, p.Name()); err != nil {
					cancel()
					drain(frames, errs)
					logger.Debug().Str("provider", p.Name()).Err(err).
						Msg("Client transport closed mid-stream, aborting synthesis")
					outcome.Frames = seq
					return outcome, ErrClientGone
				}
				seq++
				framesFromAttempt++
				outcome.Codec = f.Codec
				outcome.SampleRate = f.SampleRate
				observability.RecordFrame(p.Name())

			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					streamErr = err
					break attempt
				}
			}
		}
		cancel()

		if streamErr == nil {
			// Clean completion from this provider ends the walk.
			s.breakers[p.Name()].RecordResult(true)
			observability.ObserveSynthesis(p.Name(), time.Since(start))
			outcome.Provider = p.Name()
			outcome.Frames = seq
			outcome.FellBack = i > 0
			logger.Info().
				Str("provider", p.Name()).
				Int("frames", seq).
				Dur("elapsed", time.Since(start)).
				Bool("fell_back", outcome.FellBack).
				Msg("Synthesis stream completed")
			return outcome, nil
		}

		drain(frames, errs)
		s.breakers[p.Name()].RecordResult(false)
		observability.RecordProviderError(p.Name(), "stream")
		outcome.Attempts = append(outcome.Attempts, Attempt{Provider: p.Name(), Err: streamErr})
		logger.Warn().
			Str("provider", p.Name()).
			Int("frames_delivered", framesFromAttempt).
			Dur("elapsed", time.Since(start)).
			Err(redact(streamErr)).
			Msg("Synthesis provider failed")

		if ctx.Err() != nil {
			outcome.Frames = seq
			return outcome, ctx.Err()
		}

		if i+1 < len(candidates) {
			next := candidates[i+1]
			observability.RecordProviderSwitch(p.Name(), next.Name())
			logger.Info().
				Str("from", p.Name()).
				Str("to", next.Name()).
				Msg("Switching synthesis provider")
			if err := sink.Switched(p.Name(), next.Name(), req.CorrelationID); err != nil {
				outcome.Frames = seq
				return outcome, ErrClientGone
			}
		}
	}

	outcome.Frames = seq
	return outcome, &ExhaustedError{Attempts: outcome.Attempts}
}

// candidates computes the providers to try, in order. Pre-skips (disabled,
// unavailable, breaker open) never produce a switched notification; skips
// for unavailability are recorded as attempts so exhaustion errors name them.
func (s *Synthesis) candidates(req SpeakRequest, outcome *Outcome) []synth.Provider {
	disabled := make(map[string]bool, len(req.Disabled))
	for _, name := range req.Disabled {
		disabled[strings.ToLower(name)] = true
	}

	if req.Provider != "" && !disabled[strings.ToLower(req.Provider)] {
		// Explicit selection: exactly one candidate, no fallback.
		name := strings.ToLower(req.Provider)
		for _, p := range s.chain {
			if p.Name() != name {
				continue
			}
			if !p.Available() {
				outcome.Attempts = append(outcome.Attempts, Attempt{
					Provider: p.Name(),
					Err:      errors.New("provider not configured"),
				})
				return nil
			}
			return []synth.Provider{p}
		}
		outcome.Attempts = append(outcome.Attempts, Attempt{
			Provider: name,
			Err:      errors.New("provider not in configured chain"),
		})
		return nil
	}

	var candidates []synth.Provider
	for _, p := range s.chain {
		if disabled[p.Name()] {
			continue
		}
		if !p.Available() {
			outcome.Attempts = append(outcome.Attempts, Attempt{
				Provider: p.Name(),
				Err:      errors.New("provider not configured"),
			})
			continue
		}
		if !s.breakers[p.Name()].Allow() {
			outcome.Attempts = append(outcome.Attempts, Attempt{
				Provider: p.Name(),
				Err:      errors.New("provider circuit open"),
			})
			continue
		}
		candidates = append(candidates, p)
	}
	return candidates
}

// drain empties a finished or cancelled provider stream so its goroutine can
// exit.
func drain(frames <-chan synth.Frame, errs <-chan error) {
	if frames != nil {
		for range frames {
		}
	}
	if errs != nil {
		for range errs {
		}
	}
}

// redact strips anything that might echo credentials out of provider errors
// before they hit the log.
func redact(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{"api_key=", "key=", "Bearer "} {
		if idx := strings.Index(msg, marker); idx >= 0 {
			msg = msg[:idx] + marker + "[redacted]"
			break
		}
	}
	return errors.New(msg)
}

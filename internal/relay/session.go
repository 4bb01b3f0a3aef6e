// Package relay owns the client-facing side of the gateway: the WebSocket
// server and the per-connection session state machine that binds an identity
// and drives speak requests through the fallback chains.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voxbridge/relay-gateway/internal/fallback"
	"github.com/voxbridge/relay-gateway/internal/observability"
	"github.com/voxbridge/relay-gateway/internal/protocol"
	"github.com/voxbridge/relay-gateway/internal/synth"
)

// State is the connection lifecycle position.
type State string

const (
	StateUnbound  State = "unbound"
	StateBound    State = "bound"
	StateSpeaking State = "speaking"
)

// Sender delivers server messages to one client transport. A Send error
// means the transport is gone; the session never retries.
type Sender interface {
	Send(msg protocol.ServerMessage) error
}

// MessageStore is the narrow persistence collaborator surface the relay
// consumes. Failures are logged, never surfaced to the client.
type MessageStore interface {
	TouchSession(ctx context.Context, userID, sessionID string) error
	AppendMessage(ctx context.Context, sessionID, role, text string) error
}

// NopStore discards persistence writes; used when the gateway runs without
// a database and in tests.
type NopStore struct{}

func (NopStore) TouchSession(ctx context.Context, userID, sessionID string) error { return nil }
func (NopStore) AppendMessage(ctx context.Context, sessionID, role, text string) error {
	return nil
}

// Session is one client connection's state machine. All transitions happen
// under mu; the speak stream itself runs in its own goroutine and reports
// back through the state reset in its defer.
type Session struct {
	id      string
	sender  Sender
	synth   *fallback.Synthesis
	replier Replier
	store   MessageStore
	logger  zerolog.Logger

	mu          sync.Mutex
	state       State
	userID      string
	sessionID   string
	cancelSpeak context.CancelFunc
	speakDone   chan struct{}
}

// NewSession creates an unbound session over the given transport.
func NewSession(sender Sender, synthOrch *fallback.Synthesis, replier Replier, store MessageStore, logger zerolog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		sender:  sender,
		synth:   synthOrch,
		replier: replier,
		store:   store,
		logger:  logger.With().Str("connection_id", id).Logger(),
		state:   StateUnbound,
	}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the bound caller and session ids.
func (s *Session) Identity() (userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.sessionID
}

// HandleBind binds the caller identity. Idempotent for a repeated pair;
// a re-bind while speaking is accepted but does not disturb the in-flight
// stream, which keeps the identity captured at speak time.
func (s *Session) HandleBind(ctx context.Context, msg *protocol.ClientMessage) {
	s.mu.Lock()
	s.userID = msg.UserID
	s.sessionID = msg.SessionID
	if s.state == StateUnbound {
		s.state = StateBound
	}
	s.mu.Unlock()

	if err := s.store.TouchSession(ctx, msg.UserID, msg.SessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("Session upsert failed")
	}

	s.logger.Info().
		Str("user_id", msg.UserID).
		Str("session_id", msg.SessionID).
		Msg("Session bound")
	s.send(protocol.NewSessionBound(msg.UserID, msg.SessionID))
}

// HandleSpeak starts one speak stream. Rejected with NOT_BOUND before a
// bind and with ALREADY_SPEAKING while a stream is in flight; a rejection
// never disturbs the current stream.
func (s *Session) HandleSpeak(ctx context.Context, msg *protocol.ClientMessage) {
	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}

	s.mu.Lock()
	switch s.state {
	case StateUnbound:
		s.mu.Unlock()
		observability.RecordSpeak("rejected")
		s.send(protocol.NewError(protocol.CodeNotBound, "bind a session before speaking"))
		return
	case StateSpeaking:
		s.mu.Unlock()
		observability.RecordSpeak("rejected")
		s.send(protocol.NewError(protocol.CodeAlreadySpeaking, "a speak operation is already in flight"))
		return
	}

	speakCtx, cancel := context.WithCancel(ctx)
	s.state = StateSpeaking
	s.cancelSpeak = cancel
	s.speakDone = make(chan struct{})
	sessionID := s.sessionID
	done := s.speakDone
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			if s.state == StateSpeaking {
				s.state = StateBound
			}
			s.cancelSpeak = nil
			s.mu.Unlock()
			close(done)
		}()
		s.runSpeak(speakCtx, msg, sessionID, correlationID)
	}()
}

func (s *Session) runSpeak(ctx context.Context, msg *protocol.ClientMessage, sessionID, correlationID string) {
	logger := s.logger.With().Str("correlation_id", correlationID).Logger()

	if err := s.store.AppendMessage(ctx, sessionID, "user", msg.Text); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist user message")
	}

	reply, err := s.replier.Reply(ctx, correlationID, msg.Text)
	if err != nil {
		if ctx.Err() != nil {
			observability.RecordSpeak("canceled")
			return
		}
		observability.RecordSpeak("generation_failed")
		logger.Error().Err(err).Msg("Text generation failed")
		s.send(protocol.NewError(protocol.CodeInternalError, "text generation failed"))
		return
	}

	if err := s.send(protocol.NewTranscriptDelta(reply, true)); err != nil {
		observability.RecordSpeak("client_gone")
		return
	}

	req := fallback.SpeakRequest{
		Text:          reply,
		Provider:      msg.VoiceProvider,
		Disabled:      msg.TTSDisable,
		CorrelationID: correlationID,
	}
	outcome, err := s.synth.Speak(ctx, req, s)

	switch {
	case err == nil:
		if err := s.send(protocol.NewAudioEnd(outcome.Frames, outcome.Provider, outcome.Codec, outcome.SampleRate, correlationID)); err != nil {
			observability.RecordSpeak("client_gone")
			return
		}
		if err := s.store.AppendMessage(ctx, sessionID, "assistant", reply); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist assistant message")
		}
		if outcome.FellBack {
			observability.RecordSpeak("fallback_ok")
		} else {
			observability.RecordSpeak("ok")
		}

	case errors.Is(err, fallback.ErrClientGone):
		observability.RecordSpeak("client_gone")
		logger.Debug().Msg("Client disconnected mid-stream")

	case errors.Is(err, context.Canceled):
		observability.RecordSpeak("canceled")
		logger.Debug().Msg("Speak canceled")

	default:
		var exhausted *fallback.ExhaustedError
		if errors.As(err, &exhausted) {
			observability.RecordSpeak("exhausted")
			logger.Error().Err(err).Msg("Every synthesis provider failed")
			s.send(protocol.NewError(protocol.CodeTTSError, "speech synthesis is unavailable"))
			return
		}
		observability.RecordSpeak("error")
		logger.Error().Err(err).Msg("Speak failed")
		s.send(protocol.NewError(protocol.CodeInternalError, "speech synthesis failed"))
	}
}

// Frame implements fallback.FrameSink: one ordered audio frame to the client.
func (s *Session) Frame(f synth.Frame, provider string) error {
	return s.sender.Send(protocol.NewAudioFrame(f.Data, f.Seq, f.Codec, f.SampleRate, f.Channels))
}

// Switched implements fallback.FrameSink: announce a mid-stream failover.
func (s *Session) Switched(from, to, correlationID string) error {
	return s.sender.Send(protocol.NewProviderSwitched(from, to, correlationID))
}

// HandlePing answers immediately in any state.
func (s *Session) HandlePing() {
	s.send(protocol.NewPong())
}

// Abort cancels any in-flight speak. Called on transport close; idempotent.
func (s *Session) Abort() {
	s.mu.Lock()
	cancel := s.cancelSpeak
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// send delivers one message, logging transport failures instead of raising.
func (s *Session) send(msg protocol.ServerMessage) error {
	if err := s.sender.Send(msg); err != nil {
		s.logger.Debug().Err(err).Msg("Transport write failed")
		return err
	}
	return nil
}

var _ fallback.FrameSink = (*Session)(nil)

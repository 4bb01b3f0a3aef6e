package relay

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxbridge/relay-gateway/internal/fallback"
	"github.com/voxbridge/relay-gateway/internal/protocol"
	"github.com/voxbridge/relay-gateway/internal/synth"
)

// recordingSender captures outbound messages in order.
type recordingSender struct {
	mu   sync.Mutex
	msgs []protocol.ServerMessage
}

func (r *recordingSender) Send(m protocol.ServerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingSender) snapshot() []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.ServerMessage(nil), r.msgs...)
}

func (r *recordingSender) frames() []*protocol.AudioFrame {
	var out []*protocol.AudioFrame
	for _, m := range r.snapshot() {
		if f, ok := m.(*protocol.AudioFrame); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *recordingSender) errorsByCode(code string) []*protocol.Error {
	var out []*protocol.Error
	for _, m := range r.snapshot() {
		if e, ok := m.(*protocol.Error); ok && e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingSender) audioEnds() []*protocol.AudioEnd {
	var out []*protocol.AudioEnd
	for _, m := range r.snapshot() {
		if e, ok := m.(*protocol.AudioEnd); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingSender) switches() []*protocol.ProviderSwitched {
	var out []*protocol.ProviderSwitched
	for _, m := range r.snapshot() {
		if s, ok := m.(*protocol.ProviderSwitched); ok {
			out = append(out, s)
		}
	}
	return out
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

// unavailableSynth stands in for a real provider with no credentials.
type unavailableSynth struct{ name string }

func (u *unavailableSynth) Name() string    { return u.name }
func (u *unavailableSynth) Available() bool { return false }
func (u *unavailableSynth) Stream(ctx context.Context, text string) (<-chan synth.Frame, <-chan error) {
	frames := make(chan synth.Frame)
	errs := make(chan error, 1)
	close(frames)
	close(errs)
	return frames, errs
}

func newTestSession(providers ...synth.Provider) (*Session, *recordingSender) {
	sender := &recordingSender{}
	orch := fallback.NewSynthesis(providers, 3, time.Minute, zerolog.Nop())
	session := NewSession(sender, orch, PassthroughReplier{}, NopStore{}, zerolog.Nop())
	return session, sender
}

func bindMsg(userID, sessionID string) *protocol.ClientMessage {
	return &protocol.ClientMessage{Type: protocol.TypeSessionBind, UserID: userID, SessionID: sessionID}
}

func speakMsg(text string) *protocol.ClientMessage {
	return &protocol.ClientMessage{Type: protocol.TypeAssistantSpeak, Text: text}
}

func TestSpeakBeforeBindIsRejected(t *testing.T) {
	session, sender := newTestSession(&synth.Mock{})

	session.HandleSpeak(context.Background(), speakMsg("hello"))

	if errs := sender.errorsByCode(protocol.CodeNotBound); len(errs) != 1 {
		t.Fatalf("Expected one NOT_BOUND error, got %d", len(errs))
	}
	if frames := sender.frames(); len(frames) != 0 {
		t.Errorf("Expected no frames before bind, got %d", len(frames))
	}
	if session.State() != StateUnbound {
		t.Errorf("Expected unbound state, got %s", session.State())
	}
}

func TestBindEchoesIdentity(t *testing.T) {
	session, sender := newTestSession(&synth.Mock{})

	session.HandleBind(context.Background(), bindMsg("u1", "s1"))

	if session.State() != StateBound {
		t.Fatalf("Expected bound state, got %s", session.State())
	}
	var bound *protocol.SessionBound
	for _, m := range sender.snapshot() {
		if b, ok := m.(*protocol.SessionBound); ok {
			bound = b
		}
	}
	if bound == nil {
		t.Fatal("No session.bound message sent")
	}
	if bound.UserID != "u1" || bound.SessionID != "s1" {
		t.Errorf("session.bound echoed wrong identity: %+v", bound)
	}

	// Repeating the same pair is idempotent.
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))
	if session.State() != StateBound {
		t.Errorf("Expected bound state after repeat bind, got %s", session.State())
	}
}

func TestSpeakScenario_MockChainStreamsOrderedFrames(t *testing.T) {
	// Real providers unavailable; the deterministic mock serves.
	session, sender := newTestSession(
		&unavailableSynth{name: "elevenlabs"},
		&unavailableSynth{name: "cartesia"},
		&synth.Mock{},
	)
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))

	session.HandleSpeak(context.Background(), speakMsg(strings.Repeat("hello ", 40)))

	waitFor(t, func() bool { return len(sender.audioEnds()) == 1 })

	frames := sender.frames()
	if len(frames) < 1 {
		t.Fatal("Expected at least one audio frame")
	}
	for i, f := range frames {
		if f.Seq != i {
			t.Errorf("Frame %d carries seq %d; expected contiguous numbering from 0", i, f.Seq)
		}
		if f.DataB64 == "" || f.Codec == "" || f.SampleRateHz == 0 || f.Channels == 0 {
			t.Errorf("Frame %d is missing format metadata: %+v", i, f)
		}
	}

	end := sender.audioEnds()[0]
	if end.Provider != "mock" {
		t.Errorf("Expected audio.end provider 'mock', got '%s'", end.Provider)
	}
	if end.TotalFrames != len(frames) {
		t.Errorf("audio.end reports %d frames, client saw %d", end.TotalFrames, len(frames))
	}

	// Unavailable providers were pre-skipped, never attempted.
	if sw := sender.switches(); len(sw) != 0 {
		t.Errorf("Expected no provider.switched for pre-skips, got %d", len(sw))
	}

	if session.State() != StateBound {
		t.Errorf("Expected bound state after completion, got %s", session.State())
	}
}

func TestSecondSpeakWhileSpeakingIsRejected(t *testing.T) {
	session, sender := newTestSession(&synth.Mock{FrameDelay: 3 * time.Millisecond})
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))

	longText := strings.Repeat("a", 64*20)
	session.HandleSpeak(context.Background(), speakMsg(longText))
	waitFor(t, func() bool { return session.State() == StateSpeaking })

	session.HandleSpeak(context.Background(), speakMsg("interloper"))

	if errs := sender.errorsByCode(protocol.CodeAlreadySpeaking); len(errs) != 1 {
		t.Fatalf("Expected one ALREADY_SPEAKING error, got %d", len(errs))
	}

	// The first stream completes unaffected.
	waitFor(t, func() bool { return len(sender.audioEnds()) == 1 })
	if got := sender.audioEnds()[0].TotalFrames; got != 20 {
		t.Errorf("First stream should deliver all 20 frames, audio.end says %d", got)
	}
}

func TestAbortCancelsInFlightSpeak(t *testing.T) {
	session, sender := newTestSession(&synth.Mock{FrameDelay: 3 * time.Millisecond})
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))

	session.HandleSpeak(context.Background(), speakMsg(strings.Repeat("a", 64*200)))
	waitFor(t, func() bool { return len(sender.frames()) >= 1 })

	session.Abort()
	session.Abort() // idempotent

	waitFor(t, func() bool { return session.State() == StateBound })

	if ends := sender.audioEnds(); len(ends) != 0 {
		t.Errorf("Aborted stream must not produce audio.end, got %d", len(ends))
	}
	// Cancellation is silent: no TTS_ERROR either.
	if errs := sender.errorsByCode(protocol.CodeTTSError); len(errs) != 0 {
		t.Errorf("Aborted stream must not produce TTS_ERROR, got %d", len(errs))
	}
}

func TestBindWhileSpeakingDoesNotInterrupt(t *testing.T) {
	session, sender := newTestSession(&synth.Mock{FrameDelay: 3 * time.Millisecond})
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))

	session.HandleSpeak(context.Background(), speakMsg(strings.Repeat("a", 64*10)))
	waitFor(t, func() bool { return session.State() == StateSpeaking })

	session.HandleBind(context.Background(), bindMsg("u2", "s2"))

	if userID, sessionID := session.Identity(); userID != "u2" || sessionID != "s2" {
		t.Errorf("Re-bind should update identity, got %s/%s", userID, sessionID)
	}
	// The in-flight stream still completes.
	waitFor(t, func() bool { return len(sender.audioEnds()) == 1 })
}

func TestExhaustionYieldsTTSError(t *testing.T) {
	session, sender := newTestSession(
		&unavailableSynth{name: "elevenlabs"},
		&unavailableSynth{name: "cartesia"},
	)
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))

	session.HandleSpeak(context.Background(), speakMsg("hello"))

	waitFor(t, func() bool { return len(sender.errorsByCode(protocol.CodeTTSError)) == 1 })

	if ends := sender.audioEnds(); len(ends) != 0 {
		t.Errorf("Exhaustion must not produce audio.end, got %d", len(ends))
	}
	// The connection stays usable for the next request.
	if session.State() != StateBound {
		t.Errorf("Expected bound state after exhaustion, got %s", session.State())
	}
}

func TestPingAnsweredInAnyState(t *testing.T) {
	session, sender := newTestSession(&synth.Mock{})

	session.HandlePing()
	session.HandleBind(context.Background(), bindMsg("u1", "s1"))
	session.HandlePing()

	count := 0
	for _, m := range sender.snapshot() {
		if _, ok := m.(*protocol.Pong); ok {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Expected 2 pongs, got %d", count)
	}
}

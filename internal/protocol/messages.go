package protocol

// Client to server message types
const (
	TypeSessionBind    = "session.bind"
	TypeAssistantSpeak = "assistant.speak"
	TypePing           = "ping"
)

// Server to client message types
const (
	TypeConnected       = "connected"
	TypeSessionBound    = "session.bound"
	TypeTranscriptDelta = "transcript.delta"
	TypeAudioFrame      = "audio.frame"
	TypeAudioEnd        = "audio.end"
	TypeSwitched        = "provider.switched"
	TypeError           = "error"
	TypePong            = "pong"
)

// Client-visible error codes
const (
	CodeInvalidMessage  = "INVALID_MESSAGE"
	CodeNotBound        = "NOT_BOUND"
	CodeAlreadySpeaking = "ALREADY_SPEAKING"
	CodeTTSError        = "TTS_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ClientMessage is any decoded client-to-server message. Which fields are
// populated depends on Type; Decode guarantees the fields required by the
// type are present and valid.
type ClientMessage struct {
	Type string `json:"type"`

	// session.bind
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// assistant.speak
	Text          string   `json:"text,omitempty"`
	VoiceProvider string   `json:"voice_provider,omitempty"`
	TTSDisable    []string `json:"tts_disable,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// ServerMessage is any server-to-client message. Encode stamps the
// generation timestamp just before serialization.
type ServerMessage interface {
	stamp(ts string)
}

// Connected greets a freshly accepted connection.
type Connected struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SessionBound confirms a successful session.bind.
type SessionBound struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TranscriptDelta carries the text being spoken back to the client.
type TranscriptDelta struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	IsFinal   bool   `json:"is_final"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AudioFrame carries one ordered chunk of synthesized audio. The raw bytes
// travel base64-encoded with explicit format metadata so the receiver never
// has to guess.
type AudioFrame struct {
	Type         string `json:"type"`
	DataB64      string `json:"data_b64"`
	Codec        string `json:"codec"`
	Seq          int    `json:"seq"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// AudioEnd terminates one speak stream.
type AudioEnd struct {
	Type          string `json:"type"`
	TotalFrames   int    `json:"total_frames"`
	Provider      string `json:"provider"`
	Codec         string `json:"codec,omitempty"`
	SampleRateHz  int    `json:"sample_rate_hz,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// ProviderSwitched announces a mid-stream failover.
type ProviderSwitched struct {
	Type          string `json:"type"`
	From          string `json:"from"`
	To            string `json:"to"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// Error reports a per-request failure; the connection stays open.
type Error struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Pong answers a ping.
type Pong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (m *Connected) stamp(ts string)        { m.Timestamp = ts }
func (m *SessionBound) stamp(ts string)     { m.Timestamp = ts }
func (m *TranscriptDelta) stamp(ts string)  { m.Timestamp = ts }
func (m *AudioFrame) stamp(ts string)       { m.Timestamp = ts }
func (m *AudioEnd) stamp(ts string)         { m.Timestamp = ts }
func (m *ProviderSwitched) stamp(ts string) { m.Timestamp = ts }
func (m *Error) stamp(ts string)            { m.Timestamp = ts }
func (m *Pong) stamp(ts string)             { m.Timestamp = ts }

// NewConnected builds the greeting message.
func NewConnected(version string) *Connected {
	return &Connected{Type: TypeConnected, Version: version}
}

// NewSessionBound builds a bind confirmation.
func NewSessionBound(userID, sessionID string) *SessionBound {
	return &SessionBound{Type: TypeSessionBound, UserID: userID, SessionID: sessionID}
}

// NewTranscriptDelta builds a transcript message.
func NewTranscriptDelta(text string, isFinal bool) *TranscriptDelta {
	return &TranscriptDelta{Type: TypeTranscriptDelta, Text: text, IsFinal: isFinal}
}

// NewAudioFrame builds a frame message from raw audio bytes.
func NewAudioFrame(data []byte, seq int, codec string, sampleRateHz, channels int) *AudioFrame {
	return &AudioFrame{
		Type:         TypeAudioFrame,
		DataB64:      encodeAudio(data),
		Codec:        codec,
		Seq:          seq,
		SampleRateHz: sampleRateHz,
		Channels:     channels,
	}
}

// NewAudioEnd builds the stream terminator.
func NewAudioEnd(totalFrames int, provider, codec string, sampleRateHz int, correlationID string) *AudioEnd {
	return &AudioEnd{
		Type:          TypeAudioEnd,
		TotalFrames:   totalFrames,
		Provider:      provider,
		Codec:         codec,
		SampleRateHz:  sampleRateHz,
		CorrelationID: correlationID,
	}
}

// NewProviderSwitched builds a failover notification.
func NewProviderSwitched(from, to, correlationID string) *ProviderSwitched {
	return &ProviderSwitched{Type: TypeSwitched, From: from, To: to, CorrelationID: correlationID}
}

// NewError builds a client-visible error message.
func NewError(code, message string) *Error {
	return &Error{Type: TypeError, Code: code, Message: message}
}

// NewPong builds a keepalive answer.
func NewPong() *Pong {
	return &Pong{Type: TypePong}
}

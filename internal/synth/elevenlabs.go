package synth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxbridge/relay-gateway/internal/config"
)

const (
	elevenLabsStreamURL = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=mp3_44100_128"

	elevenLabsCodec      = "mp3"
	elevenLabsSampleRate = 44100
	elevenLabsChannels   = 1
)

// ElevenLabs streams synthesis over the ElevenLabs stream-input WebSocket API.
type ElevenLabs struct {
	apiKey      string
	voiceID     string
	modelID     string
	dialTimeout time.Duration
}

// NewElevenLabs creates the ElevenLabs provider from configuration.
func NewElevenLabs(cfg *config.Config) *ElevenLabs {
	return &ElevenLabs{
		apiKey:      cfg.ElevenLabsAPIKey,
		voiceID:     cfg.ElevenLabsVoiceID,
		modelID:     cfg.ElevenLabsModelID,
		dialTimeout: cfg.DialTimeout(),
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Available reports whether credentials are configured.
func (e *ElevenLabs) Available() bool { return e.apiKey != "" }

type elevenLabsOut struct {
	Text                 string                 `json:"text"`
	VoiceSettings        map[string]interface{} `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool                   `json:"try_trigger_generation,omitempty"`
}

type elevenLabsIn struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Stream opens a stream-input connection, sends the full text, and relays
// audio chunks as frames until the API marks the stream final.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		url := fmt.Sprintf(elevenLabsStreamURL, e.voiceID, e.modelID)
		header := http.Header{}
		header.Set("xi-api-key", e.apiKey)

		dialer := websocket.Dialer{HandshakeTimeout: e.dialTimeout}
		conn, _, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			errs <- fmt.Errorf("elevenlabs dial: %w", err)
			return
		}
		defer conn.Close()

		// Unblock the read loop when the caller cancels.
		watchDone := make(chan struct{})
		defer close(watchDone)
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-watchDone:
			}
		}()

		init := elevenLabsOut{
			Text:          " ",
			VoiceSettings: map[string]interface{}{"stability": 0.5, "similarity_boost": 0.75},
		}
		if err := conn.WriteJSON(init); err != nil {
			errs <- fmt.Errorf("elevenlabs init: %w", err)
			return
		}
		if err := conn.WriteJSON(elevenLabsOut{Text: text + " ", TryTriggerGeneration: true}); err != nil {
			errs <- fmt.Errorf("elevenlabs send text: %w", err)
			return
		}
		// Empty text closes the input side; the API flushes remaining audio.
		if err := conn.WriteJSON(elevenLabsOut{Text: ""}); err != nil {
			errs <- fmt.Errorf("elevenlabs end of input: %w", err)
			return
		}

		seq := 0
		for {
			var msg elevenLabsIn
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() != nil {
					errs <- ctx.Err()
					return
				}
				errs <- fmt.Errorf("elevenlabs read: %w", err)
				return
			}

			if msg.Error != "" {
				errs <- fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
				return
			}

			if msg.Audio != "" {
				data, err := base64.StdEncoding.DecodeString(msg.Audio)
				if err != nil {
					errs <- fmt.Errorf("elevenlabs audio payload: %w", err)
					return
				}
				frame := Frame{
					Data:       data,
					Seq:        seq,
					Codec:      elevenLabsCodec,
					SampleRate: elevenLabsSampleRate,
					Channels:   elevenLabsChannels,
				}
				select {
				case frames <- frame:
					seq++
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if msg.IsFinal {
				return
			}
		}
	}()

	return frames, errs
}

var _ Provider = (*ElevenLabs)(nil)

package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/voxbridge/relay-gateway/internal/config"
)

const (
	cartesiaURL = "https://api.cartesia.ai/tts/bytes"

	cartesiaCodec      = "pcm_s16le"
	cartesiaSampleRate = 24000
	cartesiaChannels   = 1

	// cartesiaChunkSize keeps frames small enough for smooth relay pacing.
	cartesiaChunkSize = 4096
)

// Cartesia streams synthesis from Cartesia's raw-bytes HTTP endpoint,
// chunking the response body into frames as it arrives.
type Cartesia struct {
	apiKey     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

// NewCartesia creates the Cartesia provider from configuration. The HTTP
// transport bounds connection establishment; the response body itself may
// stream for as long as the utterance lasts.
func NewCartesia(cfg *config.Config) *Cartesia {
	return &Cartesia{
		apiKey:  cfg.CartesiaAPIKey,
		voiceID: cfg.CartesiaVoiceID,
		modelID: cfg.CartesiaModelID,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: cfg.DialTimeout()}).DialContext,
				TLSHandshakeTimeout: cfg.DialTimeout(),
			},
		},
	}
}

func (c *Cartesia) Name() string { return "cartesia" }

// Available reports whether credentials are configured.
func (c *Cartesia) Available() bool { return c.apiKey != "" }

type cartesiaRequest struct {
	ModelID      string              `json:"model_id"`
	Transcript   string              `json:"transcript"`
	Voice        cartesiaVoice       `json:"voice"`
	OutputFormat cartesiaAudioFormat `json:"output_format"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaAudioFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Stream posts the text and relays the PCM response body chunk by chunk.
func (c *Cartesia) Stream(ctx context.Context, text string) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		payload := cartesiaRequest{
			ModelID:    c.modelID,
			Transcript: text,
			Voice:      cartesiaVoice{Mode: "id", ID: c.voiceID},
			OutputFormat: cartesiaAudioFormat{
				Container:  "raw",
				Encoding:   cartesiaCodec,
				SampleRate: cartesiaSampleRate,
			},
		}
		body, err := json.Marshal(payload)
		if err != nil {
			errs <- fmt.Errorf("cartesia marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cartesiaURL, bytes.NewReader(body))
		if err != nil {
			errs <- fmt.Errorf("cartesia build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("Cartesia-Version", "2024-06-10")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("cartesia request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Read a little of the body for the log line; never forwarded to clients.
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			errs <- fmt.Errorf("cartesia status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
			return
		}

		seq := 0
		buf := make([]byte, cartesiaChunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				frame := Frame{
					Data:       append([]byte(nil), buf[:n]...),
					Seq:        seq,
					Codec:      cartesiaCodec,
					SampleRate: cartesiaSampleRate,
					Channels:   cartesiaChannels,
				}
				select {
				case frames <- frame:
					seq++
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					errs <- ctx.Err()
					return
				}
				errs <- fmt.Errorf("cartesia read body: %w", err)
				return
			}
		}
	}()

	return frames, errs
}

var _ Provider = (*Cartesia)(nil)

package synth

import (
	"context"
	"time"

	"github.com/voxbridge/relay-gateway/internal/config"
)

const (
	mockCodec      = "pcm_s16le"
	mockSampleRate = 16000
	mockChannels   = 1

	// mockChunkSize bytes of text per frame; short texts still yield one frame.
	mockChunkSize = 64
)

// Mock is a deterministic offline synthesizer: given identical text it
// produces identical frame counts, bytes, and metadata on every run. It
// doubles as the tail of the default chain so a gateway with no credentials
// still speaks, and as the provider CI scenarios pin.
type Mock struct {
	// FrameDelay paces frame emission to imitate a streaming backend.
	// Zero means emit as fast as the consumer reads.
	FrameDelay time.Duration
}

// NewMock creates the mock provider from configuration.
func NewMock(cfg *config.Config) *Mock {
	return &Mock{FrameDelay: time.Duration(cfg.MockFrameDelayMs) * time.Millisecond}
}

func (m *Mock) Name() string { return "mock" }

// Available is always true; the mock needs no credentials.
func (m *Mock) Available() bool { return true }

// Stream chunks the text bytes into frames. The audio is not real speech,
// but it is stable, ordered, and format-tagged like any other provider's.
func (m *Mock) Stream(ctx context.Context, text string) (<-chan Frame, <-chan error) {
	frames := make(chan Frame)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		data := []byte(text)
		seq := 0
		for off := 0; off < len(data) || seq == 0; off += mockChunkSize {
			if m.FrameDelay > 0 {
				select {
				case <-time.After(m.FrameDelay):
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			end := off + mockChunkSize
			if end > len(data) {
				end = len(data)
			}
			frame := Frame{
				Data:       append([]byte(nil), data[off:end]...),
				Seq:        seq,
				Codec:      mockCodec,
				SampleRate: mockSampleRate,
				Channels:   mockChannels,
			}
			select {
			case frames <- frame:
				seq++
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return frames, errs
}

var _ Provider = (*Mock)(nil)

// Package synth defines the speech synthesis provider capability and its
// backend variants. A provider turns text into a lazy, ordered stream of
// audio frames; availability is a cheap local check (credentials present),
// never a network call.
package synth

import "context"

// Frame is one ordered chunk of synthesized audio. Seq is provider-local,
// starting at 0 per stream; the fallback orchestrator re-stamps it onto the
// logical utterance counter.
type Frame struct {
	Data       []byte
	Seq        int
	Codec      string
	SampleRate int
	Channels   int
}

// Provider is an interchangeable speech synthesis backend.
//
// Stream returns a frame channel and an error channel. The frame channel is
// unbuffered: frames transfer to the consumer one at a time and are never
// held at rest. On failure the provider sends exactly one error and closes
// both channels; on success it closes both without sending an error.
// Cancelling ctx stops production within one read cycle and releases any
// downstream connection.
type Provider interface {
	Name() string
	Available() bool
	Stream(ctx context.Context, text string) (<-chan Frame, <-chan error)
}

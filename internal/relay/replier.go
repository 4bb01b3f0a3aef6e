package relay

import (
	"context"

	"github.com/voxbridge/relay-gateway/internal/fallback"
	"github.com/voxbridge/relay-gateway/internal/llm"
)

// Replier is the one-shot text-generation collaborator consulted before
// synthesis begins; it produces the final text to speak.
type Replier interface {
	Reply(ctx context.Context, correlationID, text string) (string, error)
}

// PassthroughReplier speaks the client's text verbatim. Used when no
// generation chain is configured, and by deterministic test scenarios.
type PassthroughReplier struct{}

func (PassthroughReplier) Reply(ctx context.Context, correlationID, text string) (string, error) {
	return text, nil
}

// GenerationReplier produces the reply through the generation fallback chain
// with a persona system prompt.
type GenerationReplier struct {
	Gen    *fallback.Generation
	System string
}

func (r *GenerationReplier) Reply(ctx context.Context, correlationID, text string) (string, error) {
	resp, _, err := r.Gen.Complete(ctx, correlationID, llm.Request{
		System: r.System,
		Prompt: text,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Package llm defines the text generation provider capability and its
// backend variants. Generation is one-shot: a structured prompt in, one
// completed response out.
package llm

import "context"

// Request is a structured generation prompt.
type Request struct {
	System      string  // Persona / system instructions
	Prompt      string  // User text
	MaxTokens   int     // 0 means provider default
	Temperature float64 // 0 means provider default
}

// Response is one completed generation.
type Response struct {
	Text     string
	Model    string
	Provider string
}

// Provider is an interchangeable text generation backend. Available is a
// cheap local check (credentials present), never a network call.
type Provider interface {
	Name() string
	Available() bool
	Complete(ctx context.Context, req Request) (*Response, error)
}

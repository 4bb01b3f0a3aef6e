package llm

import "context"

// MockProvider returns a canned completion; used in tests and when running
// the gateway fully offline.
type MockProvider struct {
	Reply string
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Available() bool { return true }

func (m *MockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := m.Reply
	if text == "" {
		text = req.Prompt
	}
	return &Response{Text: text, Model: "mock", Provider: "mock"}, nil
}

var _ Provider = (*MockProvider)(nil)

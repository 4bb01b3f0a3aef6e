package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/voxbridge/relay-gateway/internal/config"
)

// chatClient speaks the OpenAI chat-completions API, which several vendors
// expose verbatim. Each named provider variant is a thin constructor over it.
type chatClient struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates the OpenAI generation provider from configuration.
func NewOpenAI(cfg *config.Config) Provider {
	return newChatClient("openai", cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.DialTimeout())
}

// NewGroq creates the Groq generation provider from configuration.
func NewGroq(cfg *config.Config) Provider {
	return newChatClient("groq", cfg.GroqAPIKey, cfg.GroqModel, cfg.GroqBaseURL, cfg.DialTimeout())
}

func newChatClient(name, apiKey, model, baseURL string, dialTimeout time.Duration) *chatClient {
	return &chatClient{
		name:    name,
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
				TLSHandshakeTimeout: dialTimeout,
			},
		},
	}
}

func (c *chatClient) Name() string { return c.name }

// Available reports whether credentials are configured.
func (c *chatClient) Available() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete runs one chat completion and returns the first choice.
func (c *chatClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if !c.Available() {
		return nil, NotConfigured(c.name)
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, &ProviderError{Provider: c.name, Class: ClassBadRequest, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: c.name, Class: ClassBadRequest, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(c.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, wrapTransportError(c.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: c.name,
			Class:    classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  http.StatusText(resp.StatusCode),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{Provider: c.name, Class: ClassServer, Message: fmt.Sprintf("unparseable response: %v", err)}
	}
	if parsed.Error != nil {
		return nil, &ProviderError{Provider: c.name, Class: ClassServer, Message: parsed.Error.Type}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: c.name, Class: ClassServer, Message: "response has no choices"}
	}

	return &Response{
		Text:     parsed.Choices[0].Message.Content,
		Model:    parsed.Model,
		Provider: c.name,
	}, nil
}

var _ Provider = (*chatClient)(nil)

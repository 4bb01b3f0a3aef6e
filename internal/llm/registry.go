package llm

import (
	"fmt"

	"github.com/voxbridge/relay-gateway/internal/config"
)

// Factory builds one provider variant from configuration.
type Factory func(cfg *config.Config) Provider

var registry = map[string]Factory{
	"openai": NewOpenAI,
	"groq":   NewGroq,
	"mock":   func(cfg *config.Config) Provider { return &MockProvider{} },
}

// Build constructs the generation chain in the order named. Unknown names
// are a startup error, not a runtime skip.
func Build(cfg *config.Config, names []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown generation provider %q", name)
		}
		providers = append(providers, factory(cfg))
	}
	return providers, nil
}

package synth

import (
	"fmt"

	"github.com/voxbridge/relay-gateway/internal/config"
)

// Factory builds one provider variant from configuration.
type Factory func(cfg *config.Config) Provider

// registry maps chain names to constructors. Providers are constructed once
// at startup from explicit configuration; nothing here reads ambient state
// at call time.
var registry = map[string]Factory{
	"elevenlabs": func(cfg *config.Config) Provider { return NewElevenLabs(cfg) },
	"cartesia":   func(cfg *config.Config) Provider { return NewCartesia(cfg) },
	"mock":       func(cfg *config.Config) Provider { return NewMock(cfg) },
}

// Build constructs the provider chain in the order named. Unknown names are
// a startup error, not a runtime skip.
func Build(cfg *config.Config, names []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown synthesis provider %q", name)
		}
		providers = append(providers, factory(cfg))
	}
	return providers, nil
}

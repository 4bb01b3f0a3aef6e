package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the speech relay gateway
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// ElevenLabs TTS API configuration
	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModelID string `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_flash_v2_5"` // Low latency model

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// OpenAI generation configuration
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	// Groq generation configuration (OpenAI-compatible API)
	GroqAPIKey  string `envconfig:"GROQ_API_KEY" default:""`
	GroqModel   string `envconfig:"GROQ_MODEL" default:"llama-3.1-8b-instant"`
	GroqBaseURL string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`

	// Provider priority chains, highest priority first.
	// Comma-separated provider names; unknown names are rejected at startup.
	TTSChain string `envconfig:"TTS_CHAIN" default:"elevenlabs,cartesia,mock"`
	LLMChain string `envconfig:"LLM_CHAIN" default:"openai,groq"`

	// Provider connection behavior
	ProviderDialTimeout int `envconfig:"PROVIDER_DIAL_TIMEOUT" default:"10"` // seconds
	MockFrameDelayMs    int `envconfig:"MOCK_FRAME_DELAY_MS" default:"10"`   // inter-frame pacing of the mock synth

	// Resilience configuration
	BreakerMaxFailures  int `envconfig:"BREAKER_MAX_FAILURES" default:"3"`   // Hard failures before a provider is skipped
	BreakerResetTimeout int `envconfig:"BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before a skipped provider is retried

	// Persistence and persona
	DBPath      string `envconfig:"DB_PATH" default:"data/relay.db"`
	PersonaPath string `envconfig:"PERSONA_PATH" default:""`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
// Provider API keys are intentionally optional: a provider with no key reports
// itself unavailable and the fallback chain skips it.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if len(cfg.SynthChain()) == 0 {
		return nil, fmt.Errorf("TTS_CHAIN must name at least one provider")
	}

	return &cfg, nil
}

// SynthChain returns the synthesis provider priority list, highest first.
func (c *Config) SynthChain() []string {
	return splitChain(c.TTSChain)
}

// GenChain returns the generation provider priority list, highest first.
// An empty chain disables the generation step: speak text is synthesized verbatim.
func (c *Config) GenChain() []string {
	return splitChain(c.LLMChain)
}

// DialTimeout returns the bounded wait for provider connection establishment.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.ProviderDialTimeout) * time.Second
}

// BreakerReset returns how long a tripped provider stays skipped.
func (c *Config) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetTimeout) * time.Second
}

func splitChain(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"TTS_CHAIN", "LLM_CHAIN", "PORT", "ELEVENLABS_API_KEY", "CARTESIA_API_KEY"} {
		os.Unsetenv(key)
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.ElevenLabsModelID != "eleven_flash_v2_5" {
		t.Errorf("Expected default ElevenLabsModelID 'eleven_flash_v2_5', got '%s'", cfg.ElevenLabsModelID)
	}

	if cfg.CartesiaVoiceID != "sonic-english" {
		t.Errorf("Expected default CartesiaVoiceID 'sonic-english', got '%s'", cfg.CartesiaVoiceID)
	}

	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("Expected default OpenAIModel 'gpt-4o-mini', got '%s'", cfg.OpenAIModel)
	}

	if cfg.BreakerMaxFailures != 3 {
		t.Errorf("Expected default BreakerMaxFailures 3, got %d", cfg.BreakerMaxFailures)
	}
}

func TestLoad_MissingKeysAreNotFatal(t *testing.T) {
	os.Unsetenv("ELEVENLABS_API_KEY")
	os.Unsetenv("CARTESIA_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed with no provider keys: %v", err)
	}

	if cfg.ElevenLabsAPIKey != "" {
		t.Errorf("Expected empty ElevenLabsAPIKey, got '%s'", cfg.ElevenLabsAPIKey)
	}
}

func TestSynthChain_Parsing(t *testing.T) {
	os.Setenv("TTS_CHAIN", " ElevenLabs, cartesia ,mock,")
	defer os.Unsetenv("TTS_CHAIN")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	chain := cfg.SynthChain()
	want := []string{"elevenlabs", "cartesia", "mock"}
	if len(chain) != len(want) {
		t.Fatalf("Expected chain %v, got %v", want, chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d]: expected '%s', got '%s'", i, want[i], chain[i])
		}
	}
}

func TestSynthChain_EmptyChainRejected(t *testing.T) {
	os.Setenv("TTS_CHAIN", " , ")
	defer os.Unsetenv("TTS_CHAIN")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for empty TTS_CHAIN")
	}
}

func TestGenChain_EmptyDisablesGeneration(t *testing.T) {
	os.Setenv("LLM_CHAIN", "")
	defer os.Unsetenv("LLM_CHAIN")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if chain := cfg.GenChain(); len(chain) != 0 {
		t.Errorf("Expected empty generation chain, got %v", chain)
	}
}

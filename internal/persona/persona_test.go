package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	text, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != DefaultPrompt {
		t.Errorf("expected default prompt, got %q", text)
	}
}

func TestLoadReadsAndTrimsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.txt")
	if err := os.WriteFile(path, []byte("  You are a pirate.\n"), 0o644); err != nil {
		t.Fatalf("write persona file: %v", err)
	}

	text, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "You are a pirate." {
		t.Errorf("unexpected persona text: %q", text)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing persona file")
	}
}

func TestLoadEmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.txt")
	if err := os.WriteFile(path, []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write persona file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty persona file")
	}
}

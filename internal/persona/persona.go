// Package persona loads the system prompt used for reply generation.
package persona

import (
	"fmt"
	"os"
	"strings"
)

// DefaultPrompt is used when no persona file is configured.
const DefaultPrompt = "You are a helpful voice assistant. Keep replies short and speakable: " +
	"no markdown, no lists, no code. Answer in at most three sentences."

// Load reads the persona text from path. An empty path selects the
// default prompt; a configured path that cannot be read is an error so
// a typo does not silently change the assistant's behavior.
func Load(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("persona file %s is empty", path)
	}
	return text, nil
}

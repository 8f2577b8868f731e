package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-pkgz/lgr"
)

// DataPlaceholder is replaced with the JSON payload of one team's chunk
const DataPlaceholder = "{data}"

// LoadPrompt reads the prompt template, surrounding whitespace is trimmed
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from config
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	if !strings.Contains(prompt, DataPlaceholder) {
		lgr.Printf("[WARN] prompt file %s has no %s placeholder, feed data will not be sent", path, DataPlaceholder)
	}
	return prompt, nil
}

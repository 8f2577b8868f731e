package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/umputun/teamdigest/pkg/config"
	"github.com/umputun/teamdigest/pkg/feed"
)

// Client sends a rendered prompt to a language model and returns the generated text
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Payload is the data of one summarization request: a single team mapped to one chunk of its feeds
type Payload map[string][]feed.Result

// NewClient makes a client for the configured provider. Missing credentials fail here, not on first use.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(cfg)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// RenderPrompt replaces the {data} placeholder of the template with the indented JSON of data
func RenderPrompt(template string, data any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("marshal prompt data: %w", err)
	}
	return strings.ReplaceAll(template, config.DataPlaceholder, strings.TrimSuffix(buf.String(), "\n")), nil
}

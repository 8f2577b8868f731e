package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/umputun/teamdigest/pkg/config"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/"

// Gemini summarizes with the Gemini generateContent API
type Gemini struct {
	client *genai.Client
	config config.LLMConfig
}

// NewGemini creates a Gemini client
func NewGemini(cfg config.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required, set GEMINI_API_KEY or GEMINI_TOKEN")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: endpoint, APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, config: cfg}, nil
}

// Complete sends the prompt and returns the text of the first candidate.
// If the response has no text part, the raw response JSON is returned.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.config.Temperature)),
		TopP:            genai.Ptr(float32(0.8)),
		TopK:            genai.Ptr(float32(40)),
		MaxOutputTokens: int32(g.config.MaxTokens), //nolint:gosec // max tokens is validated config
	})
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}

	if text := strings.TrimSpace(resp.Text()); text != "" {
		return text, nil
	}

	// no text part, return the whole response as is
	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal gemini response: %w", err)
	}
	return string(raw), nil
}

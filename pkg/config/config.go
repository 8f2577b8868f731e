package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// supported summarization providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds the application configuration
type Config struct {
	Files    FilesConfig    `yaml:"files" json:"files" jsonschema:"description=Input and cache file locations"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" jsonschema:"description=Batching and dispatch settings"`
	Feed     FeedConfig     `yaml:"feed" json:"feed" jsonschema:"description=Feed fetching settings"`
	LLM      LLMConfig      `yaml:"llm" json:"llm" jsonschema:"description=Summarization provider settings"`
}

// FilesConfig holds locations of the team list, prompt template and feed cache
type FilesConfig struct {
	Feeds  string `yaml:"feeds" json:"feeds" jsonschema:"default=feeds.json,description=Team to feed URLs mapping (JSON or YAML)"`
	Prompt string `yaml:"prompt" json:"prompt" jsonschema:"default=prompt.txt,description=Prompt template with {data} placeholder"`
	Cache  string `yaml:"cache" json:"cache" jsonschema:"default=feeds_data.json,description=Feed cache written after every live fetch"`
}

// PipelineConfig holds batching and worker pool settings
type PipelineConfig struct {
	Days           *int `yaml:"days" json:"days,omitempty" jsonschema:"default=60,minimum=0,description=Lookback window in days, 0 keeps only entries published from now on"`
	BatchSize      int  `yaml:"batch_size" json:"batch_size" jsonschema:"default=3,minimum=1,description=Feed URLs per summarization request"`
	MaxWorkers     int  `yaml:"max_workers" json:"max_workers" jsonschema:"default=8,minimum=1,description=Maximum concurrent summarization requests"`
	MaxRetries     int  `yaml:"max_retries" json:"max_retries" jsonschema:"default=5,minimum=1,description=Attempts per summarization request"`
	KeepChunkOrder bool `yaml:"keep_chunk_order" json:"keep_chunk_order" jsonschema:"default=false,description=Order team sections by chunk index instead of completion order"`
}

// FeedConfig holds feed fetching settings
type FeedConfig struct {
	Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Timeout per feed request"`
	Retries    int           `yaml:"retries" json:"retries" jsonschema:"default=2,minimum=1,description=Attempts per feed URL"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" jsonschema:"default=500ms,description=Initial delay between feed attempts"`
	UserAgent  string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=teamdigest/1.0,description=User agent for feed requests"`
	StripHTML  *bool         `yaml:"strip_html" json:"strip_html,omitempty" jsonschema:"default=true,description=Strip HTML markup from entry summaries"`
}

// LLMConfig holds summarization provider settings
type LLMConfig struct {
	Provider          string        `yaml:"provider" json:"provider" jsonschema:"default=gemini,enum=gemini,enum=openai,description=Summarization provider"`
	Endpoint          string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=API base URL (provider default when empty)"`
	APIKey            string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model             string        `yaml:"model" json:"model" jsonschema:"description=Model name (e.g. gemini-1.5-flash or gpt-4o)"`
	Temperature       float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.7,description=Temperature for response generation"`
	MaxTokens         int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"description=Maximum tokens in response"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Timeout per request attempt"`
	SystemPrompt      string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt for chat providers (optional)"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second" jsonschema:"default=0,description=Request rate limit, 0 disables"`
}

// Option modifies parsed configuration before defaults are applied, used for CLI overrides
type Option func(*Config)

// Load reads configuration from a YAML file. Empty path returns defaults.
func Load(path string, opts ...Option) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults fills zero values with defaults and resolves credentials from the environment
func (c *Config) SetDefaults() {
	if c.Files.Feeds == "" {
		c.Files.Feeds = "feeds.json"
	}
	if c.Files.Prompt == "" {
		c.Files.Prompt = "prompt.txt"
	}
	if c.Files.Cache == "" {
		c.Files.Cache = "feeds_data.json"
	}

	if c.Pipeline.Days == nil {
		days := 60
		c.Pipeline.Days = &days
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = 3
	}
	if c.Pipeline.MaxWorkers == 0 {
		c.Pipeline.MaxWorkers = 8
	}
	if c.Pipeline.MaxRetries == 0 {
		c.Pipeline.MaxRetries = 5
	}

	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Feed.Retries == 0 {
		c.Feed.Retries = 2
	}
	if c.Feed.RetryDelay == 0 {
		c.Feed.RetryDelay = 500 * time.Millisecond
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = "teamdigest/1.0"
	}
	if c.Feed.StripHTML == nil {
		strip := true
		c.Feed.StripHTML = &strip
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGemini
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	c.LLM.resolveEnv()
}

// resolveEnv fills credentials, model and endpoint from provider specific environment variables
func (l *LLMConfig) resolveEnv() {
	switch l.Provider {
	case ProviderGemini:
		if l.APIKey == "" {
			l.APIKey = firstEnv("GEMINI_API_KEY", "GEMINI_TOKEN")
		}
		if l.Model == "" {
			l.Model = firstEnv("GEMINI_MODEL")
		}
		if l.Model == "" {
			l.Model = "gemini-1.5-flash"
		}
		if l.MaxTokens == 0 {
			l.MaxTokens = 2048
		}
	case ProviderOpenAI:
		if l.APIKey == "" {
			l.APIKey = firstEnv("OPENAI_API_KEY")
		}
		if l.Endpoint == "" {
			l.Endpoint = firstEnv("OPENAI_BASE_URL")
		}
		if l.Model == "" {
			l.Model = firstEnv("MODEL_NAME")
		}
		if l.Model == "" {
			l.Model = "gpt-4o"
		}
		if l.MaxTokens == 0 {
			l.MaxTokens = 1500
		}
	}
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if c.LookbackDays() < 0 {
		return fmt.Errorf("pipeline.days must be non-negative")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("pipeline.max_workers must be at least 1")
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline.max_retries must be at least 1")
	}

	if c.Feed.Timeout < time.Second {
		return fmt.Errorf("feed.timeout must be at least 1 second")
	}
	if c.Feed.Retries < 1 {
		return fmt.Errorf("feed.retries must be at least 1")
	}

	if c.LLM.Provider != ProviderGemini && c.LLM.Provider != ProviderOpenAI {
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.Timeout < time.Second {
		return fmt.Errorf("llm.timeout must be at least 1 second")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("llm.requests_per_second must be non-negative")
	}
	return nil
}

// LookbackDays returns the lookback window in days, 60 when not set
func (c *Config) LookbackDays() int {
	if c.Pipeline.Days == nil {
		return 60
	}
	return *c.Pipeline.Days
}

// StripHTMLEnabled reports whether entry summaries should be reduced to plain text
func (c *Config) StripHTMLEnabled() bool {
	return c.Feed.StripHTML == nil || *c.Feed.StripHTML
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

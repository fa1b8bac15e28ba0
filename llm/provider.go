package llm

import (
	"time"

	"github.com/ideagrid/orchestrator/core"
)

// Provider identifies which backend an AIClient talks to.
type Provider string

const (
	ProviderLocal  Provider = "local"  // Ollama-compatible local inference
	ProviderRemote Provider = "remote" // hosted API (Gemini-compatible)
	ProviderAuto   Provider = "auto"   // auto-detect from environment
	ProviderMock   Provider = "mock"   // deterministic canned responses
)

// AIConfig holds configuration for AI client creation.
type AIConfig struct {
	// Provider to use.
	Provider string

	// API credentials.
	APIKey  string
	BaseURL string

	// Connection settings.
	Timeout    time.Duration
	MaxRetries int

	// Model configuration.
	Model       string
	Temperature float32
	MaxTokens   int

	Logger    core.Logger
	Telemetry core.Telemetry

	// Advanced options.
	Extra map[string]interface{}
}

// AIOption configures an AI client.
type AIOption func(*AIConfig)

// WithProvider sets the AI provider.
func WithProvider(provider string) AIOption {
	return func(c *AIConfig) {
		c.Provider = provider
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) AIOption {
	return func(c *AIConfig) {
		c.APIKey = key
	}
}

// WithBaseURL sets the base URL for the API.
func WithBaseURL(url string) AIOption {
	return func(c *AIConfig) {
		c.BaseURL = url
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) AIOption {
	return func(c *AIConfig) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(retries int) AIOption {
	return func(c *AIConfig) {
		c.MaxRetries = retries
	}
}

// WithModel sets the model to use.
func WithModel(model string) AIOption {
	return func(c *AIConfig) {
		c.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float32) AIOption {
	return func(c *AIConfig) {
		c.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) AIOption {
	return func(c *AIConfig) {
		c.MaxTokens = tokens
	}
}

// WithExtra sets an extra provider-specific configuration value.
func WithExtra(key string, value interface{}) AIOption {
	return func(c *AIConfig) {
		if c.Extra == nil {
			c.Extra = make(map[string]interface{})
		}
		c.Extra[key] = value
	}
}

// WithLogger sets the logger for AI operations.
// This is typically called by the router to provide observability.
func WithLogger(logger core.Logger) AIOption {
	return func(c *AIConfig) {
		c.Logger = logger
	}
}

// WithTelemetry sets the telemetry provider for distributed tracing.
func WithTelemetry(telemetry core.Telemetry) AIOption {
	return func(c *AIConfig) {
		c.Telemetry = telemetry
	}
}

// NewAIConfig applies options over defaults of provider auto, a 30s timeout,
// 3 retries, temperature 0.7 and 2000 max tokens.
func NewAIConfig(opts ...AIOption) *AIConfig {
	cfg := &AIConfig{
		Provider:    string(ProviderAuto),
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   2000,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

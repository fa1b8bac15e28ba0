// Package local implements the Ollama-compatible local inference provider:
// low-latency, zero-cost, image-capable, no file/URL support. Grounded on
// original_source/src/madspark/llm/providers/ollama.py (health-check
// caching, "model available" match rule, native JSON-schema chat
// endpoint) and _examples/itsneelabh-gomind/ai/providers/base.go's
// BaseClient HTTP-retry shape.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm"
)

func init() {
	llm.MustRegister(&Factory{})
}

const defaultHost = "http://localhost:11434"

// Factory creates Client instances for the local provider.
type Factory struct{}

func (f *Factory) Name() string        { return "local" }
func (f *Factory) Description() string { return "Ollama-compatible local inference" }

func (f *Factory) Create(config *llm.AIConfig) core.AIClient {
	host := config.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultHost
	}
	model := config.Model
	if model == "" {
		model = "llama3.2"
	}
	c := NewClient(host, model, config.Logger)
	if config.Timeout > 0 {
		c.httpClient.Timeout = config.Timeout
	}
	return c
}

// DetectEnvironment reports local as available when the daemon at
// OLLAMA_HOST (or the default host) responds and has the llama3.2 model
// pulled; priority is high since it's free and
// low-latency (spec §4.3 "prefer local if healthy").
func (f *Factory) DetectEnvironment() (priority int, available bool) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultHost
	}
	c := NewClient(host, "llama3.2", nil)
	return 80, c.healthCheck(context.Background())
}

// Client implements core.AIClient against an Ollama-compatible daemon.
type Client struct {
	host       string
	model      string
	httpClient *http.Client
	logger     core.Logger

	healthMu          sync.Mutex
	lastHealth        bool
	lastHealthCheckAt time.Time
}

// NewClient builds a local-provider client. A nil logger degrades to a
// no-op logger.
func NewClient(host, model string, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// healthCheck reports whether the daemon is reachable and the requested
// model is pulled, caching the result for core.DefaultHealthCheckTTL to
// avoid hammering the local daemon (spec §4.3).
func (c *Client) healthCheck(ctx context.Context) bool {
	c.healthMu.Lock()
	if !c.lastHealthCheckAt.IsZero() && time.Since(c.lastHealthCheckAt) < core.DefaultHealthCheckTTL {
		result := c.lastHealth
		c.healthMu.Unlock()
		return result
	}
	c.healthMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return c.cacheHealth(false)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("local provider health check failed", map[string]interface{}{"error": err.Error()})
		return c.cacheHealth(false)
	}
	defer resp.Body.Close()

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return c.cacheHealth(false)
	}

	for _, m := range payload.Models {
		if m.Name == c.model || strings.HasPrefix(m.Name, c.model) {
			return c.cacheHealth(true)
		}
	}
	return c.cacheHealth(false)
}

func (c *Client) cacheHealth(ok bool) bool {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.lastHealth = ok
	c.lastHealthCheckAt = time.Now()
	return ok
}

// GenerateResponse produces free-form text via the chat endpoint.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	if options != nil && (len(options.Files) > 0 || len(options.URLs) > 0) {
		c.logger.Warn("local provider does not support files/urls, ignoring", map[string]interface{}{
			"files": len(options.Files),
			"urls":  len(options.URLs),
		})
	}

	if !c.healthCheck(ctx) {
		return nil, fmt.Errorf("%w: local daemon unreachable or model %q not pulled", core.ErrProviderUnavailable, c.model)
	}

	messages := c.buildMessages(prompt, options, optionsImages(options))
	body := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
		"options":  map[string]interface{}{"temperature": optionsTemperature(options)},
	}

	raw, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		EvalCount int `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchemaValidation, err)
	}

	return &core.AIResponse{
		Content: decoded.Message.Content,
		Model:   c.model,
		Usage:   core.TokenUsage{TotalTokens: decoded.EvalCount},
		Cost:    0,
	}, nil
}

// GenerateStructured requests JSON-schema-constrained output via Ollama's
// native format field and validates the response decodes as JSON.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *core.Schema, options *core.AIOptions) (*core.StructuredResponse, error) {
	if options != nil && (len(options.Files) > 0 || len(options.URLs) > 0) {
		c.logger.Warn("local provider does not support files/urls, ignoring", map[string]interface{}{
			"files": len(options.Files),
			"urls":  len(options.URLs),
		})
	}

	if !c.healthCheck(ctx) {
		return nil, fmt.Errorf("%w: local daemon unreachable or model %q not pulled", core.ErrProviderUnavailable, c.model)
	}

	enhancedPrompt := prompt + "\n\nIMPORTANT: Respond with valid JSON matching the schema. Keep each field concise and focused on key points."
	messages := c.buildMessages(enhancedPrompt, options, optionsImages(options))

	body := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
		"format":   schema.Definition,
		"options":  map[string]interface{}{"temperature": optionsTemperature(options)},
	}

	raw, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		EvalCount int `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchemaValidation, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(decoded.Message.Content), &data); err != nil {
		return nil, fmt.Errorf("%w: local output is not valid JSON: %v", core.ErrSchemaValidation, err)
	}

	return &core.StructuredResponse{
		Raw: &core.AIResponse{
			Content: decoded.Message.Content,
			Model:   c.model,
			Usage:   core.TokenUsage{TotalTokens: decoded.EvalCount},
			Cost:    0,
		},
		Data:     data,
		Strategy: "native_schema",
	}, nil
}

func (c *Client) buildMessages(prompt string, options *core.AIOptions, images []string) []map[string]interface{} {
	var messages []map[string]interface{}
	if options != nil && options.SystemPrompt != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": options.SystemPrompt})
	}
	userMsg := map[string]interface{}{"role": "user", "content": prompt}
	if len(images) > 0 {
		userMsg["images"] = images
	}
	messages = append(messages, userMsg)
	return messages
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: local daemon returned status %d: %s", core.ErrProviderUnavailable, resp.StatusCode, string(raw))
	}
	return raw, nil
}

func optionsTemperature(options *core.AIOptions) float32 {
	if options == nil {
		return 0
	}
	return options.Temperature
}

func optionsImages(options *core.AIOptions) []string {
	if options == nil {
		return nil
	}
	return options.Images
}

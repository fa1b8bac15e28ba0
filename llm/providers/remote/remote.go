// Package remote implements the hosted, paid provider supporting every
// input modality (images, files, URLs). Grounded on
// _examples/itsneelabh-gomind/ai/providers/gemini/client.go's HTTP shape
// and original_source/src/madspark/llm/providers/ollama.py's
// generate_structured contract, adapted to a Gemini-compatible
// generateContent endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// placeholderSubstrings flags obviously-fake API keys at startup
// (SPEC_FULL.md "API key placeholder-pattern rejection list", grounded on
// original_source/src/madspark/llm/config.py).
var placeholderSubstrings = []string{"your-", "replace", "example", "xxx", "placeholder", "API_KEY_HERE"}

// ValidAPIKey reports whether key looks like a real credential: at least
// 20 characters and free of known placeholder substrings (spec §4.3).
func ValidAPIKey(key string) bool {
	if len(key) < 20 {
		return false
	}
	lower := strings.ToLower(key)
	for _, bad := range placeholderSubstrings {
		if strings.Contains(lower, strings.ToLower(bad)) {
			return false
		}
	}
	return true
}

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates Client instances for the remote provider.
type Factory struct{}

func (f *Factory) Name() string        { return "remote" }
func (f *Factory) Description() string { return "hosted API with full multi-modal support" }

func (f *Factory) Create(config *llm.AIConfig) core.AIClient {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := config.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	c := NewClient(apiKey, baseURL, model, config.Logger)
	if config.Timeout > 0 {
		c.httpClient.Timeout = config.Timeout
	}
	return c
}

// DetectEnvironment reports availability when a syntactically valid API
// key is present; remote supports the "quality" tier which local cannot
// (spec §4.3), so it outranks local when both are present.
func (f *Factory) DetectEnvironment() (priority int, available bool) {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" || !ValidAPIKey(key) {
		return 90, false
	}
	return 90, true
}

// Client implements core.AIClient against a hosted Gemini-compatible API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     core.Logger
}

// NewClient builds a remote-provider client. An empty or invalid apiKey
// makes every call fail fast rather than hit the network.
func NewClient(apiKey, baseURL, model string, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (c *Client) checkKey() error {
	if !ValidAPIKey(c.apiKey) {
		return fmt.Errorf("%w: remote provider API key missing or looks like a placeholder", core.ErrProviderUnavailable)
	}
	return nil
}

// GenerateResponse produces free-form text via generateContent.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}

	model := c.model
	if options != nil && options.Model != "" {
		model = options.Model
	}

	body := c.buildRequest(prompt, options, nil)
	raw, err := c.post(ctx, model, body)
	if err != nil {
		return nil, err
	}

	text, usage, err := decodeCandidate(raw)
	if err != nil {
		return nil, err
	}

	return &core.AIResponse{
		Content: text,
		Model:   model,
		Usage:   usage,
		Cost:    estimateCost(usage),
	}, nil
}

// GenerateStructured requests schema-constrained JSON output.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *core.Schema, options *core.AIOptions) (*core.StructuredResponse, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}

	model := c.model
	if options != nil && options.Model != "" {
		model = options.Model
	}

	body := c.buildRequest(prompt, options, schema)
	raw, err := c.post(ctx, model, body)
	if err != nil {
		return nil, err
	}

	text, usage, err := decodeCandidate(raw)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("%w: remote output is not valid JSON: %v", core.ErrSchemaValidation, err)
	}

	return &core.StructuredResponse{
		Raw: &core.AIResponse{
			Content: text,
			Model:   model,
			Usage:   usage,
			Cost:    estimateCost(usage),
		},
		Data:     data,
		Strategy: "native_schema",
	}, nil
}

func (c *Client) buildRequest(prompt string, options *core.AIOptions, schema *core.Schema) map[string]interface{} {
	parts := []map[string]interface{}{{"text": prompt}}
	if options != nil {
		for _, img := range options.Images {
			parts = append(parts, map[string]interface{}{"inline_data": map[string]interface{}{"mime_type": "image/png", "data": img}})
		}
		for _, f := range options.Files {
			parts = append(parts, map[string]interface{}{"file_data": map[string]interface{}{"file_uri": f}})
		}
		for _, u := range options.URLs {
			parts = append(parts, map[string]interface{}{"file_data": map[string]interface{}{"file_uri": u}})
		}
	}

	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"temperature": optionsTemperature(options),
		},
	}
	if options != nil && options.SystemPrompt != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": options.SystemPrompt}},
		}
	}
	if schema != nil {
		genCfg := body["generationConfig"].(map[string]interface{})
		genCfg["response_mime_type"] = "application/json"
		genCfg["response_schema"] = schema.Definition
	}
	return body
}

func (c *Client) post(ctx context.Context, model string, body map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
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
		return nil, fmt.Errorf("%w: remote API returned status %d: %s", core.ErrProviderUnavailable, resp.StatusCode, string(raw))
	}
	return raw, nil
}

func decodeCandidate(raw []byte) (string, core.TokenUsage, error) {
	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", core.TokenUsage{}, fmt.Errorf("%w: %v", core.ErrSchemaValidation, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", core.TokenUsage{}, fmt.Errorf("%w: remote returned no candidates", core.ErrProviderUnavailable)
	}

	usage := core.TokenUsage{
		PromptTokens:     decoded.UsageMetadata.PromptTokenCount,
		CompletionTokens: decoded.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      decoded.UsageMetadata.TotalTokenCount,
	}
	return decoded.Candidates[0].Content.Parts[0].Text, usage, nil
}

// estimateCost is a rough per-token cost model; good enough for the batch
// monitor's cost-effectiveness reporting without depending on a billing API.
func estimateCost(usage core.TokenUsage) float64 {
	const costPerThousandTokens = 0.000125
	return float64(usage.TotalTokens) / 1000.0 * costPerThousandTokens
}

func optionsTemperature(options *core.AIOptions) float32 {
	if options == nil {
		return 0
	}
	return options.Temperature
}

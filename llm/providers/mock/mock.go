// Package mock provides a deterministic AI provider used by orchestrator
// integration tests (spec §8 S1-S6): canned structured responses queued up
// front, never auto-detected in production. Grounded on
// _examples/itsneelabh-gomind/ai/providers/mock/provider.go.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates mock AI clients. It is never auto-detected; callers must
// explicitly request provider=mock.
type Factory struct{}

func (f *Factory) Name() string        { return "mock" }
func (f *Factory) Description() string { return "deterministic provider for tests" }
func (f *Factory) DetectEnvironment() (priority int, available bool) { return 0, false }

func (f *Factory) Create(config *llm.AIConfig) core.AIClient {
	return New()
}

// Client is a scriptable core.AIClient: callers queue structured responses
// (or an error) and the client replays them in order, recording every
// call for assertions.
type Client struct {
	mu sync.Mutex

	structuredQueue []queuedStructured
	responseQueue   []string
	err             error

	CallCount   int
	LastPrompt  string
	LastOptions *core.AIOptions
	LastSchema  *core.Schema

	// EchoPrompt, when true, is folded into every structured response's
	// Data under "_echoed_prompt" so language-consistency tests (P12) can
	// assert the prompt carried the expected instruction/content through.
	EchoPrompt bool

	// Delay, when set, is how long each call blocks before responding,
	// honoring ctx cancellation — used by timeout tests to simulate a
	// provider that never answers within the caller's deadline.
	Delay time.Duration
}

type queuedStructured struct {
	data     map[string]interface{}
	strategy string
}

// New constructs an empty mock client.
func New() *Client {
	return &Client{}
}

// QueueStructured appends a structured response to be returned by the next
// GenerateStructured call.
func (c *Client) QueueStructured(data map[string]interface{}) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structuredQueue = append(c.structuredQueue, queuedStructured{data: data, strategy: "direct"})
	return c
}

// QueueResponse appends a free-form text response.
func (c *Client) QueueResponse(text string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseQueue = append(c.responseQueue, text)
	return c
}

// SetError forces every subsequent call to fail with err.
func (c *Client) SetError(err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// WithDelay sets how long every subsequent call blocks before responding.
func (c *Client) WithDelay(d time.Duration) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Delay = d
	return c
}

// Reset clears queued responses, errors, and call history.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structuredQueue = nil
	c.responseQueue = nil
	c.err = nil
	c.CallCount = 0
	c.LastPrompt = ""
	c.LastOptions = nil
	c.LastSchema = nil
}

// waitDelay blocks for Delay (if set), honoring ctx cancellation, so tests
// can simulate a provider that outlasts the caller's deadline.
func (c *Client) waitDelay(ctx context.Context) error {
	c.mu.Lock()
	delay := c.Delay
	c.mu.Unlock()
	if delay <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	if err := c.waitDelay(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount++
	c.LastPrompt = prompt
	c.LastOptions = options

	if c.err != nil {
		return nil, c.err
	}
	if len(c.responseQueue) == 0 {
		return nil, errors.New("mock: no queued text responses")
	}
	text := c.responseQueue[0]
	c.responseQueue = c.responseQueue[1:]

	return &core.AIResponse{
		Content: text,
		Model:   "mock-model",
		Usage:   core.TokenUsage{TotalTokens: len(prompt)/4 + len(text)/4},
	}, nil
}

func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *core.Schema, options *core.AIOptions) (*core.StructuredResponse, error) {
	if err := c.waitDelay(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount++
	c.LastPrompt = prompt
	c.LastOptions = options
	c.LastSchema = schema

	if c.err != nil {
		return nil, c.err
	}
	if len(c.structuredQueue) == 0 {
		return nil, fmt.Errorf("mock: no queued structured response for schema %q", schema.Name)
	}
	next := c.structuredQueue[0]
	c.structuredQueue = c.structuredQueue[1:]

	data := next.data
	if c.EchoPrompt {
		data = cloneMap(data)
		data["_echoed_prompt"] = prompt
	}

	raw, _ := json.Marshal(data)
	model := "mock-model"
	if options != nil && options.Model != "" {
		model = options.Model
	}

	return &core.StructuredResponse{
		Raw: &core.AIResponse{
			Content: string(raw),
			Model:   model,
			Usage:   core.TokenUsage{TotalTokens: len(prompt)/4 + len(raw)/4},
		},
		Data:     data,
		Strategy: next.strategy,
	}, nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

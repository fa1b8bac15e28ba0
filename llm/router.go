package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ideagrid/orchestrator/cache"
	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/model"
	"github.com/ideagrid/orchestrator/resilience"
)

// RouterConfig configures provider selection and fallback behavior (C3,
// spec §4.3).
type RouterConfig struct {
	PrimaryProvider string // local | remote | mock | auto
	ModelTier       string // fast | balanced | quality
	FallbackEnabled bool
	CacheEnabled    bool
	CacheTTL        time.Duration

	LocalModelFast     string
	LocalModelBalanced string
	RemoteModel        string
}

// GenerateOptions carries the multi-modal/system-instruction inputs that
// feed both the provider call and the cache key (spec §3 CacheEntry).
type GenerateOptions struct {
	SystemInstruction string
	Images            []string
	Files             []string
	URLs              []string
	MaxTokens         int
}

// RouterMetrics is the per-instance accounting spec §4.3/§5 (P14)
// requires: no module-level mutable state, constructed fresh per router.
type RouterMetrics struct {
	mu sync.Mutex

	TotalRequests    int64
	LocalCalls       int64
	RemoteCalls      int64
	CacheHits        int64
	FallbackTriggers int64
	TotalTokens      int64
	TotalCost        float64

	latencySumMs   int64
	latencySamples int64
}

// RouterMetricsSnapshot is an immutable read of RouterMetrics at a point
// in time.
type RouterMetricsSnapshot struct {
	TotalRequests    int64
	LocalCalls       int64
	RemoteCalls      int64
	CacheHits        int64
	FallbackTriggers int64
	TotalTokens      int64
	TotalCost        float64
	AvgLatencyMs     float64
	CacheHitRate     float64
}

func (m *RouterMetrics) recordRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
}

func (m *RouterMetrics) recordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *RouterMetrics) recordFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbackTriggers++
}

func (m *RouterMetrics) recordCall(provider string, tokens int, cost float64, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch provider {
	case "local":
		m.LocalCalls++
	case "remote":
		m.RemoteCalls++
	}
	m.TotalTokens += int64(tokens)
	m.TotalCost += cost
	m.latencySumMs += latency.Milliseconds()
	m.latencySamples++
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *RouterMetrics) Snapshot() RouterMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := RouterMetricsSnapshot{
		TotalRequests:    m.TotalRequests,
		LocalCalls:       m.LocalCalls,
		RemoteCalls:      m.RemoteCalls,
		CacheHits:        m.CacheHits,
		FallbackTriggers: m.FallbackTriggers,
		TotalTokens:      m.TotalTokens,
		TotalCost:        m.TotalCost,
	}
	if m.latencySamples > 0 {
		snap.AvgLatencyMs = float64(m.latencySumMs) / float64(m.latencySamples)
	}
	if m.TotalRequests > 0 {
		snap.CacheHitRate = float64(m.CacheHits) / float64(m.TotalRequests)
	}
	return snap
}

// Router selects a provider, honors model tier, falls back on failure, and
// caches responses. Per §5, metrics are request-scoped: construct one
// Router per workflow run rather than sharing a package-level instance.
type Router struct {
	cfg       RouterConfig
	providers map[string]core.AIClient
	cache     *cache.Cache
	logger    core.Logger
	telemetry core.Telemetry
	metrics   RouterMetrics
	breakers  map[string]*resilience.CircuitBreaker
}

// NewRouter builds a Router from explicit providers (preferred per §5).
// Each provider
// gets its own circuit breaker (P5: infrastructure failures on one
// provider must not cascade into endless timeouts on every call routed to
// it) so a provider that starts failing trips open and calls fail fast
// into fallback instead of each one paying the provider's full timeout.
func NewRouter(cfg RouterConfig, providers map[string]core.AIClient, c *cache.Cache, logger core.Logger, telemetry core.Telemetry) *Router {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = core.DefaultCacheTTL
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for name := range providers {
		cbConfig := resilience.DefaultConfig()
		cbConfig.Name = "llm-" + name
		cbConfig.Logger = logger
		cb, err := resilience.NewCircuitBreaker(cbConfig)
		if err != nil {
			// DefaultConfig is always valid; a failure here means a
			// programming error, not a runtime condition to degrade.
			panic(fmt.Sprintf("llm: building circuit breaker for provider %q: %v", name, err))
		}
		breakers[name] = cb
	}
	return &Router{cfg: cfg, providers: providers, cache: c, logger: logger, telemetry: telemetry, breakers: breakers}
}

// breakerFor returns the provider's circuit breaker, or nil if the
// provider was never registered (callProvider/callProviderText already
// reject that case before reaching the breaker).
func (r *Router) breakerFor(name string) *resilience.CircuitBreaker {
	return r.breakers[name]
}

// Metrics returns this router instance's accounting (P14: isolated per
// instance).
func (r *Router) Metrics() RouterMetricsSnapshot {
	return r.metrics.Snapshot()
}

func (r *Router) resolvePrimary() string {
	switch r.cfg.PrimaryProvider {
	case "local", "remote", "mock":
		return r.cfg.PrimaryProvider
	default: // auto: prefer local if configured, it's free and low-latency
		if _, ok := r.providers["local"]; ok {
			return "local"
		}
		return "remote"
	}
}

func (r *Router) secondaryOf(primary string) string {
	if primary == "local" {
		return "remote"
	}
	return "local"
}

func (r *Router) modelFor(provider string) string {
	tier := r.cfg.ModelTier
	if provider == "local" {
		if tier == "quality" {
			r.logger.Warn("quality tier requested on local provider, degrading to balanced", map[string]interface{}{
				"provider": provider,
			})
			tier = "balanced"
		}
		if tier == "fast" {
			return r.cfg.LocalModelFast
		}
		return r.cfg.LocalModelBalanced
	}
	return r.cfg.RemoteModel
}

// GenerateStructured implements spec §4.3's behavior: cache-first,
// primary-then-fallback, aggregate error on total failure.
func (r *Router) GenerateStructured(ctx context.Context, prompt string, schema *core.Schema, temperature float32, opts GenerateOptions) (map[string]interface{}, model.LLMResponse, error) {
	r.metrics.recordRequest()

	primary := r.resolvePrimary()
	key := ""
	if r.cfg.CacheEnabled && r.cache != nil {
		key = cache.MakeKey(cache.KeyInputs{
			Prompt:            prompt,
			SchemaName:        schema.Name,
			SchemaDefinition:  schema.Definition,
			Temperature:       float64(temperature),
			Provider:          primary,
			Model:             r.modelFor(primary),
			SystemInstruction: opts.SystemInstruction,
			Images:            opts.Images,
			Files:             opts.Files,
			URLs:              opts.URLs,
		})
		if data, resp, ok := r.cache.Get(key); ok {
			r.metrics.recordCacheHit()
			return data, *resp, nil
		}
	}

	var failures []string

	data, resp, err := r.callProvider(ctx, primary, prompt, schema, temperature, opts)
	if err == nil {
		r.cacheStore(key, data, resp)
		return data, resp, nil
	}
	failures = append(failures, fmt.Sprintf("%s: %v", primary, err))

	if r.cfg.FallbackEnabled && isRecoverable(err) {
		secondary := r.secondaryOf(primary)
		if _, ok := r.providers[secondary]; ok {
			r.metrics.recordFallback()
			data, resp, err2 := r.callProvider(ctx, secondary, prompt, schema, temperature, opts)
			if err2 == nil {
				r.cacheStore(key, data, resp)
				return data, resp, nil
			}
			failures = append(failures, fmt.Sprintf("%s: %v", secondary, err2))
		}
	}

	return nil, model.LLMResponse{}, fmt.Errorf("%w: all providers failed: %s", core.ErrProviderUnavailable, strings.Join(failures, "; "))
}

// GenerateResponseText produces free-form text, used by callers that parse
// legacy/degraded output themselves (spec §4.1's Response Parser path)
// rather than requesting schema-validated JSON. Same primary/fallback
// policy as GenerateStructured; not cached, since free-text responses
// aren't keyed by a schema identity.
func (r *Router) GenerateResponseText(ctx context.Context, prompt string, temperature float32, opts GenerateOptions) (string, model.LLMResponse, error) {
	r.metrics.recordRequest()
	primary := r.resolvePrimary()

	var failures []string
	text, resp, err := r.callProviderText(ctx, primary, prompt, temperature, opts)
	if err == nil {
		return text, resp, nil
	}
	failures = append(failures, fmt.Sprintf("%s: %v", primary, err))

	if r.cfg.FallbackEnabled && isRecoverable(err) {
		secondary := r.secondaryOf(primary)
		if _, ok := r.providers[secondary]; ok {
			r.metrics.recordFallback()
			text, resp, err2 := r.callProviderText(ctx, secondary, prompt, temperature, opts)
			if err2 == nil {
				return text, resp, nil
			}
			failures = append(failures, fmt.Sprintf("%s: %v", secondary, err2))
		}
	}

	return "", model.LLMResponse{}, fmt.Errorf("%w: all providers failed: %s", core.ErrProviderUnavailable, strings.Join(failures, "; "))
}

func (r *Router) callProviderText(ctx context.Context, name string, prompt string, temperature float32, opts GenerateOptions) (string, model.LLMResponse, error) {
	client, ok := r.providers[name]
	if !ok {
		return "", model.LLMResponse{}, fmt.Errorf("%w: provider %q not configured", core.ErrProviderUnavailable, name)
	}

	aiOpts := &core.AIOptions{
		Model:        r.modelFor(name),
		Temperature:  temperature,
		MaxTokens:    opts.MaxTokens,
		SystemPrompt: opts.SystemInstruction,
		Images:       opts.Images,
		Files:        opts.Files,
		URLs:         opts.URLs,
	}

	start := time.Now()
	var raw *core.AIResponse
	err := r.breakerFor(name).Execute(ctx, func() error {
		var cbErr error
		raw, cbErr = client.GenerateResponse(ctx, prompt, aiOpts)
		return cbErr
	})
	latency := time.Since(start)
	if err != nil {
		return "", model.LLMResponse{}, err
	}

	r.metrics.recordCall(name, raw.Usage.TotalTokens, raw.Cost, latency)
	resp := model.LLMResponse{
		Text:       raw.Content,
		Provider:   name,
		Model:      raw.Model,
		TokensUsed: raw.Usage.TotalTokens,
		LatencyMs:  latency.Milliseconds(),
		Cost:       raw.Cost,
		Timestamp:  time.Now().Unix(),
	}
	return raw.Content, resp, nil
}

func (r *Router) cacheStore(key string, data map[string]interface{}, resp model.LLMResponse) {
	if key == "" || r.cache == nil {
		return
	}
	_ = r.cache.Set(key, data, resp, r.cfg.CacheTTL)
}

func (r *Router) callProvider(ctx context.Context, name string, prompt string, schema *core.Schema, temperature float32, opts GenerateOptions) (map[string]interface{}, model.LLMResponse, error) {
	client, ok := r.providers[name]
	if !ok {
		return nil, model.LLMResponse{}, fmt.Errorf("%w: provider %q not configured", core.ErrProviderUnavailable, name)
	}

	aiOpts := &core.AIOptions{
		Model:        r.modelFor(name),
		Temperature:  temperature,
		MaxTokens:    opts.MaxTokens,
		SystemPrompt: opts.SystemInstruction,
		Images:       opts.Images,
		Files:        opts.Files,
		URLs:         opts.URLs,
	}

	start := time.Now()
	var structured *core.StructuredResponse
	err := r.breakerFor(name).Execute(ctx, func() error {
		var cbErr error
		structured, cbErr = client.GenerateStructured(ctx, prompt, schema, aiOpts)
		return cbErr
	})
	latency := time.Since(start)
	if err != nil {
		return nil, model.LLMResponse{}, err
	}

	tokens := structured.Raw.Usage.TotalTokens
	cost := structured.Raw.Cost
	r.metrics.recordCall(name, tokens, cost, latency)

	resp := model.LLMResponse{
		Text:       structured.Raw.Content,
		Provider:   name,
		Model:      structured.Raw.Model,
		TokensUsed: tokens,
		LatencyMs:  latency.Milliseconds(),
		Cost:       cost,
		Cached:     false,
		Timestamp:  time.Now().Unix(),
	}
	return structured.Data, resp, nil
}

// isRecoverable reports whether a primary-provider failure should trigger
// fallback to the secondary provider. Cancellation/deadline errors are not
// recoverable: they must propagate immediately rather than trying another
// provider (spec §7 "Cancelled").
func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return !isCancellation(err)
}

func isCancellation(err error) bool {
	return strings.Contains(err.Error(), "context canceled") ||
		strings.Contains(err.Error(), "context deadline exceeded")
}

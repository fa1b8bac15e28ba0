package core

import (
	"context"
	"sync"
)

// Logger is the minimal structured logging interface used throughout the
// orchestrator. Every component accepts one so behavior can be observed
// without coupling to a concrete logging backend.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with a component label so a single
// process-wide logging configuration can still be filtered per subsystem:
//
//	"orchestrator/router"   - LLM provider selection and fallback
//	"orchestrator/cache"    - disk-backed response cache
//	"orchestrator/stage"    - pipeline stage execution
//	"orchestrator/monitor"  - batch call accounting
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is the optional tracing/metrics facade. Components degrade to
// NoOpTelemetry when none is configured.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a single telemetry span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// AIClient is the contract every LLM provider implements. GenerateResponse
// returns free-form text; GenerateStructured additionally validates the
// response against a JSON schema and reports the strategy used to recover
// it when the model does not return clean JSON.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, options *AIOptions) (*AIResponse, error)
	GenerateStructured(ctx context.Context, prompt string, schema *Schema, options *AIOptions) (*StructuredResponse, error)
}

// AIOptions configures a single generation call. Files and URLs are only
// honored by providers that advertise multi-modal support (spec §4.3); a
// provider that doesn't support a given modality ignores it with a
// warning rather than failing the call.
type AIOptions struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	Images       []string
	Files        []string
	URLs         []string
}

// AIResponse is the result of a free-form generation call.
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
	Cost    float64
	Cached  bool
}

// Schema describes the shape a structured generation call must satisfy.
// Name identifies the schema for cache-key composition; Definition is the
// JSON-schema-like document passed to the provider (or rendered into the
// prompt for providers without native structured-output support).
type Schema struct {
	Name       string
	Definition map[string]interface{}
}

// StructuredResponse is the result of a schema-validated generation call.
type StructuredResponse struct {
	Raw      *AIResponse
	Data     map[string]interface{}
	Strategy string
}

// TokenUsage reports token accounting for a single call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NoOpLogger discards everything. Used as the zero-value default.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// NoOpTelemetry discards spans and metrics.
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan discards span events.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// ============================================================================
// Global Registry Pattern for Telemetry Integration
// ============================================================================

// MetricsRegistry lets the telemetry package register itself with core
// without creating an import cycle, so internal components (router, cache,
// batch monitor) can emit metrics through core.GetGlobalMetricsRegistry()
// regardless of which package wires up the concrete provider.
type MetricsRegistry interface {
	Counter(name string, labels ...string)
	EmitWithContext(ctx context.Context, name string, value float64, labels ...string)
	GetBaggage(ctx context.Context) map[string]string
	Gauge(name string, value float64, labels ...string)
	Histogram(name string, value float64, labels ...string)
}

var globalMetricsRegistry MetricsRegistry

// SetMetricsRegistry allows the telemetry package to register itself.
func SetMetricsRegistry(registry MetricsRegistry) {
	globalMetricsRegistry = registry
	enableMetricsOnExistingLoggers()
}

// GetGlobalMetricsRegistry returns the global metrics registry, or nil if
// none has been configured yet.
func GetGlobalMetricsRegistry() MetricsRegistry {
	return globalMetricsRegistry
}

var createdLoggers []*ProductionLogger
var loggersMutex sync.RWMutex

func trackLogger(logger *ProductionLogger) {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	createdLoggers = append(createdLoggers, logger)

	if globalMetricsRegistry != nil {
		logger.EnableMetrics()
	}
}

func enableMetricsOnExistingLoggers() {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	for _, logger := range createdLoggers {
		logger.EnableMetrics()
	}
}

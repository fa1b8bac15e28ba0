package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the orchestrator. It supports a
// three-layer priority: defaults (lowest), environment variables (medium),
// functional options (highest).
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithProvider("local"),
//	    WithModelTier("balanced"),
//	    WithCacheEnabled(true),
//	)
type Config struct {
	// LLM provider/routing settings.
	LLM LLMSettings `json:"llm"`

	// Disk-backed response cache settings.
	Cache CacheSettings `json:"cache"`

	// Resilience settings applied to every agent call.
	Resilience ResilienceConfig `json:"resilience"`

	// Logging configuration.
	Logging LoggingConfig `json:"logging"`

	// Development configuration.
	Development DevelopmentConfig `json:"development"`

	logger Logger `json:"-"`
}

// LLMSettings controls provider selection and model-tier routing.
type LLMSettings struct {
	Provider          string        `json:"provider" env:"MADSPARK_LLM_PROVIDER" default:"auto"`
	ModelTier         string        `json:"model_tier" env:"MADSPARK_MODEL_TIER" default:"balanced"`
	FallbackEnabled   bool          `json:"fallback_enabled" env:"MADSPARK_FALLBACK_ENABLED" default:"true"`
	Temperature       float32       `json:"temperature" default:"0.7"`
	MaxTokens         int           `json:"max_tokens" default:"2000"`
	Timeout           time.Duration `json:"timeout" default:"30s"`
	LocalHost         string        `json:"local_host" env:"OLLAMA_HOST" default:"http://localhost:11434"`
	LocalModelFast    string        `json:"local_model_fast" env:"OLLAMA_MODEL_FAST" default:"llama3.2:1b"`
	LocalModelBalance string        `json:"local_model_balanced" env:"OLLAMA_MODEL_BALANCED" default:"llama3.2"`
	RemoteAPIKey      string        `json:"-" env:"GOOGLE_API_KEY"`
	RemoteModel       string        `json:"remote_model" env:"GOOGLE_GENAI_MODEL" default:"gemini-1.5-flash"`
	MaxRetries        int           `json:"max_retries" env:"MADSPARK_MAX_RETRIES" default:"3"`
	RetryDelay        time.Duration `json:"retry_delay" default:"500ms"`
}

// CacheSettings controls the disk-backed response cache.
type CacheSettings struct {
	Enabled    bool          `json:"enabled" env:"MADSPARK_CACHE_ENABLED" default:"true"`
	TTL        time.Duration `json:"ttl" env:"MADSPARK_CACHE_TTL" default:"86400s"`
	MaxSizeMB  int           `json:"max_size_mb" env:"MADSPARK_CACHE_MAX_SIZE_MB" default:"1000"`
	Dir        string        `json:"dir" env:"MADSPARK_CACHE_DIR"`
}

// ResilienceConfig controls the retry wrapper applied to agent callers.
type ResilienceConfig struct {
	Retry RetryPreset `json:"retry"`
}

// RetryPreset mirrors resilience.RetryConfig in a config-friendly shape.
type RetryPreset struct {
	MaxAttempts   int           `json:"max_attempts" default:"3"`
	InitialDelay  time.Duration `json:"initial_delay" default:"500ms"`
	MaxDelay      time.Duration `json:"max_delay" default:"5s"`
	BackoffFactor float64       `json:"backoff_factor" default:"2.0"`
}

// LoggingConfig controls the orchestrator's structured logger.
type LoggingConfig struct {
	Level      string `json:"level" env:"GOMIND_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"GOMIND_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"GOMIND_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" default:"2006-01-02T15:04:05.999999999Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"GOMIND_DEV_MODE" default:"false"`
	MockLLM      bool `json:"mock_llm" env:"MADSPARK_MOCK_LLM" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"GOMIND_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"GOMIND_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMSettings{
			Provider:          "auto",
			ModelTier:         "balanced",
			FallbackEnabled:   true,
			Temperature:       0.7,
			MaxTokens:         2000,
			Timeout:           30 * time.Second,
			LocalHost:         "http://localhost:11434",
			LocalModelFast:    "llama3.2:1b",
			LocalModelBalance: "llama3.2",
			RemoteModel:       "gemini-1.5-flash",
			MaxRetries:        3,
			RetryDelay:        500 * time.Millisecond,
		},
		Cache: CacheSettings{
			Enabled:   true,
			TTL:       24 * time.Hour,
			MaxSizeMB: 1000,
		},
		Resilience: ResilienceConfig{
			Retry: RetryPreset{
				MaxAttempts:   3,
				InitialDelay:  500 * time.Millisecond,
				MaxDelay:      5 * time.Second,
				BackoffFactor: 2.0,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			MockLLM:      false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables and validates
// the result. Environment variables take precedence over defaults but are
// overridden by functional options applied after this call.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("loading configuration from environment", map[string]interface{}{
			"config_source": "environment_variables",
		})
	}

	loaded := 0
	note := func(setting, envVar string) {
		loaded++
		if c.logger != nil {
			c.logger.Debug("configuration loaded", map[string]interface{}{
				"setting": setting,
				"source":  envVar,
			})
		}
	}
	warn := func(envVar, value string, err error) {
		if c.logger != nil {
			c.logger.Warn("invalid environment variable, using default", map[string]interface{}{
				envVar: value,
				"error": err.Error(),
			})
		}
	}

	if v := os.Getenv("MADSPARK_LLM_PROVIDER"); v != "" {
		switch v {
		case "local", "remote", "auto", "mock":
			c.LLM.Provider = v
			note("provider", "MADSPARK_LLM_PROVIDER")
		default:
			warn("MADSPARK_LLM_PROVIDER", v, fmt.Errorf("unknown provider %q", v))
		}
	}
	if v := os.Getenv("MADSPARK_MODEL_TIER"); v != "" {
		switch v {
		case "fast", "balanced", "quality":
			c.LLM.ModelTier = v
			note("model_tier", "MADSPARK_MODEL_TIER")
		default:
			warn("MADSPARK_MODEL_TIER", v, fmt.Errorf("unknown tier %q", v))
		}
	}
	if v := os.Getenv("MADSPARK_FALLBACK_ENABLED"); v != "" {
		c.LLM.FallbackEnabled = parseBool(v)
		note("fallback_enabled", "MADSPARK_FALLBACK_ENABLED")
	}
	if v := os.Getenv("MADSPARK_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.LLM.MaxRetries = n
			note("max_retries", "MADSPARK_MAX_RETRIES")
		} else {
			warn("MADSPARK_MAX_RETRIES", v, fmt.Errorf("must be a non-negative integer"))
		}
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.LLM.LocalHost = v
		note("local_host", "OLLAMA_HOST")
	}
	if v := os.Getenv("OLLAMA_MODEL_FAST"); v != "" {
		c.LLM.LocalModelFast = v
		note("local_model_fast", "OLLAMA_MODEL_FAST")
	}
	if v := os.Getenv("OLLAMA_MODEL_BALANCED"); v != "" {
		c.LLM.LocalModelBalance = v
		note("local_model_balanced", "OLLAMA_MODEL_BALANCED")
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.LLM.RemoteAPIKey = v
		note("remote_api_key", "GOOGLE_API_KEY")
	}
	if v := os.Getenv("GOOGLE_GENAI_MODEL"); v != "" {
		c.LLM.RemoteModel = v
		note("remote_model", "GOOGLE_GENAI_MODEL")
	}

	if v := os.Getenv("MADSPARK_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
		note("cache_enabled", "MADSPARK_CACHE_ENABLED")
	}
	if v := os.Getenv("MADSPARK_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Cache.TTL = time.Duration(secs) * time.Second
			note("cache_ttl", "MADSPARK_CACHE_TTL")
		} else {
			warn("MADSPARK_CACHE_TTL", v, fmt.Errorf("must be a positive integer number of seconds"))
		}
	}
	if v := os.Getenv("MADSPARK_CACHE_MAX_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cache.MaxSizeMB = n
			note("cache_max_size_mb", "MADSPARK_CACHE_MAX_SIZE_MB")
		} else {
			warn("MADSPARK_CACHE_MAX_SIZE_MB", v, fmt.Errorf("must be a positive integer"))
		}
	}
	if v := os.Getenv("MADSPARK_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
		note("cache_dir", "MADSPARK_CACHE_DIR")
	}

	if v := os.Getenv("GOMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
		note("log_level", "GOMIND_LOG_LEVEL")
	}
	if v := os.Getenv("GOMIND_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
		note("log_format", "GOMIND_LOG_FORMAT")
	}
	if v := os.Getenv("GOMIND_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		note("debug_logging", "GOMIND_DEBUG")
	}
	if v := os.Getenv("MADSPARK_MOCK_LLM"); v != "" {
		c.Development.MockLLM = parseBool(v)
		note("mock_llm", "MADSPARK_MOCK_LLM")
	}
	if v := os.Getenv("GOMIND_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
		note("log_output", "GOMIND_LOG_OUTPUT")
	}
	if v := os.Getenv("GOMIND_DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		note("dev_mode", "GOMIND_DEV_MODE")
	}
	if v := os.Getenv("GOMIND_PRETTY_LOGS"); v != "" {
		c.Development.PrettyLogs = parseBool(v)
		note("pretty_logs", "GOMIND_PRETTY_LOGS")
	}

	if c.logger != nil {
		c.logger.Info("configuration loaded", map[string]interface{}{
			"env_vars_loaded": loaded,
		})
	}

	return c.Validate()
}

// Validate checks the configuration for invalid or placeholder values.
func (c *Config) Validate() error {
	switch c.LLM.ModelTier {
	case "fast", "balanced", "quality":
	default:
		return fmt.Errorf("%w: invalid model tier %q", ErrInvalidConfiguration, c.LLM.ModelTier)
	}
	switch c.LLM.Provider {
	case "local", "remote", "auto", "mock":
	default:
		return fmt.Errorf("%w: invalid provider %q", ErrInvalidConfiguration, c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range [0,2]", ErrInvalidConfiguration, c.LLM.Temperature)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfiguration)
	}
	if c.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max attempts must be at least 1", ErrInvalidConfiguration)
	}
	return nil
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return strings.EqualFold(s, "yes") || strings.EqualFold(s, "on")
	}
	return v
}

// WithProvider sets the LLM provider ("local", "remote", "auto", "mock").
func WithProvider(provider string) Option {
	return func(c *Config) error {
		c.LLM.Provider = provider
		return nil
	}
}

// WithModelTier sets the model tier ("fast", "balanced", "quality").
func WithModelTier(tier string) Option {
	return func(c *Config) error {
		c.LLM.ModelTier = tier
		return nil
	}
}

// WithFallbackEnabled toggles provider/tier fallback.
func WithFallbackEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.LLM.FallbackEnabled = enabled
		return nil
	}
}

// WithCacheEnabled toggles the disk-backed response cache.
func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.Cache.Enabled = enabled
		return nil
	}
}

// WithCacheDir overrides the cache directory.
func WithCacheDir(dir string) Option {
	return func(c *Config) error {
		c.Cache.Dir = dir
		return nil
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithDevelopmentMode enables development-friendly defaults.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
		}
		return nil
	}
}

// WithMockLLM forces the mock provider regardless of what's configured.
func WithMockLLM(enabled bool) Option {
	return func(c *Config) error {
		c.Development.MockLLM = enabled
		if enabled {
			c.LLM.Provider = "mock"
		}
		return nil
	}
}

// WithLogger attaches a logger used while loading configuration.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig builds a Config from defaults, then environment variables, then
// the supplied functional options, validating the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying config option: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying config option: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability: structured log lines,
// optional trace-context enrichment, and metric emission once telemetry
// registers itself via SetMetricsRegistry.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	logger := &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		debug:       dev.DebugLogging || logging.Level == "debug",
		serviceName: serviceName,
		format:      logging.Format,
		output:      output,
	}
	trackLogger(logger)
	return logger
}

// EnableMetrics is called by the telemetry package to enable the metrics layer.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// WithComponent returns a logger that tags every line with component.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &componentLogger{base: p, component: component}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	p.logEventComponent(level, "", msg, fields, ctx)
}

func (p *ProductionLogger) logEventComponent(level, component, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"message":   msg,
		}
		if component != "" {
			logEntry["component"] = component
		}
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}
		for k, v := range fields {
			logEntry[k] = v
		}
		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}
		compInfo := ""
		if component != "" {
			compInfo = fmt.Sprintf("[%s] ", component)
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s%s\n",
			timestamp, level, p.serviceName, compInfo, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, component, fields, ctx)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level, component string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{"level", level, "service", p.serviceName}
	if component != "" {
		labels = append(labels, "component", component)
	}
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "provider", "stage":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "orchestrator.log_events", 1.0, labels...)
	} else {
		emitMetric("orchestrator.log_events", 1.0, labels...)
	}
}

// componentLogger decorates a ProductionLogger with a fixed component tag.
type componentLogger struct {
	base      *ProductionLogger
	component string
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.logEventComponent("INFO", c.component, msg, fields, nil)
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.logEventComponent("ERROR", c.component, msg, fields, nil)
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.logEventComponent("WARN", c.component, msg, fields, nil)
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	if c.base.debug {
		c.base.logEventComponent("DEBUG", c.component, msg, fields, nil)
	}
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEventComponent("INFO", c.component, msg, fields, ctx)
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEventComponent("ERROR", c.component, msg, fields, ctx)
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.logEventComponent("WARN", c.component, msg, fields, ctx)
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.base.debug {
		c.base.logEventComponent("DEBUG", c.component, msg, fields, ctx)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}

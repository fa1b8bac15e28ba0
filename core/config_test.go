package core

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.LLM.Provider)
	assert.Equal(t, "balanced", cfg.LLM.ModelTier)
	assert.True(t, cfg.LLM.FallbackEnabled)
	assert.Equal(t, float32(0.7), cfg.LLM.Temperature)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxSizeMB)

	assert.Equal(t, 3, cfg.Resilience.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Resilience.Retry.InitialDelay)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("overrides provider and tier", func(t *testing.T) {
		os.Setenv("MADSPARK_LLM_PROVIDER", "local")
		os.Setenv("MADSPARK_MODEL_TIER", "quality")
		defer os.Unsetenv("MADSPARK_LLM_PROVIDER")
		defer os.Unsetenv("MADSPARK_MODEL_TIER")

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromEnv())

		assert.Equal(t, "local", cfg.LLM.Provider)
		assert.Equal(t, "quality", cfg.LLM.ModelTier)
	})

	t.Run("ignores invalid provider and keeps default", func(t *testing.T) {
		os.Setenv("MADSPARK_LLM_PROVIDER", "bogus")
		defer os.Unsetenv("MADSPARK_LLM_PROVIDER")

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromEnv())

		assert.Equal(t, "auto", cfg.LLM.Provider)
	})

	t.Run("cache settings from env", func(t *testing.T) {
		os.Setenv("MADSPARK_CACHE_ENABLED", "false")
		os.Setenv("MADSPARK_CACHE_TTL", "3600")
		os.Setenv("MADSPARK_CACHE_MAX_SIZE_MB", "50")
		defer os.Unsetenv("MADSPARK_CACHE_ENABLED")
		defer os.Unsetenv("MADSPARK_CACHE_TTL")
		defer os.Unsetenv("MADSPARK_CACHE_MAX_SIZE_MB")

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromEnv())

		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, 50, cfg.Cache.MaxSizeMB)
	})

	t.Run("invalid cache ttl falls back to default", func(t *testing.T) {
		os.Setenv("MADSPARK_CACHE_TTL", "-5")
		defer os.Unsetenv("MADSPARK_CACHE_TTL")

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromEnv())

		assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	})
}

func TestNewConfigWithOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithProvider("mock"),
		WithModelTier("fast"),
		WithCacheEnabled(false),
	)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "fast", cfg.LLM.ModelTier)
	assert.False(t, cfg.Cache.Enabled)
}

func TestWithMockLLMForcesProvider(t *testing.T) {
	cfg, err := NewConfig(WithMockLLM(true))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.True(t, cfg.Development.MockLLM)
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.ModelTier = "extreme"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.LLM.Provider = "bogus"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.LLM.Temperature = 5
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.Cache.TTL = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.Resilience.Retry.MaxAttempts = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
}

func TestProductionLoggerFormats(t *testing.T) {
	logging := LoggingConfig{Level: "debug", Format: "json", Output: "stdout"}
	dev := DevelopmentConfig{DebugLogging: true}

	logger := NewProductionLogger(logging, dev, "orchestrator-test")
	require.NotNil(t, logger)

	logger.Info("test message", map[string]interface{}{"stage": "generate"})
	logger.Debug("debug message", nil)

	component, ok := logger.(ComponentAwareLogger)
	require.True(t, ok)
	scoped := component.WithComponent("router")
	scoped.Warn("provider unavailable", map[string]interface{}{"provider": "local"})
}

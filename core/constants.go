package core

import "time"

// Environment variable names recognized by Config.LoadFromEnv.
const (
	EnvLLMProvider      = "MADSPARK_LLM_PROVIDER"
	EnvModelTier        = "MADSPARK_MODEL_TIER"
	EnvFallbackEnabled  = "MADSPARK_FALLBACK_ENABLED"
	EnvCacheEnabled     = "MADSPARK_CACHE_ENABLED"
	EnvCacheTTL         = "MADSPARK_CACHE_TTL"
	EnvCacheMaxSizeMB   = "MADSPARK_CACHE_MAX_SIZE_MB"
	EnvCacheDir         = "MADSPARK_CACHE_DIR"
	EnvMockLLM          = "MADSPARK_MOCK_LLM"
	EnvDevMode          = "GOMIND_DEV_MODE"
)

// Model tiers accepted by LLMSettings.ModelTier.
const (
	ModelTierFast     = "fast"
	ModelTierBalanced = "balanced"
	ModelTierQuality  = "quality"
)

// Provider identifiers accepted by LLMSettings.Provider.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
	ProviderAuto   = "auto"
	ProviderMock   = "mock"
)

// DefaultCacheTTL is applied when MADSPARK_CACHE_TTL is unset or invalid.
const DefaultCacheTTL = 24 * time.Hour

// DefaultHealthCheckTTL is how long a provider's health-check result is
// cached before being re-probed.
const DefaultHealthCheckTTL = 30 * time.Second

// MaxPromptSegmentForKey is the length above which a cache-key component
// is hashed instead of embedded verbatim.
const MaxPromptSegmentForKey = 10_000

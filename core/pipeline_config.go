package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is optional YAML-file tuning data layered on top of
// Config's defaults/env/options precedence (it is loaded once at startup,
// alongside LoadFromEnv, and never overrides a functional option). A
// missing or empty path means "use built-in defaults everywhere" — every
// field here is additive, not required. Grounded on the teacher's
// orchestration/workflow_engine.go YAML-defined workflow steps and
// pkg/capabilities/dual.go's YAML parsing.
type PipelineConfig struct {
	// DimensionWeights overrides the multi-dimensional evaluator's default
	// uniform per-dimension weighting. Keys are dimension names
	// ("feasibility", "innovation", ...); values should sum to ~1.0. A nil
	// or empty map leaves the evaluator's uniform default untouched.
	DimensionWeights map[string]float64 `yaml:"dimension_weights"`

	// TemperatureOverrides replaces a named preset's base temperature
	// ("conservative", "balanced", "creative", "wild") with an explicit
	// value in [0, 1], bypassing temperature.BaseFromPreset for that name.
	TemperatureOverrides map[string]float64 `yaml:"temperature_overrides"`

	// ModelsByTier maps a model tier to a model identifier: "fast" and
	// "balanced" set the local provider's models for those tiers, and
	// "quality" sets the remote provider's model. An unset tier keeps the
	// model named in Config's LLM settings.
	ModelsByTier map[string]string `yaml:"models_by_tier"`
}

// LoadPipelineConfig reads and parses a YAML pipeline-tuning file. A path
// of "" is not an error: it returns an empty PipelineConfig so callers can
// unconditionally call this and get defaults when no file is configured.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	if path == "" {
		return &PipelineConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline config %q: %w", path, err)
	}
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing pipeline config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects out-of-range values before they reach the evaluator or
// temperature manager.
func (c *PipelineConfig) Validate() error {
	sum := 0.0
	for name, w := range c.DimensionWeights {
		if w < 0 {
			return fmt.Errorf("%w: dimension weight %q must be non-negative, got %v", ErrInvalidConfiguration, name, w)
		}
		sum += w
	}
	if len(c.DimensionWeights) > 0 && (sum < 0.99 || sum > 1.01) {
		return fmt.Errorf("%w: dimension_weights must sum to ~1.0, got %v", ErrInvalidConfiguration, sum)
	}
	for name, t := range c.TemperatureOverrides {
		if t < 0 || t > 1 {
			return fmt.Errorf("%w: temperature_overrides[%q] must be in [0, 1], got %v", ErrInvalidConfiguration, name, t)
		}
	}
	return nil
}

// Package temperature maps a pipeline stage and a preset or explicit base
// temperature to the float value passed to the LLM provider.
package temperature

import "fmt"

// Preset is a named temperature starting point.
type Preset string

const (
	PresetConservative Preset = "conservative"
	PresetBalanced     Preset = "balanced"
	PresetCreative     Preset = "creative"
	PresetWild         Preset = "wild"
)

var presetValues = map[Preset]float64{
	PresetConservative: 0.3,
	PresetBalanced:     0.5,
	PresetCreative:     0.7,
	PresetWild:         0.9,
}

// Stage identifies which pipeline stage a temperature is being computed
// for, since generation and critique stages apply different multipliers.
type Stage string

const (
	StageGenerate   Stage = "generate"
	StageEvaluate   Stage = "evaluate"
	StageAdvocate   Stage = "advocate"
	StageSkeptic    Stage = "skeptic"
	StageImprove    Stage = "improve"
	StageReevaluate Stage = "reevaluate"
)

const (
	generateMultiplier = 1.3
	generateCap        = 0.95
	criticMultiplier   = 0.5
	criticFloor        = 0.1
)

// BaseFromPreset resolves a named preset to its base temperature. It
// returns an error for an unrecognised preset name rather than guessing.
func BaseFromPreset(preset Preset) (float64, error) {
	v, ok := presetValues[preset]
	if !ok {
		return 0, fmt.Errorf("unknown temperature preset %q", preset)
	}
	return v, nil
}

// ForStage derives the final temperature for a stage from a base
// temperature, applying the stage's multiplier and clamping to [0.0, 1.0].
func ForStage(stage Stage, base float64) float64 {
	t := base
	switch stage {
	case StageGenerate:
		t = base * generateMultiplier
		if t > generateCap {
			t = generateCap
		}
	case StageEvaluate, StageReevaluate:
		t = base * criticMultiplier
		if t < criticFloor {
			t = criticFloor
		}
	}
	return clamp(t, 0.0, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

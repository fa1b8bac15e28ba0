package orchestrator

import (
	"fmt"
	"time"

	"github.com/ideagrid/orchestrator/model"
	"github.com/ideagrid/orchestrator/novelty"
	"github.com/ideagrid/orchestrator/temperature"
)

// Default timeouts and limits (spec.md §4.8 "Timeouts", §6 "options").
const (
	DefaultPerCallTimeout  = 30 * time.Second
	DefaultPerStageTimeout = 60 * time.Second
	DefaultOverallTimeout  = 1200 * time.Second

	MinTopCandidates     = 1
	MaxTopCandidates     = 10
	DefaultTopCandidates = 1
)

// ProgressFunc is invoked at each stage boundary with a human-readable
// message and a 0.0..1.0 completion estimate. A panic or any error
// surfaced by the callback is caught and logged; it never aborts the
// workflow (spec.md §4.8 "Progress callback").
type ProgressFunc func(message string, progress float64)

// RunOptions configures a single workflow run (spec.md §6 "options").
type RunOptions struct {
	NumTopCandidates int

	TemperaturePreset temperature.Preset
	Temperature       *float64 // explicit base temperature, overrides TemperaturePreset

	EnhancedReasoning     bool // advocate + skeptic; ON by default
	MultiDimensionalEval  bool
	LogicalInference      bool
	LogicalInferenceType  model.AnalysisType

	NoveltyFilterEnabled bool
	SimilarityThreshold  float64

	Timeout         time.Duration
	PerCallTimeout  time.Duration
	PerStageTimeout time.Duration

	Progress ProgressFunc
}

// DefaultRunOptions returns the option set spec.md §6 describes as default:
// one top candidate, balanced temperature, advocate+skeptic and the
// novelty filter both on, everything else off.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		NumTopCandidates:     DefaultTopCandidates,
		TemperaturePreset:    temperature.PresetBalanced,
		EnhancedReasoning:    true,
		NoveltyFilterEnabled: true,
		SimilarityThreshold:  novelty.DefaultThreshold,
		LogicalInferenceType: model.AnalysisFull,
		Timeout:              DefaultOverallTimeout,
		PerCallTimeout:       DefaultPerCallTimeout,
		PerStageTimeout:      DefaultPerStageTimeout,
	}
}

// normalize fills every zero-valued field with its default and clamps
// bounded fields, so stage code never has to special-case an unset option.
func (o RunOptions) normalize() (RunOptions, error) {
	out := o
	if out.NumTopCandidates == 0 {
		out.NumTopCandidates = DefaultTopCandidates
	}
	if out.NumTopCandidates < MinTopCandidates || out.NumTopCandidates > MaxTopCandidates {
		return out, fmt.Errorf("num_top_candidates must be in [%d, %d], got %d", MinTopCandidates, MaxTopCandidates, out.NumTopCandidates)
	}
	if out.TemperaturePreset == "" {
		out.TemperaturePreset = temperature.PresetBalanced
	}
	if out.SimilarityThreshold == 0 {
		out.SimilarityThreshold = novelty.DefaultThreshold
	}
	if out.LogicalInferenceType == "" {
		out.LogicalInferenceType = model.AnalysisFull
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultOverallTimeout
	}
	if out.PerCallTimeout <= 0 {
		out.PerCallTimeout = DefaultPerCallTimeout
	}
	if out.PerStageTimeout <= 0 {
		out.PerStageTimeout = DefaultPerStageTimeout
	}
	return out, nil
}

// baseTemperature resolves the run's base temperature from an explicit
// override or a named preset.
func (o RunOptions) baseTemperature() (float64, error) {
	if o.Temperature != nil {
		t := *o.Temperature
		if t < 0 || t > 1 {
			return 0, fmt.Errorf("temperature must be in [0, 1], got %v", t)
		}
		return t, nil
	}
	return temperature.BaseFromPreset(o.TemperaturePreset)
}

// report invokes the progress callback, swallowing a panic so a broken
// caller-supplied callback can never take down the workflow.
func (o RunOptions) report(message string, progress float64) {
	if o.Progress == nil {
		return
	}
	defer func() { _ = recover() }()
	o.Progress(message, progress)
}

package orchestrator

import (
	"context"
	"fmt"

	"github.com/ideagrid/orchestrator/model"
)

// Run executes one full workflow: generate, evaluate, select, advocate and
// skeptic (in parallel), improve, and re-evaluate (spec.md §4.8). The
// returned slice has exactly opts.NumTopCandidates entries (clamped to the
// number of ideas actually generated), each fully enriched. Run only
// returns an error for conditions the orchestrator itself treats as fatal:
// invalid options, an unsupported temperature, or the run's overall
// deadline/cancellation being reached between stages — every other failure
// degrades in place rather than aborting (P1, P11).
func (o *Orchestrator) Run(ctx context.Context, topic, context_ string, opts RunOptions) ([]model.EnrichedIdea, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	base, err := opts.baseTemperature()
	if err != nil {
		return nil, err
	}
	if cb := opts.Progress; cb != nil {
		opts.Progress = func(message string, progress float64) {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Warn("progress callback panicked", map[string]interface{}{"message": message, "panic": fmt.Sprint(r)})
				}
			}()
			cb(message, progress)
		}
	}

	runID := NewRunID()
	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	opts.report("generating ideas", 0.0)
	ideas, _, err := o.generateStage(runCtx, topic, context_, base, opts)
	o.checkpoint(ctx, runID, topic, "generate", err)
	if err != nil {
		return nil, fmt.Errorf("generate stage: %w", err)
	}
	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	opts.report("evaluating ideas", 1.0/6.0)
	_, err = o.evaluateStage(runCtx, ideas, context_, base, opts)
	o.checkpoint(ctx, runID, topic, "evaluate", err)
	if err != nil {
		return nil, fmt.Errorf("evaluate stage: %w", err)
	}
	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	opts.report("selecting top candidates", 2.0/6.0)
	candidates := selectTopN(ideas, opts.NumTopCandidates)
	o.checkpoint(ctx, runID, topic, "select", nil)

	opts.report("advocating and challenging", 3.0/6.0)
	err = o.advocateSkepticStage(runCtx, topic, candidates, context_, base, opts)
	o.checkpoint(ctx, runID, topic, "advocate_skeptic", err)
	if err != nil {
		return nil, fmt.Errorf("advocate/skeptic stage: %w", err)
	}
	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	opts.report("improving ideas", 4.0/6.0)
	err = o.improveStage(runCtx, candidates, context_, base, opts)
	o.checkpoint(ctx, runID, topic, "improve", err)
	if err != nil {
		return nil, fmt.Errorf("improve stage: %w", err)
	}
	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	opts.report("re-evaluating improvements", 5.0/6.0)
	err = o.reevaluateStage(runCtx, candidates, context_, base, opts)
	o.checkpoint(ctx, runID, topic, "reevaluate", err)
	if err != nil {
		return nil, fmt.Errorf("re-evaluate stage: %w", err)
	}

	opts.report("done", 1.0)
	o.checkpoint(ctx, runID, topic, "done", nil)

	out := make([]model.EnrichedIdea, len(candidates))
	for i, c := range candidates {
		out[i] = model.NewEnrichedIdea(c)
	}
	return out, nil
}

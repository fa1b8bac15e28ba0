package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ideagrid/orchestrator/agents"
	"github.com/ideagrid/orchestrator/batch"
	"github.com/ideagrid/orchestrator/model"
	"github.com/ideagrid/orchestrator/novelty"
	"github.com/ideagrid/orchestrator/temperature"
)

// stageContext derives a child context bounded by the run's per-stage
// timeout (spec.md §4.8: every stage is wrapped in its own timeout nested
// inside the overall run timeout).
func stageContext(ctx context.Context, opts RunOptions) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opts.PerStageTimeout)
}

// generateStage produces the initial idea pool (stage 1) and, when enabled,
// removes near-duplicates via the novelty filter before anything downstream
// spends a call scoring them.
func (o *Orchestrator) generateStage(ctx context.Context, topic, context_ string, base float64, opts RunOptions) ([]model.Idea, int, error) {
	stageCtx, cancel := stageContext(ctx, opts)
	defer cancel()

	temp := float32(temperature.ForStage(temperature.StageGenerate, base))

	var ideas []model.Idea
	var tokens int
	err := o.callWithTimeout(stageCtx, opts.PerCallTimeout, func(ctx context.Context) error {
		var err error
		ideas, tokens, err = agents.GenerateIdeas(ctx, o.router, topic, context_, temp)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	if opts.NoveltyFilterEnabled && len(ideas) > 1 {
		texts := make([]string, len(ideas))
		for i, idea := range ideas {
			texts[i] = idea.Text
		}
		kept := novelty.Filter(texts, opts.SimilarityThreshold)
		filtered := make([]model.Idea, len(kept))
		for i, idx := range kept {
			filtered[i] = ideas[idx]
		}
		ideas = filtered
	}

	return ideas, tokens, nil
}

// evaluateStage scores every idea with a single batched critic call (stage
// 2), writing Score and Critique back onto each idea in place.
func (o *Orchestrator) evaluateStage(ctx context.Context, ideas []model.Idea, context_ string, base float64, opts RunOptions) (int, error) {
	stageCtx, cancel := stageContext(ctx, opts)
	defer cancel()

	temp := float32(temperature.ForStage(temperature.StageEvaluate, base))
	texts := make([]string, len(ideas))
	for i, idea := range ideas {
		texts[i] = idea.Text
	}

	var evaluations []model.Evaluation
	var tokens int
	err := o.callWithTimeout(stageCtx, opts.PerCallTimeout, func(ctx context.Context) error {
		var err error
		evaluations, tokens, err = agents.EvaluateIdeas(ctx, o.router, texts, context_, temp)
		return err
	})
	if err != nil {
		return 0, err
	}

	for i := range ideas {
		if i < len(evaluations) {
			ideas[i].Score = evaluations[i].Score
			ideas[i].Critique = evaluations[i].Comment
		}
	}
	return tokens, nil
}

// selectTopN stable-sorts a copy of ideas by score descending and returns
// the top n (clamped to the number available), leaving the input untouched.
func selectTopN(ideas []model.Idea, n int) []model.Idea {
	sorted := make([]model.Idea, len(ideas))
	copy(sorted, ideas)
	// Stable sort preserves generation order among equal scores, matching
	// agents.sortByIdeaIndex's ordering discipline elsewhere in the pipeline.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// advocateSkepticStage runs the advocate and skeptic over the selected
// candidates concurrently (stage 4). Per DESIGN.md's resolution of the
// tension between the spec's explicit parallelism mandate and the skeptic
// naturally critiquing the advocate's output, the skeptic is given the same
// evaluation text the advocate receives rather than waiting on the
// advocate's result, so neither branch blocks the other. A third, optional
// branch runs logical inference over the same candidates concurrently with
// both.
func (o *Orchestrator) advocateSkepticStage(ctx context.Context, topic string, candidates []model.Idea, context_ string, base float64, opts RunOptions) error {
	if !opts.EnhancedReasoning && !(opts.LogicalInference && o.inference != nil) {
		return nil
	}

	stageCtx, cancel := stageContext(ctx, opts)
	defer cancel()

	advocateTemp := float32(temperature.ForStage(temperature.StageAdvocate, base))
	skepticTemp := float32(temperature.ForStage(temperature.StageSkeptic, base))

	advocateInputs := make([]agents.AdvocateInput, len(candidates))
	skepticInputs := make([]agents.SkepticInput, len(candidates))
	ideaTexts := make([]string, len(candidates))
	for i, idea := range candidates {
		advocateInputs[i] = agents.AdvocateInput{Idea: idea.Text, Evaluation: idea.Critique}
		skepticInputs[i] = agents.SkepticInput{Idea: idea.Text, Advocacy: idea.Critique}
		ideaTexts[i] = idea.Text
	}

	var wg sync.WaitGroup
	var advocacies []model.Advocacy
	var skepticisms []model.Skepticism
	var inferenceResults []model.InferenceResult
	var advocateTokens, skepticTokens int64

	if opts.EnhancedReasoning {
		wg.Add(2)
		go func() {
			defer wg.Done()
			advocacies = batch.WithFallback(stageCtx, o.monitor, o.logger, "advocate", advocateInputs,
				wrapBatchCall(o, opts.PerCallTimeout, &advocateTokens, func(ctx context.Context, items []agents.AdvocateInput) ([]model.Advocacy, int, error) {
					return agents.AdvocateIdeasBatch(ctx, o.router, items, context_, advocateTemp)
				}),
				wrapItemCall(o, opts.PerCallTimeout, func(ctx context.Context, item agents.AdvocateInput) (model.Advocacy, error) {
					return agents.AdvocateIdea(ctx, o.router, item, context_, advocateTemp)
				}),
				placeholderAdvocacy,
			)
		}()
		go func() {
			defer wg.Done()
			skepticisms = batch.WithFallback(stageCtx, o.monitor, o.logger, "skeptic", skepticInputs,
				wrapBatchCall(o, opts.PerCallTimeout, &skepticTokens, func(ctx context.Context, items []agents.SkepticInput) ([]model.Skepticism, int, error) {
					return agents.CriticizeIdeasBatch(ctx, o.router, items, context_, skepticTemp)
				}),
				wrapItemCall(o, opts.PerCallTimeout, func(ctx context.Context, item agents.SkepticInput) (model.Skepticism, error) {
					return agents.CriticizeIdea(ctx, o.router, item, context_, skepticTemp)
				}),
				placeholderSkepticism,
			)
		}()
	}

	if opts.LogicalInference && o.inference != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.withPermit(stageCtx, func(ctx context.Context) error {
				callCtx, cancel := context.WithTimeout(ctx, opts.PerCallTimeout)
				defer cancel()
				inferenceResults, _ = o.inference.AnalyzeBatch(callCtx, ideaTexts, topic, context_, opts.LogicalInferenceType)
				return nil
			})
		}()
	}

	wg.Wait()

	for i := range candidates {
		if i < len(advocacies) {
			a := advocacies[i]
			candidates[i].Advocacy = &a
		}
		if i < len(skepticisms) {
			s := skepticisms[i]
			candidates[i].Skepticism = &s
		}
		if i < len(inferenceResults) {
			ir := inferenceResults[i]
			candidates[i].LogicalInference = &ir
		}
	}
	return nil
}

// improveStage revises every candidate given its accumulated critique,
// advocacy and skepticism (stage 5).
func (o *Orchestrator) improveStage(ctx context.Context, candidates []model.Idea, context_ string, base float64, opts RunOptions) error {
	stageCtx, cancel := stageContext(ctx, opts)
	defer cancel()

	temp := float32(temperature.ForStage(temperature.StageImprove, base))
	items := make([]agents.ImproveInput, len(candidates))
	for i, idea := range candidates {
		advocacyText := ""
		if idea.Advocacy != nil {
			advocacyText = idea.Advocacy.Formatted
		}
		skepticismText := ""
		if idea.Skepticism != nil {
			skepticismText = idea.Skepticism.Formatted
		}
		items[i] = agents.ImproveInput{
			Idea:       idea.Text,
			Critique:   idea.Critique,
			Advocacy:   advocacyText,
			Skepticism: skepticismText,
		}
	}

	var tokens int64
	improvements := batch.WithFallback(stageCtx, o.monitor, o.logger, "improve", items,
		wrapBatchCall(o, opts.PerCallTimeout, &tokens, func(ctx context.Context, items []agents.ImproveInput) ([]model.Improvement, int, error) {
			return agents.ImproveIdeasBatch(ctx, o.router, items, context_, temp)
		}),
		wrapItemCall(o, opts.PerCallTimeout, func(ctx context.Context, item agents.ImproveInput) (model.Improvement, error) {
			return agents.ImproveIdea(ctx, o.router, item, context_, temp)
		}),
		placeholderImprovement,
	)

	for i := range candidates {
		if i < len(improvements) {
			candidates[i].ImprovedIdea = improvements[i].Display()
		}
	}
	return nil
}

// reevaluateStage re-scores every improved idea (stage 6), optionally
// running a multi-dimensional re-evaluation concurrently with it. If the
// stage's own timeout expires before the re-evaluation call returns, each
// candidate's improved score is estimated by carrying the initial score
// forward and the substitution is recorded in PartialFailures rather than
// failing the run (spec.md §4.8 "Timeout fallback for re-evaluation").
func (o *Orchestrator) reevaluateStage(ctx context.Context, candidates []model.Idea, context_ string, base float64, opts RunOptions) error {
	stageCtx, cancel := stageContext(ctx, opts)
	defer cancel()

	temp := float32(temperature.ForStage(temperature.StageReevaluate, base))
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.ImprovedIdea
	}

	type evalResult struct {
		evaluations []model.Evaluation
		err         error
	}

	var wg sync.WaitGroup
	wg.Add(1)
	evalDone := make(chan evalResult, 1)
	go func() {
		defer wg.Done()
		var evaluations []model.Evaluation
		err := o.callWithTimeout(stageCtx, opts.PerCallTimeout, func(ctx context.Context) error {
			var err error
			evaluations, _, err = agents.EvaluateIdeas(ctx, o.router, texts, context_, temp)
			return err
		})
		evalDone <- evalResult{evaluations: evaluations, err: err}
	}()

	var multiDim []model.MultiDimEvaluation
	if opts.MultiDimensionalEval && o.evaluator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.callWithTimeout(stageCtx, opts.PerCallTimeout, func(ctx context.Context) error {
				var err error
				multiDim, _, err = o.evaluator.EvaluateIdeasBatch(ctx, texts, context_)
				return err
			})
		}()
	}

	wg.Wait()
	r := <-evalDone

	switch {
	case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		substituteEstimatedScores(candidates, "re-evaluation timed out; estimated score substituted from the initial evaluation")
	case r.err != nil:
		substituteEstimatedScores(candidates, "re-evaluation unavailable: "+r.err.Error())
	default:
		for i := range candidates {
			if i < len(r.evaluations) {
				candidates[i].ImprovedScore = r.evaluations[i].Score
				candidates[i].ImprovedCritique = r.evaluations[i].Comment
				candidates[i].ApplyScoreDelta()
			}
		}
	}

	if opts.MultiDimensionalEval && o.evaluator != nil && len(multiDim) == len(candidates) {
		for i := range candidates {
			md := multiDim[i]
			candidates[i].ImprovedMultiDimEvaluation = &md
		}
	}

	return nil
}

func substituteEstimatedScores(candidates []model.Idea, reason string) {
	for i := range candidates {
		candidates[i].ImprovedScore = candidates[i].Score
		candidates[i].ImprovedCritique = candidates[i].Critique
		candidates[i].ApplyScoreDelta()
		candidates[i].PartialFailures = append(candidates[i].PartialFailures, reason)
	}
}

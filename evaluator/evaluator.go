// Package evaluator implements the multi-dimensional evaluator (C6): it
// scores an idea across seven fixed dimensions, each via its own
// structured-output call (or one batched call across all dimensions and
// ideas), then asks for a short natural-language summary. Grounded on
// original_source/tests/test_ai_multidimensional_evaluator.py and
// test_multi_dimensional_batch.py.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
)

// Dimension is one of the seven fixed scoring axes. RiskAssessment is the
// canonical name; SafetyScore is accepted as an input alias only (see
// SPEC_FULL.md §9's dimension-name Open Question).
type Dimension string

const (
	DimensionFeasibility      Dimension = "feasibility"
	DimensionInnovation       Dimension = "innovation"
	DimensionImpact           Dimension = "impact"
	DimensionCostEffectiveness Dimension = "cost_effectiveness"
	DimensionScalability      Dimension = "scalability"
	DimensionRiskAssessment   Dimension = "risk_assessment"
	DimensionTimeline         Dimension = "timeline"
)

// Dimensions lists the seven fixed dimensions in evaluation order.
var Dimensions = []Dimension{
	DimensionFeasibility, DimensionInnovation, DimensionImpact,
	DimensionCostEffectiveness, DimensionScalability, DimensionRiskAssessment, DimensionTimeline,
}

// ScoreRange bounds a dimension score; scores outside it are clamped.
type ScoreRange struct {
	Min float64
	Max float64
}

// DefaultScoreRange is spec.md's default dimension score range.
var DefaultScoreRange = ScoreRange{Min: 1, Max: 10}

// defaultWeights assigns each dimension an equal share (Open Question
// resolution, SPEC_FULL.md §9: no canonical per-dimension default is
// specified, so weights start uniform and sum to 1.0; callers override via
// Options.Weights for a domain-specific emphasis).
func defaultWeights() map[Dimension]float64 {
	w := make(map[Dimension]float64, len(Dimensions))
	each := 1.0 / float64(len(Dimensions))
	for _, d := range Dimensions {
		w[d] = each
	}
	return w
}

// Options configures an Evaluator.
type Options struct {
	Router      *llm.Router
	Logger      core.Logger
	Weights     map[Dimension]float64 // must sum to ~1.0; nil uses uniform weights
	ScoreRange  ScoreRange             // zero value uses DefaultScoreRange
	Temperature float32
}

// Evaluator scores ideas across the seven fixed dimensions.
type Evaluator struct {
	router      *llm.Router
	logger      core.Logger
	weights     map[Dimension]float64
	scoreRange  ScoreRange
	temperature float32
}

// New constructs an Evaluator. A nil Router is a configuration error:
// spec.md §4.6 requires the evaluator fail fast, directing the operator to
// set an API key, rather than silently degrading (unlike the agent callers
// in package agents, which degrade because they're optional enrichments of
// an idea that already has a score).
func New(opts Options) (*Evaluator, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("%w: multi-dimensional evaluator requires a working LLM provider or router; set GOOGLE_API_KEY or configure a local provider",
			core.ErrMissingConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	weights := opts.Weights
	if weights == nil {
		weights = defaultWeights()
	}
	scoreRange := opts.ScoreRange
	if scoreRange == (ScoreRange{}) {
		scoreRange = DefaultScoreRange
	}
	return &Evaluator{
		router:      opts.Router,
		logger:      logger,
		weights:     weights,
		scoreRange:  scoreRange,
		temperature: opts.Temperature,
	}, nil
}

func dimensionScoreSchema(dimension Dimension) *core.Schema {
	return &core.Schema{
		Name: "DimensionScore_" + string(dimension),
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"score":     map[string]interface{}{"type": "number"},
				"reasoning": map[string]interface{}{"type": "string"},
			},
			"required": []string{"score"},
		},
	}
}

func summarySchema() *core.Schema {
	return &core.Schema{
		Name: "EvaluationSummary",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"summary": map[string]interface{}{"type": "string"},
			},
			"required": []string{"summary"},
		},
	}
}

func batchDimensionSchema() *core.Schema {
	return &core.Schema{
		Name: "MultiDimensionalBatch",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"evaluations": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"idea_index":          map[string]interface{}{"type": "integer"},
							"feasibility":         map[string]interface{}{"type": "number"},
							"innovation":          map[string]interface{}{"type": "number"},
							"impact":              map[string]interface{}{"type": "number"},
							"cost_effectiveness":  map[string]interface{}{"type": "number"},
							"scalability":         map[string]interface{}{"type": "number"},
							"risk_assessment":     map[string]interface{}{"type": "number"},
							"safety_score":        map[string]interface{}{"type": "number"},
							"timeline":            map[string]interface{}{"type": "number"},
						},
						"required": []string{"idea_index"},
					},
				},
			},
		},
	}
}

func dimensionPrompt(idea, context string, dimension Dimension) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate the following idea on the %s dimension, on a scale of %d-%d.\n",
		strings.ReplaceAll(string(dimension), "_", " "), int(DefaultScoreRange.Min), int(DefaultScoreRange.Max))
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	fmt.Fprintf(&b, "Idea: %s\nRespond with only the numeric score and a one-sentence reasoning.\n", idea)
	return b.String()
}

func summaryPrompt(idea string, dims model.DimensionScores, weighted float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize this idea's multi-dimensional evaluation in one short paragraph, in the same language as the idea text.\n")
	fmt.Fprintf(&b, "Idea: %s\n", idea)
	fmt.Fprintf(&b, "Feasibility: %.1f, Innovation: %.1f, Impact: %.1f, Cost-effectiveness: %.1f, Scalability: %.1f, Risk: %.1f, Timeline: %.1f, Weighted: %.2f\n",
		dims.Feasibility, dims.Innovation, dims.Impact, dims.CostEffectiveness, dims.Scalability, dims.RiskAssessment, dims.Timeline, weighted)
	return b.String()
}

// EvaluateIdea scores idea across all seven dimensions with one
// structured-output call per dimension, plus a final summary call.
func (e *Evaluator) EvaluateIdea(ctx context.Context, idea string, context_ string) (model.MultiDimEvaluation, int, error) {
	var totalTokens int
	scores := make(map[Dimension]float64, len(Dimensions))

	for _, dim := range Dimensions {
		data, resp, err := e.router.GenerateStructured(ctx, dimensionPrompt(idea, context_, dim), dimensionScoreSchema(dim), e.temperature, llm.GenerateOptions{
			SystemInstruction: languageInstruction,
		})
		if err != nil {
			return model.MultiDimEvaluation{}, totalTokens, fmt.Errorf("failed to evaluate dimension %q: multi-dimensional evaluation requires working AI connection: %w", dim, err)
		}
		totalTokens += resp.TokensUsed

		raw, ok := data["score"]
		if !ok {
			return model.MultiDimEvaluation{}, totalTokens, fmt.Errorf("AI returned non-numeric score for dimension %q", dim)
		}
		score, ok := asFloat(raw)
		if !ok {
			return model.MultiDimEvaluation{}, totalTokens, fmt.Errorf("AI returned non-numeric score for dimension %q", dim)
		}
		scores[dim] = e.clamp(score)
	}

	dims := model.DimensionScores{
		Feasibility:       scores[DimensionFeasibility],
		Innovation:        scores[DimensionInnovation],
		Impact:            scores[DimensionImpact],
		CostEffectiveness: scores[DimensionCostEffectiveness],
		Scalability:       scores[DimensionScalability],
		RiskAssessment:    scores[DimensionRiskAssessment],
		Timeline:          scores[DimensionTimeline],
	}

	overall := e.overallScore(scores)
	weighted := e.weightedScore(scores)

	summaryText, tokens, err := e.summarize(ctx, idea, dims, weighted)
	totalTokens += tokens
	if err != nil {
		e.logger.Warn("evaluation summary call failed, continuing without summary", map[string]interface{}{"error": err.Error()})
	}

	return model.MultiDimEvaluation{
		Dimensions:         dims,
		OverallScore:       overall,
		WeightedScore:      weighted,
		EvaluationSummary:  summaryText,
		ConfidenceInterval: confidenceInterval(scores),
	}, totalTokens, nil
}

// EvaluateIdeasBatch scores every idea with one batched call covering all
// seven dimensions, then issues one summary call per idea.
func (e *Evaluator) EvaluateIdeasBatch(ctx context.Context, ideas []string, context_ string) ([]model.MultiDimEvaluation, int, error) {
	if len(ideas) == 0 {
		return nil, 0, nil
	}

	var b strings.Builder
	b.WriteString("Score every idea below across all seven dimensions (feasibility, innovation, impact, cost_effectiveness, scalability, risk_assessment, timeline), each on a 1-10 scale.\n")
	if context_ != "" {
		fmt.Fprintf(&b, "Context: %s\n", context_)
	}
	for i, idea := range ideas {
		fmt.Fprintf(&b, "%d. %s\n", i, idea)
	}

	data, resp, err := e.router.GenerateStructured(ctx, b.String(), batchDimensionSchema(), e.temperature, llm.GenerateOptions{
		SystemInstruction: languageInstruction,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("batch multi-dimensional evaluation failed: %w", err)
	}
	totalTokens := resp.TokensUsed

	rawEvals, _ := data["evaluations"].([]interface{})
	byIndex := make(map[int]model.DimensionScores, len(rawEvals))
	for _, raw := range rawEvals {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		idx := asInt(m["idea_index"])
		dims, err := e.parseBatchDimensions(m)
		if err != nil {
			return nil, totalTokens, fmt.Errorf("batch multi-dimensional evaluation: idea %d: %w", idx, err)
		}
		byIndex[idx] = dims
	}

	results := make([]model.MultiDimEvaluation, len(ideas))
	for i, idea := range ideas {
		dims, ok := byIndex[i]
		if !ok {
			dims = model.DimensionScores{}
		}
		scores := dimensionScoresToMap(dims)
		overall := e.overallScore(scores)
		weighted := e.weightedScore(scores)

		summaryText, tokens, err := e.summarize(ctx, idea, dims, weighted)
		totalTokens += tokens
		if err != nil {
			e.logger.Warn("evaluation summary call failed for batched idea, continuing without summary", map[string]interface{}{
				"idea_index": i, "error": err.Error(),
			})
		}

		results[i] = model.MultiDimEvaluation{
			IdeaIndex:          i,
			Dimensions:         dims,
			OverallScore:       overall,
			WeightedScore:      weighted,
			EvaluationSummary:  summaryText,
			ConfidenceInterval: confidenceInterval(scores),
		}
	}

	return results, totalTokens, nil
}

func (e *Evaluator) summarize(ctx context.Context, idea string, dims model.DimensionScores, weighted float64) (string, int, error) {
	data, resp, err := e.router.GenerateStructured(ctx, summaryPrompt(idea, dims, weighted), summarySchema(), e.temperature, llm.GenerateOptions{
		SystemInstruction: languageInstruction,
	})
	if err != nil {
		return "", 0, err
	}
	summary, _ := data["summary"].(string)
	return summary, resp.TokensUsed, nil
}

func (e *Evaluator) clamp(score float64) float64 {
	if score < e.scoreRange.Min {
		return e.scoreRange.Min
	}
	if score > e.scoreRange.Max {
		return e.scoreRange.Max
	}
	return score
}

func (e *Evaluator) overallScore(scores map[Dimension]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

func (e *Evaluator) weightedScore(scores map[Dimension]float64) float64 {
	var sum float64
	for dim, v := range scores {
		sum += v * e.weights[dim]
	}
	return sum
}

func confidenceInterval(scores map[Dimension]float64) [2]float64 {
	if len(scores) == 0 {
		return [2]float64{0, 0}
	}
	vals := make([]float64, 0, len(scores))
	for _, v := range scores {
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	return [2]float64{vals[0], vals[len(vals)-1]}
}

// parseBatchDimensions reads one idea's seven dimension scores out of a
// batched evaluation entry, clamping each to e.scoreRange. A missing or
// non-numeric score fails the whole batch call (spec §4.6: "AI returned
// non-numeric score" is a hard error, not a default), matching
// EvaluateIdea's per-dimension behavior instead of silently substituting
// the score range's minimum. risk_assessment falls back to the legacy
// safety_score key when risk_assessment is absent.
func (e *Evaluator) parseBatchDimensions(m map[string]interface{}) (model.DimensionScores, error) {
	score := func(dim Dimension, aliases ...string) (float64, error) {
		raw, ok := m[string(dim)]
		for i := 0; !ok && i < len(aliases); i++ {
			raw, ok = m[aliases[i]]
		}
		if !ok {
			return 0, fmt.Errorf("AI returned non-numeric score for dimension %q", dim)
		}
		v, ok := asFloat(raw)
		if !ok {
			return 0, fmt.Errorf("AI returned non-numeric score for dimension %q", dim)
		}
		return e.clamp(v), nil
	}

	var dims model.DimensionScores
	var err error
	if dims.Feasibility, err = score(DimensionFeasibility); err != nil {
		return model.DimensionScores{}, err
	}
	if dims.Innovation, err = score(DimensionInnovation); err != nil {
		return model.DimensionScores{}, err
	}
	if dims.Impact, err = score(DimensionImpact); err != nil {
		return model.DimensionScores{}, err
	}
	if dims.CostEffectiveness, err = score(DimensionCostEffectiveness); err != nil {
		return model.DimensionScores{}, err
	}
	if dims.Scalability, err = score(DimensionScalability); err != nil {
		return model.DimensionScores{}, err
	}
	if dims.RiskAssessment, err = score(DimensionRiskAssessment, "safety_score"); err != nil {
		return model.DimensionScores{}, err
	}
	if dims.Timeline, err = score(DimensionTimeline); err != nil {
		return model.DimensionScores{}, err
	}
	return dims, nil
}

func dimensionScoresToMap(d model.DimensionScores) map[Dimension]float64 {
	return map[Dimension]float64{
		DimensionFeasibility:       d.Feasibility,
		DimensionInnovation:        d.Innovation,
		DimensionImpact:            d.Impact,
		DimensionCostEffectiveness: d.CostEffectiveness,
		DimensionScalability:       d.Scalability,
		DimensionRiskAssessment:    d.RiskAssessment,
		DimensionTimeline:          d.Timeline,
	}
}

const languageInstruction = "Respond in the same language as the user's input. Do not translate proper nouns or the input topic."

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n))
	case int:
		return n
	default:
		return 0
	}
}

// Package model defines the record types that flow through the pipeline:
// an Idea is created by the generator stage and enriched in place by every
// later stage until it reaches the caller as a fully evaluated record.
package model

// Idea is a single generated proposal, enriched in place as it passes
// through the pipeline stages.
type Idea struct {
	Text     string `json:"text"`
	Score    int    `json:"score"`
	Critique string `json:"critique"`

	Advocacy      *Advocacy   `json:"advocacy,omitempty"`
	Skepticism    *Skepticism `json:"skepticism,omitempty"`
	ImprovedIdea  string      `json:"improved_idea,omitempty"`
	ImprovedScore int         `json:"improved_score,omitempty"`
	ImprovedCritique string   `json:"improved_critique,omitempty"`
	ScoreDelta    int         `json:"score_delta,omitempty"`

	MultiDimEvaluation         *MultiDimEvaluation `json:"multi_dimensional_evaluation,omitempty"`
	ImprovedMultiDimEvaluation *MultiDimEvaluation `json:"improved_multi_dimensional_evaluation,omitempty"`
	LogicalInference           *InferenceResult    `json:"logical_inference,omitempty"`

	PartialFailures []string `json:"partial_failures,omitempty"`
}

// HasImprovedScore reports whether the improvement stage has run.
func (i *Idea) HasImprovedScore() bool {
	return i.ImprovedScore != 0 || i.ImprovedCritique != ""
}

// ApplyScoreDelta recomputes ScoreDelta from Score and ImprovedScore. Callers
// invoke this every time ImprovedScore changes so the invariant
// score_delta = improved_score - score always holds (spec P5).
func (i *Idea) ApplyScoreDelta() {
	i.ScoreDelta = i.ImprovedScore - i.Score
}

// EnrichedIdea is the external, field-normalised view of an Idea returned to
// callers: both Idea and Text are populated and equal (spec P4).
type EnrichedIdea struct {
	Idea Idea   `json:"idea"`
	Text string `json:"text"`

	Score            int                 `json:"score"`
	Critique         string              `json:"critique"`
	Advocacy         *Advocacy           `json:"advocacy,omitempty"`
	Skepticism       *Skepticism         `json:"skepticism,omitempty"`
	ImprovedIdea     string              `json:"improved_idea,omitempty"`
	ImprovedScore    int                 `json:"improved_score,omitempty"`
	ImprovedCritique string              `json:"improved_critique,omitempty"`
	ScoreDelta       int                 `json:"score_delta,omitempty"`
	MultiDimEvaluation *MultiDimEvaluation `json:"multi_dimensional_evaluation,omitempty"`
	LogicalInference   *InferenceResult    `json:"logical_inference,omitempty"`
	PartialFailures    []string            `json:"partial_failures,omitempty"`
}

// NewEnrichedIdea builds the external view from an internal Idea, satisfying
// the field-normalisation invariant (both idea and text fields, equal).
func NewEnrichedIdea(idea Idea) EnrichedIdea {
	return EnrichedIdea{
		Idea:               idea,
		Text:               idea.Text,
		Score:              idea.Score,
		Critique:           idea.Critique,
		Advocacy:           idea.Advocacy,
		Skepticism:         idea.Skepticism,
		ImprovedIdea:       idea.ImprovedIdea,
		ImprovedScore:      idea.ImprovedScore,
		ImprovedCritique:   idea.ImprovedCritique,
		ScoreDelta:         idea.ScoreDelta,
		MultiDimEvaluation: idea.MultiDimEvaluation,
		LogicalInference:   idea.LogicalInference,
		PartialFailures:    idea.PartialFailures,
	}
}

// Evaluation is the critic's verdict on a single idea.
type Evaluation struct {
	IdeaIndex int    `json:"idea_index"`
	Score     int    `json:"score"`
	Comment   string `json:"comment"`
}

// Advocacy is the advocate's structured argument in favor of an idea.
type Advocacy struct {
	IdeaIndex int `json:"idea_index"`

	Strengths          []TitledPoint     `json:"strengths"`
	Opportunities      []TitledPoint     `json:"opportunities"`
	AddressingConcerns []ConcernResponse `json:"addressing_concerns"`
	Formatted          string            `json:"formatted"`
}

// TitledPoint is a {title, description} pair used by Advocacy.
type TitledPoint struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ConcernResponse is a {concern, response} pair used by Advocacy.
type ConcernResponse struct {
	Concern  string `json:"concern"`
	Response string `json:"response"`
}

// Skepticism is the skeptic's structured critique of an idea.
type Skepticism struct {
	IdeaIndex int `json:"idea_index"`

	CriticalFlaws          []string `json:"critical_flaws"`
	RisksChallenges        []string `json:"risks_challenges"`
	QuestionableAssumptions []string `json:"questionable_assumptions"`
	MissingConsiderations  []string `json:"missing_considerations"`
	Formatted              string   `json:"formatted"`
}

// Improvement is the improver's revision of an idea.
type Improvement struct {
	IdeaIndex int `json:"idea_index"`

	ImprovedTitle       string   `json:"improved_title"`
	ImprovedDescription string   `json:"improved_description"`
	KeyImprovements     []string `json:"key_improvements"`
	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	Differentiators     []string `json:"differentiators,omitempty"`
}

// Display concatenates title and description the way downstream consumers
// expect: title, a blank line, then description.
func (imp Improvement) Display() string {
	return imp.ImprovedTitle + "\n\n" + imp.ImprovedDescription
}

// DimensionScores holds the seven fixed scoring dimensions. RiskAssessment
// is the canonical name; the evaluator package accepts "safety_score" as an
// alias key when parsing a batched evaluation response that still uses the
// older name (see SPEC_FULL.md §9 and evaluator.parseBatchDimensions).
type DimensionScores struct {
	Feasibility      float64 `json:"feasibility"`
	Innovation       float64 `json:"innovation"`
	Impact           float64 `json:"impact"`
	CostEffectiveness float64 `json:"cost_effectiveness"`
	Scalability      float64 `json:"scalability"`
	RiskAssessment   float64 `json:"risk_assessment"`
	Timeline         float64 `json:"timeline"`
}

// MultiDimEvaluation is the result of scoring an idea across all seven
// dimensions.
type MultiDimEvaluation struct {
	IdeaIndex int `json:"idea_index"`

	Dimensions         DimensionScores `json:"dimensions"`
	OverallScore       float64         `json:"overall_score"`
	WeightedScore      float64         `json:"weighted_score"`
	EvaluationSummary  string          `json:"evaluation_summary"`
	ConfidenceInterval [2]float64      `json:"confidence_interval"`
}

// AnalysisType selects one of the five logical-inference analysis shapes.
type AnalysisType string

const (
	AnalysisFull          AnalysisType = "full"
	AnalysisCausal        AnalysisType = "causal"
	AnalysisConstraints   AnalysisType = "constraints"
	AnalysisContradiction AnalysisType = "contradiction"
	AnalysisImplications  AnalysisType = "implications"
)

// InferenceResult is the polymorphic result of a logical-inference call.
// Only the fields relevant to Type are expected to be populated.
type InferenceResult struct {
	IdeaIndex int          `json:"idea_index"`
	Type      AnalysisType `json:"type"`

	InferenceChain []string `json:"inference_chain"`
	Conclusion     string   `json:"conclusion"`
	Confidence     float64  `json:"confidence"`
	Improvements   string   `json:"improvements,omitempty"`
	Error          string   `json:"error,omitempty"`

	// CausalAnalysis
	CausalChain  []string `json:"causal_chain,omitempty"`
	FeedbackLoops []string `json:"feedback_loops,omitempty"`
	RootCause    string   `json:"root_cause,omitempty"`

	// ConstraintAnalysis
	ConstraintSatisfaction map[string]float64 `json:"constraint_satisfaction,omitempty"`
	OverallSatisfaction    float64            `json:"overall_satisfaction,omitempty"`
	TradeOffs              []string           `json:"trade_offs,omitempty"`

	// ContradictionAnalysis
	Contradictions []Contradiction `json:"contradictions,omitempty"`
	Resolution     string          `json:"resolution,omitempty"`

	// ImplicationsAnalysis
	Implications       []string `json:"implications,omitempty"`
	SecondOrderEffects []string `json:"second_order_effects,omitempty"`
}

// Contradiction is one entry of a ContradictionAnalysis result.
type Contradiction struct {
	Statement1 string `json:"statement1"`
	Statement2 string `json:"statement2"`
	Severity   string `json:"severity"`
}

// PlaceholderInferenceResult builds the placeholder InferenceResult used
// when a batch section can't be parsed or the underlying call failed.
func PlaceholderInferenceResult(ideaIndex int, analysisType AnalysisType, reason string) InferenceResult {
	return InferenceResult{
		IdeaIndex:      ideaIndex,
		Type:           analysisType,
		InferenceChain: []string{},
		Conclusion:     reason,
		Confidence:     0.0,
		Error:          reason,
	}
}

// LLMResponse carries call metadata alongside a validated payload.
type LLMResponse struct {
	Text       string  `json:"text"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	TokensUsed int     `json:"tokens_used"`
	LatencyMs  int64   `json:"latency_ms"`
	Cost       float64 `json:"cost"`
	Cached     bool    `json:"cached"`
	Timestamp  int64   `json:"timestamp"`
}

// BatchMetrics is one append-only record of a batch call, produced by the
// batch monitor.
type BatchMetrics struct {
	Timestamp        int64   `json:"timestamp"`
	BatchType        string  `json:"batch_type"`
	ItemsCount       int     `json:"items_count"`
	TokensUsed       int     `json:"tokens_used,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Success          bool    `json:"success"`
	FallbackUsed     bool    `json:"fallback_used"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

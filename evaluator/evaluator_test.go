package evaluator_test

import (
	"context"
	"testing"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/evaluator"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/llm/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(client *mock.Client) *llm.Router {
	return llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local"}, map[string]core.AIClient{"local": client}, nil, nil, nil)
}

func TestNewRequiresRouter(t *testing.T) {
	_, err := evaluator.New(evaluator.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

// Each of the seven dimensions gets its own structured-output call, plus
// one summary call — eight calls total for a single EvaluateIdea.
func TestEvaluateIdeaCallsAllSevenDimensions(t *testing.T) {
	client := mock.New()
	for i := 0; i < 7; i++ {
		client.QueueStructured(map[string]interface{}{"score": float64(8), "reasoning": "good"})
	}
	client.QueueStructured(map[string]interface{}{"summary": "Solid idea overall."})

	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(client)})
	require.NoError(t, err)

	result, tokens, err := ev.EvaluateIdea(context.Background(), "Build a recycling app", "sustainability")
	require.NoError(t, err)
	assert.Equal(t, 8, client.CallCount)
	assert.Positive(t, tokens)
	assert.Equal(t, 8.0, result.Dimensions.Feasibility)
	assert.Equal(t, "Solid idea overall.", result.EvaluationSummary)
	assert.InDelta(t, 8.0, result.WeightedScore, 0.01)
}

// Scores outside the configured range clamp to the endpoint.
func TestEvaluateIdeaClampsOutOfRangeScores(t *testing.T) {
	client := mock.New()
	for i := 0; i < 7; i++ {
		client.QueueStructured(map[string]interface{}{"score": float64(15)})
	}
	client.QueueStructured(map[string]interface{}{"summary": ""})

	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(client)})
	require.NoError(t, err)

	result, _, err := ev.EvaluateIdea(context.Background(), "Test", "")
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Dimensions.Feasibility)
	assert.Equal(t, 10.0, result.Dimensions.Timeline)
}

func TestEvaluateIdeaNonNumericScoreErrors(t *testing.T) {
	client := mock.New().QueueStructured(map[string]interface{}{"score": "not a number"})

	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(client)})
	require.NoError(t, err)

	_, _, err = ev.EvaluateIdea(context.Background(), "Test", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric score")
}

func TestEvaluateIdeasBatchOneCallPlusPerIdeaSummaries(t *testing.T) {
	client := mock.New().QueueStructured(map[string]interface{}{
		"evaluations": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "feasibility": float64(5), "innovation": float64(5), "impact": float64(5), "cost_effectiveness": float64(5), "scalability": float64(5), "risk_assessment": float64(5), "timeline": float64(5)},
			map[string]interface{}{"idea_index": float64(1), "feasibility": float64(9), "innovation": float64(9), "impact": float64(9), "cost_effectiveness": float64(9), "scalability": float64(9), "risk_assessment": float64(9), "timeline": float64(9)},
		},
	})
	client.QueueStructured(map[string]interface{}{"summary": "ok"})
	client.QueueStructured(map[string]interface{}{"summary": "great"})

	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(client)})
	require.NoError(t, err)

	results, _, err := ev.EvaluateIdeasBatch(context.Background(), []string{"a", "b"}, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 5.0, results[0].Dimensions.Feasibility)
	assert.Equal(t, 9.0, results[1].Dimensions.Feasibility)
	assert.Equal(t, 3, client.CallCount) // 1 batch call + 2 summaries
}

// A batched response using the legacy "safety_score" key instead of
// "risk_assessment" still populates RiskAssessment.
func TestEvaluateIdeasBatchAcceptsSafetyScoreAlias(t *testing.T) {
	client := mock.New().QueueStructured(map[string]interface{}{
		"evaluations": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "feasibility": float64(5), "innovation": float64(5), "impact": float64(5), "cost_effectiveness": float64(5), "scalability": float64(5), "safety_score": float64(7), "timeline": float64(5)},
		},
	})
	client.QueueStructured(map[string]interface{}{"summary": "ok"})

	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(client)})
	require.NoError(t, err)

	results, _, err := ev.EvaluateIdeasBatch(context.Background(), []string{"a"}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 7.0, results[0].Dimensions.RiskAssessment)
}

// A non-numeric (or missing) dimension score in a batched response fails
// the batch call outright, matching EvaluateIdea's per-dimension behavior,
// instead of silently substituting the score range minimum.
func TestEvaluateIdeasBatchNonNumericScoreErrors(t *testing.T) {
	client := mock.New().QueueStructured(map[string]interface{}{
		"evaluations": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "feasibility": "unknown", "innovation": float64(5), "impact": float64(5), "cost_effectiveness": float64(5), "scalability": float64(5), "risk_assessment": float64(5), "timeline": float64(5)},
		},
	})

	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(client)})
	require.NoError(t, err)

	_, _, err = ev.EvaluateIdeasBatch(context.Background(), []string{"a"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric score")
}

func TestEvaluateIdeasBatchEmptyInput(t *testing.T) {
	ev, err := evaluator.New(evaluator.Options{Router: newTestRouter(mock.New())})
	require.NoError(t, err)

	results, tokens, err := ev.EvaluateIdeasBatch(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, tokens)
}

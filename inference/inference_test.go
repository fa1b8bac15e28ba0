package inference_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/inference"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/llm/providers/mock"
	"github.com/ideagrid/orchestrator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(client *mock.Client) *llm.Router {
	return llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local"}, map[string]core.AIClient{"local": client}, nil, nil, nil)
}

const threeIdeaBatchResponse = `=== ANALYSIS_FOR_IDEA_1 ===
INFERENCE_CHAIN:
- [Step 1]: Simple controls address mobile constraints
- [Step 2]: One-button design reduces complexity

CONCLUSION: Logically sound for mobile development

CONFIDENCE: 0.8

IMPROVEMENTS: Add visual feedback for button presses

=== ANALYSIS_FOR_IDEA_2 ===
INFERENCE_CHAIN:
- [Step 1]: Color matching is intuitive

CONCLUSION: Strong logical foundation for puzzle games

CONFIDENCE: 0.9

IMPROVEMENTS: Consider colorblind accessibility

=== ANALYSIS_FOR_IDEA_3 ===
INFERENCE_CHAIN:
- [Step 1]: Procedural generation increases replayability

CONCLUSION: Well-suited for mobile endless runner genre

CONFIDENCE: 0.85

IMPROVEMENTS: Balance difficulty progression`

func TestAnalyzeBatchParsesEverySection(t *testing.T) {
	client := mock.New().QueueResponse(threeIdeaBatchResponse)
	engine := inference.New(newTestRouter(client), 0.5)

	results, tokens := engine.AnalyzeBatch(context.Background(),
		[]string{"a", "b", "c"}, "mobile games", "simple development", model.AnalysisFull)

	require.Len(t, results, 3)
	assert.Positive(t, tokens)
	assert.Equal(t, 0.8, results[0].Confidence)
	assert.Contains(t, results[0].InferenceChain[0], "Simple controls address mobile constraints")
	assert.Contains(t, results[0].Improvements, "Add visual feedback")
	assert.Equal(t, 0.9, results[1].Confidence)
	assert.Equal(t, 0.85, results[2].Confidence)
	for i, r := range results {
		assert.Equal(t, i, r.IdeaIndex)
	}
}

func TestAnalyzeBatchEmptyInput(t *testing.T) {
	engine := inference.New(newTestRouter(mock.New()), 0.5)
	results, tokens := engine.AnalyzeBatch(context.Background(), nil, "t", "c", model.AnalysisFull)
	assert.Empty(t, results)
	assert.Equal(t, 0, tokens)
}

// On total API failure every idea gets a placeholder carrying the error,
// never a propagated exception, and the list length always matches input.
func TestAnalyzeBatchAPIErrorReturnsPlaceholdersForAll(t *testing.T) {
	client := mock.New().SetError(errors.New("API Error"))
	engine := inference.New(newTestRouter(client), 0.5)

	results, tokens := engine.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, "t", "c", model.AnalysisFull)
	require.Len(t, results, 3)
	assert.Equal(t, 0, tokens)
	for _, r := range results {
		assert.Equal(t, 0.0, r.Confidence)
		assert.NotEmpty(t, r.Error)
	}
}

// A response with no recognizable delimiter produces placeholders for
// every idea rather than propagating a parse error.
func TestAnalyzeBatchUnparseableResponseYieldsPlaceholders(t *testing.T) {
	client := mock.New().QueueResponse("Invalid response format")
	engine := inference.New(newTestRouter(client), 0.5)

	results, _ := engine.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, "t", "c", model.AnalysisFull)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Contains(t, r.Conclusion, "Unable to parse")
	}
}

// A partially parseable response yields real results for the ideas it
// covers and placeholders for the rest.
func TestAnalyzeBatchPartialParsing(t *testing.T) {
	partial := `=== ANALYSIS_FOR_IDEA_1 ===
INFERENCE_CHAIN:
- [Step 1]: Valid analysis

CONCLUSION: First idea analyzed correctly

CONFIDENCE: 0.8

IMPROVEMENTS: None needed

Invalid content for remaining ideas...`

	client := mock.New().QueueResponse(partial)
	engine := inference.New(newTestRouter(client), 0.5)

	results, _ := engine.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, "t", "c", model.AnalysisFull)
	require.Len(t, results, 3)
	assert.Equal(t, 0.8, results[0].Confidence)
	assert.Equal(t, "First idea analyzed correctly", results[0].Conclusion)
	assert.Contains(t, results[1].Conclusion, "Unable to parse")
	assert.Contains(t, results[2].Conclusion, "Unable to parse")
}

func TestAnalyzeSingleIdeaNeverErrors(t *testing.T) {
	client := mock.New().SetError(errors.New("connection refused"))
	engine := inference.New(newTestRouter(client), 0.5)

	result, tokens := engine.Analyze(context.Background(), "idea", "topic", "ctx", model.AnalysisCausal)
	assert.Equal(t, 0, tokens)
	assert.Equal(t, 0.0, result.Confidence)
	assert.NotEmpty(t, result.Error)
}

func TestFormatForDisplayVerbosity(t *testing.T) {
	result := model.InferenceResult{
		Conclusion:     "Solid idea",
		Confidence:     0.8,
		InferenceChain: []string{"step one", "step two"},
		Improvements:   "Add tests",
	}

	brief := inference.FormatForDisplay(result, inference.VerbosityBrief)
	assert.Contains(t, brief, "Solid idea")
	assert.NotContains(t, brief, "step one")

	standard := inference.FormatForDisplay(result, inference.VerbosityStandard)
	assert.Contains(t, standard, "step one")
	assert.NotContains(t, standard, "Add tests")

	detailed := inference.FormatForDisplay(result, inference.VerbosityDetailed)
	assert.Contains(t, detailed, "Add tests")
}

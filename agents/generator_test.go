package agents_test

import (
	"context"
	"testing"

	"github.com/ideagrid/orchestrator/agents"
	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdeasSuccess(t *testing.T) {
	client := mock.New().QueueStructured(map[string]interface{}{
		"ideas": []interface{}{
			map[string]interface{}{"idea": "Idea one"},
			map[string]interface{}{"idea": "Idea two"},
		},
	})
	router := newTestRouter(client)

	ideas, tokens, err := agents.GenerateIdeas(context.Background(), router, "AI automation", "cost-effective", 0.9)
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, "Idea one", ideas[0].Text)
	assert.Positive(t, tokens)
}

func TestGenerateIdeasDegradesOnProviderFailure(t *testing.T) {
	client := mock.New().SetError(core.ErrProviderUnavailable)
	router := newTestRouter(client)

	ideas, tokens, err := agents.GenerateIdeas(context.Background(), router, "topic", "", 0.9)
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Contains(t, ideas[0].Text, "[DEGRADED MODE]")
	assert.Equal(t, 0, tokens)
}

func TestImproveIdeasBatchPreservesOrder(t *testing.T) {
	client := mock.New().QueueStructured(map[string]interface{}{
		"improvements": []interface{}{
			map[string]interface{}{"idea_index": float64(1), "improved_title": "B", "improved_description": "b desc"},
			map[string]interface{}{"idea_index": float64(0), "improved_title": "A", "improved_description": "a desc"},
		},
	})
	router := newTestRouter(client)

	results, _, err := agents.ImproveIdeasBatch(context.Background(), router, []agents.ImproveInput{
		{Idea: "A", Critique: "c", Advocacy: "a", Skepticism: "s"},
		{Idea: "B", Critique: "c", Advocacy: "a", Skepticism: "s"},
	}, "ctx", 0.9)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ImprovedTitle)
	assert.Equal(t, "B", results[1].ImprovedTitle)
}

func TestImproveIdeasBatchValidatesInput(t *testing.T) {
	router := newTestRouter(mock.New())
	_, _, err := agents.ImproveIdeasBatch(context.Background(), router, []agents.ImproveInput{{Idea: "x"}}, "ctx", 0.9)
	require.Error(t, err)
}

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/llm/providers/mock"
	"github.com/ideagrid/orchestrator/model"
	"github.com/stretchr/testify/require"
)

func newInternalTestRouter(client *mock.Client) *llm.Router {
	return llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local"}, map[string]core.AIClient{"local": client}, nil, nil, nil)
}

// P11: stage 4's wall-clock time tracks max(t_advocate, t_skeptic), not
// their sum, because the two batch calls run as sibling goroutines rather
// than one after the other.
func TestAdvocateSkepticStageRunsConcurrently(t *testing.T) {
	// Carries both top-level keys so either the advocate or the skeptic
	// consumer finds the key it needs regardless of which of the two
	// concurrent calls dequeues which response.
	combined := map[string]interface{}{
		"advocacies": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "strengths": []interface{}{map[string]interface{}{"title": "Strong fit"}}},
		},
		"skepticisms": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "critical_flaws": []interface{}{"Needs validation"}},
		},
	}
	client := mock.New().QueueStructured(combined).QueueStructured(combined).WithDelay(60 * time.Millisecond)

	o, err := New(Options{Router: newInternalTestRouter(client)})
	require.NoError(t, err)

	candidates := []model.Idea{{Text: "Bike-share expansion", Score: 8, Critique: "Promising"}}
	opts, err := DefaultRunOptions().normalize()
	require.NoError(t, err)

	start := time.Now()
	err = o.advocateSkepticStage(context.Background(), "urban transport", candidates, "budget-friendly", 0.5, opts)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, candidates[0].Advocacy)
	require.NotNil(t, candidates[0].Skepticism)
	// Sequential execution would take >=120ms; concurrent execution should
	// land close to the single-call delay plus scheduling slack.
	if elapsed >= 120*time.Millisecond {
		t.Fatalf("advocate/skeptic ran sequentially: elapsed %v, want well under 120ms", elapsed)
	}
}

// The semaphore bounds total concurrent calls: with width 1, two calls that
// would otherwise run concurrently are serialized.
func TestSemaphoreBoundsConcurrency(t *testing.T) {
	combined := map[string]interface{}{
		"advocacies": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "strengths": []interface{}{map[string]interface{}{"title": "Strong fit"}}},
		},
		"skepticisms": []interface{}{
			map[string]interface{}{"idea_index": float64(0), "critical_flaws": []interface{}{"Needs validation"}},
		},
	}
	client := mock.New().QueueStructured(combined).QueueStructured(combined).WithDelay(60 * time.Millisecond)

	o, err := New(Options{Router: newInternalTestRouter(client), MaxConcurrency: 1})
	require.NoError(t, err)

	candidates := []model.Idea{{Text: "Bike-share expansion", Score: 8, Critique: "Promising"}}
	opts, err := DefaultRunOptions().normalize()
	require.NoError(t, err)

	start := time.Now()
	err = o.advocateSkepticStage(context.Background(), "urban transport", candidates, "budget-friendly", 0.5, opts)
	elapsed := time.Since(start)

	require.NoError(t, err)
	if elapsed < 120*time.Millisecond {
		t.Fatalf("expected serialized calls under a width-1 semaphore to take >=120ms, got %v", elapsed)
	}
}

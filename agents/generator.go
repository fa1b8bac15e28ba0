package agents

import (
	"context"
	"fmt"

	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
)

// GenerateIdeas produces a list of ideas for (topic, context, temperature).
// It never returns an error for provider unavailability: a degraded
// placeholder idea is returned instead, tagged "[DEGRADED MODE]" (spec
// §4.4 "Mock mode never raises"). The returned token count is 0 whenever
// no real call succeeded.
func GenerateIdeas(ctx context.Context, router *llm.Router, topic, context_ string, temperature float32) ([]model.Idea, int, error) {
	prompt := buildGenerationPrompt(topic, context_)
	data, resp, err := router.GenerateStructured(ctx, prompt, generationSchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return degradedIdeas(topic), 0, nil
	}

	raw, ok := data["ideas"]
	if !ok {
		return degradedIdeas(topic), 0, nil
	}
	entries := asMapSlice(raw)
	if len(entries) == 0 {
		return degradedIdeas(topic), 0, nil
	}

	ideas := make([]model.Idea, 0, len(entries))
	for _, e := range entries {
		text := asString(e, "idea")
		if text == "" {
			continue
		}
		ideas = append(ideas, model.Idea{Text: text})
	}
	if len(ideas) == 0 {
		return degradedIdeas(topic), 0, nil
	}
	return ideas, resp.TokensUsed, nil
}

func degradedIdeas(topic string) []model.Idea {
	return []model.Idea{
		{Text: fmt.Sprintf("[DEGRADED MODE] Placeholder idea for %q", topic)},
	}
}

// ImproveIdeasBatch is the batch_fn for the improvement stage: one call
// that returns improvements for every item, ordered by idea_index (P2).
// Callers that need per-item fallback should use ImproveIdea via
// batch.WithFallback rather than calling this directly in degraded paths.
func ImproveIdeasBatch(ctx context.Context, router *llm.Router, items []ImproveInput, context_ string, temperature float32) ([]model.Improvement, int, error) {
	if len(items) == 0 {
		return nil, 0, nil
	}
	if err := validateAll(items); err != nil {
		return nil, 0, err
	}

	prompt := buildImprovementPrompt(items, context_)
	data, resp, err := router.GenerateStructured(ctx, prompt, improvementSchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return nil, 0, err
	}

	entries := asMapSlice(data["improvements"])
	if len(entries) != len(items) {
		return nil, 0, fmt.Errorf("batch improvement failed: expected %d improvements, got %d", len(items), len(entries))
	}

	results := decodeImprovements(entries)
	sortByIdeaIndex(results, func(r model.Improvement) int { return r.IdeaIndex })
	return results, resp.TokensUsed, nil
}

// ImproveIdea is the single-item fallback used by batch.WithFallback when
// ImproveIdeasBatch fails or returns a mismatched length.
func ImproveIdea(ctx context.Context, router *llm.Router, item ImproveInput, context_ string, temperature float32) (model.Improvement, error) {
	if err := item.Validate(); err != nil {
		return model.Improvement{}, err
	}
	data, _, err := router.GenerateStructured(ctx, buildImprovementPrompt([]ImproveInput{item}, context_), improvementSchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return model.Improvement{
			ImprovedTitle:       "[DEGRADED MODE] Enhanced version",
			ImprovedDescription: item.Idea,
			KeyImprovements:     []string{"N/A (improve failed)"},
		}, nil
	}
	entries := asMapSlice(data["improvements"])
	if len(entries) == 0 {
		return model.Improvement{
			ImprovedTitle:       "[DEGRADED MODE] Enhanced version",
			ImprovedDescription: item.Idea,
			KeyImprovements:     []string{"N/A (improve failed)"},
		}, nil
	}
	return decodeImprovement(entries[0]), nil
}

func decodeImprovements(entries []map[string]interface{}) []model.Improvement {
	out := make([]model.Improvement, len(entries))
	for i, e := range entries {
		out[i] = decodeImprovement(e)
	}
	return out
}

func decodeImprovement(e map[string]interface{}) model.Improvement {
	return model.Improvement{
		IdeaIndex:           asInt(e, "idea_index"),
		ImprovedTitle:       asString(e, "improved_title"),
		ImprovedDescription: asString(e, "improved_description"),
		KeyImprovements:     asStringSlice(e, "key_improvements"),
		ImplementationSteps: asStringSlice(e, "implementation_steps"),
		Differentiators:     asStringSlice(e, "differentiators"),
	}
}

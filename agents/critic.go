package agents

import (
	"context"
	"fmt"
	"math"

	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
	"github.com/ideagrid/orchestrator/parser"
)

// scoreMin and scoreMax bound every critic score (spec §4.4 "Scores outside [0, 10]
// are clamped").
const (
	scoreMin = 0
	scoreMax = 10
)

// clampScore rounds a fractional score half-up to the nearest integer, then
// clamps it into [scoreMin, scoreMax] (P9: -5 -> 0, 15 -> 10, 7.6 -> 8).
func clampScore(raw float64) int {
	rounded := int(math.Floor(raw + 0.5))
	if rounded < scoreMin {
		return scoreMin
	}
	if rounded > scoreMax {
		return scoreMax
	}
	return rounded
}

// EvaluateIdeas batch-scores every idea in a single call. On structured-call
// failure it retries as free text and runs the response through the
// five-strategy parser (spec's "legacy/degraded text is fed through the
// Response Parser"); only if both fail does it degrade to placeholder
// evaluations, per §4.4 "Mock mode never raises".
func EvaluateIdeas(ctx context.Context, router *llm.Router, ideas []string, context_ string, temperature float32) ([]model.Evaluation, int, error) {
	if len(ideas) == 0 {
		return nil, 0, nil
	}

	prompt := buildEvaluationPrompt(ideas, context_)
	data, resp, err := router.GenerateStructured(ctx, prompt, evaluationSchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err == nil {
		entries := asMapSlice(data["evaluations"])
		if len(entries) == len(ideas) {
			results := decodeEvaluations(entries)
			sortByIdeaIndex(results, func(r model.Evaluation) int { return r.IdeaIndex })
			return results, resp.TokensUsed, nil
		}
	}

	text, textResp, textErr := router.GenerateResponseText(ctx, prompt, temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if textErr != nil {
		return placeholderEvaluations(len(ideas)), 0, nil
	}

	parsed := parser.Parse(text, len(ideas))
	results := evaluationsFromParsed(parsed, len(ideas))
	return results, textResp.TokensUsed, nil
}

// EvaluateIdea scores a single idea; used as the per-item fallback when a
// batch evaluation fails.
func EvaluateIdea(ctx context.Context, router *llm.Router, idea string, context_ string, temperature float32) (model.Evaluation, error) {
	results, _, err := EvaluateIdeas(ctx, router, []string{idea}, context_, temperature)
	if err != nil {
		return model.Evaluation{}, err
	}
	if len(results) == 0 {
		return model.Evaluation{Comment: "N/A (evaluation failed)"}, nil
	}
	return results[0], nil
}

func decodeEvaluations(entries []map[string]interface{}) []model.Evaluation {
	out := make([]model.Evaluation, len(entries))
	for i, e := range entries {
		out[i] = model.Evaluation{
			IdeaIndex: asInt(e, "idea_index"),
			Score:     clampScore(asFloat(e, "score")),
			Comment:   asString(e, "comment"),
		}
	}
	return out
}

func evaluationsFromParsed(parsed interface{}, expected int) []model.Evaluation {
	var entries []map[string]interface{}
	switch v := parsed.(type) {
	case []map[string]interface{}:
		entries = v
	case map[string]interface{}:
		entries = []map[string]interface{}{v}
	}

	results := make([]model.Evaluation, expected)
	for i := range results {
		if i < len(entries) {
			results[i] = model.Evaluation{
				IdeaIndex: i,
				Score:     clampScore(asFloat(entries[i], "score")),
				Comment:   asString(entries[i], "comment"),
			}
		} else {
			results[i] = model.Evaluation{IdeaIndex: i, Comment: fmt.Sprintf("N/A (evaluation %d failed to parse)", i)}
		}
	}
	return results
}

func placeholderEvaluations(n int) []model.Evaluation {
	out := make([]model.Evaluation, n)
	for i := range out {
		out[i] = model.Evaluation{IdeaIndex: i, Comment: "[DEGRADED MODE] N/A (evaluation failed)"}
	}
	return out
}

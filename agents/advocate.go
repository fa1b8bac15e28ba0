package agents

import (
	"context"
	"fmt"

	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
)

// AdvocateIdeasBatch is the batch_fn for the advocate stage: one call
// producing Advocacy for every (idea, evaluation) pair, ordered by
// idea_index.
func AdvocateIdeasBatch(ctx context.Context, router *llm.Router, items []AdvocateInput, context_ string, temperature float32) ([]model.Advocacy, int, error) {
	if len(items) == 0 {
		return nil, 0, nil
	}
	if err := validateAll(items); err != nil {
		return nil, 0, err
	}

	data, resp, err := router.GenerateStructured(ctx, buildAdvocacyPrompt(items, context_), advocacySchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return nil, 0, err
	}

	entries := asMapSlice(data["advocacies"])
	if len(entries) != len(items) {
		return nil, 0, fmt.Errorf("batch advocate failed: expected %d advocacies, got %d", len(items), len(entries))
	}

	results := make([]model.Advocacy, len(entries))
	for i, e := range entries {
		results[i] = decodeAdvocacy(e)
	}
	sortByIdeaIndex(results, func(r model.Advocacy) int { return r.IdeaIndex })
	return results, resp.TokensUsed, nil
}

// AdvocateIdea is the single-item fallback used by batch.WithFallback.
func AdvocateIdea(ctx context.Context, router *llm.Router, item AdvocateInput, context_ string, temperature float32) (model.Advocacy, error) {
	if err := item.Validate(); err != nil {
		return model.Advocacy{}, err
	}
	data, _, err := router.GenerateStructured(ctx, buildAdvocacyPrompt([]AdvocateInput{item}, context_), advocacySchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return degradedAdvocacy(context_), nil
	}
	entries := asMapSlice(data["advocacies"])
	if len(entries) == 0 {
		return degradedAdvocacy(context_), nil
	}
	return decodeAdvocacy(entries[0]), nil
}

func decodeAdvocacy(e map[string]interface{}) model.Advocacy {
	return model.Advocacy{
		IdeaIndex:          asInt(e, "idea_index"),
		Strengths:          decodeTitledPoints(e["strengths"]),
		Opportunities:      decodeTitledPoints(e["opportunities"]),
		AddressingConcerns: decodeConcernResponses(e["addressing_concerns"]),
		Formatted:          formatAdvocacy(e),
	}
}

func degradedAdvocacy(theme string) model.Advocacy {
	return model.Advocacy{
		Strengths: []model.TitledPoint{{Title: "Addresses the theme", Description: theme}},
		Formatted: fmt.Sprintf("[DEGRADED MODE]\nSTRENGTHS:\n• Addresses the theme: %s\n• Has potential for development", theme),
	}
}

func decodeTitledPoints(v interface{}) []model.TitledPoint {
	entries := asMapSlice(v)
	if len(entries) > 0 {
		out := make([]model.TitledPoint, len(entries))
		for i, e := range entries {
			out[i] = model.TitledPoint{Title: asString(e, "title"), Description: asString(e, "description")}
		}
		return out
	}
	// Providers frequently return a flat array of strings instead of
	// {title, description} objects; treat each string as a title-only point.
	if raw, ok := v.([]interface{}); ok {
		out := make([]model.TitledPoint, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, model.TitledPoint{Title: s})
			}
		}
		return out
	}
	return nil
}

func decodeConcernResponses(v interface{}) []model.ConcernResponse {
	entries := asMapSlice(v)
	if len(entries) > 0 {
		out := make([]model.ConcernResponse, len(entries))
		for i, e := range entries {
			out[i] = model.ConcernResponse{Concern: asString(e, "concern"), Response: asString(e, "response")}
		}
		return out
	}
	if raw, ok := v.([]interface{}); ok {
		out := make([]model.ConcernResponse, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, model.ConcernResponse{Response: s})
			}
		}
		return out
	}
	return nil
}

func formatAdvocacy(e map[string]interface{}) string {
	var b []byte
	b = append(b, "STRENGTHS:\n"...)
	for _, p := range decodeTitledPoints(e["strengths"]) {
		b = append(b, "• "+p.Title+"\n"...)
	}
	b = append(b, "\nOPPORTUNITIES:\n"...)
	for _, p := range decodeTitledPoints(e["opportunities"]) {
		b = append(b, "• "+p.Title+"\n"...)
	}
	b = append(b, "\nADDRESSING CONCERNS:\n"...)
	for _, p := range decodeConcernResponses(e["addressing_concerns"]) {
		b = append(b, "• "+p.Response+"\n"...)
	}
	return string(b)
}

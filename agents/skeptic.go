package agents

import (
	"context"
	"fmt"

	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
)

// CriticizeIdeasBatch is the batch_fn for the skeptic stage: one call
// producing Skepticism for every (idea, advocacy) pair, ordered by
// idea_index.
func CriticizeIdeasBatch(ctx context.Context, router *llm.Router, items []SkepticInput, context_ string, temperature float32) ([]model.Skepticism, int, error) {
	if len(items) == 0 {
		return nil, 0, nil
	}
	if err := validateAll(items); err != nil {
		return nil, 0, err
	}

	data, resp, err := router.GenerateStructured(ctx, buildSkepticismPrompt(items, context_), skepticismSchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return nil, 0, err
	}

	entries := asMapSlice(data["skepticisms"])
	if len(entries) != len(items) {
		return nil, 0, fmt.Errorf("batch skeptic failed: expected %d skepticisms, got %d", len(items), len(entries))
	}

	results := make([]model.Skepticism, len(entries))
	for i, e := range entries {
		results[i] = decodeSkepticism(e)
	}
	sortByIdeaIndex(results, func(r model.Skepticism) int { return r.IdeaIndex })
	return results, resp.TokensUsed, nil
}

// CriticizeIdea is the single-item fallback used by batch.WithFallback.
func CriticizeIdea(ctx context.Context, router *llm.Router, item SkepticInput, context_ string, temperature float32) (model.Skepticism, error) {
	if err := item.Validate(); err != nil {
		return model.Skepticism{}, err
	}
	data, _, err := router.GenerateStructured(ctx, buildSkepticismPrompt([]SkepticInput{item}, context_), skepticismSchema(), temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return degradedSkepticism(), nil
	}
	entries := asMapSlice(data["skepticisms"])
	if len(entries) == 0 {
		return degradedSkepticism(), nil
	}
	return decodeSkepticism(entries[0]), nil
}

func decodeSkepticism(e map[string]interface{}) model.Skepticism {
	s := model.Skepticism{
		IdeaIndex:               asInt(e, "idea_index"),
		CriticalFlaws:           asStringSlice(e, "critical_flaws"),
		RisksChallenges:         asStringSlice(e, "risks_challenges"),
		QuestionableAssumptions: asStringSlice(e, "questionable_assumptions"),
		MissingConsiderations:   asStringSlice(e, "missing_considerations"),
	}
	s.Formatted = formatSkepticism(s)
	return s
}

func degradedSkepticism() model.Skepticism {
	s := model.Skepticism{
		CriticalFlaws: []string{"Implementation challenges", "Resource requirements need evaluation"},
	}
	s.Formatted = "[DEGRADED MODE]\n" + formatSkepticism(s)
	return s
}

func formatSkepticism(s model.Skepticism) string {
	var b []byte
	b = append(b, "CRITICAL FLAWS:\n"...)
	for _, v := range s.CriticalFlaws {
		b = append(b, "• "+v+"\n"...)
	}
	b = append(b, "\nRISKS & CHALLENGES:\n"...)
	for _, v := range s.RisksChallenges {
		b = append(b, "• "+v+"\n"...)
	}
	b = append(b, "\nQUESTIONABLE ASSUMPTIONS:\n"...)
	for _, v := range s.QuestionableAssumptions {
		b = append(b, "• "+v+"\n"...)
	}
	b = append(b, "\nMISSING CONSIDERATIONS:\n"...)
	for _, v := range s.MissingConsiderations {
		b = append(b, "• "+v+"\n"...)
	}
	return string(b)
}

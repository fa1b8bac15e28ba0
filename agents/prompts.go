// Package agents implements the four LLM-backed roles the orchestrator
// drives through its pipeline (generator, critic, advocate, skeptic), each
// with a single-item and a batch variant. Prompt bodies are deliberately
// thin: spec.md excludes prompt template contents from scope, so the
// templates here are the minimum needed to exercise the role's schema and
// the language-consistency instruction, grounded on
// original_source/src/madspark tests (test_agents.py, test_advocate_batch.py,
// test_skeptic_batch.py, test_idea_improvement_batch.py).
package agents

import (
	"fmt"
	"strings"

	"github.com/ideagrid/orchestrator/core"
)

// languageInstruction is injected as the system instruction on every call so
// the provider answers in the same language the caller used (spec §4.4,
// P12).
const languageInstruction = "Respond in the same language as the user's input. Do not translate proper nouns or the input topic."

func generationSchema() *core.Schema {
	return &core.Schema{
		Name: "IdeaGeneration",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ideas": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"idea": map[string]interface{}{"type": "string"},
						},
						"required": []string{"idea"},
					},
				},
			},
			"required": []string{"ideas"},
		},
	}
}

func improvementSchema() *core.Schema {
	return &core.Schema{
		Name: "IdeaImprovementBatch",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"improvements": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"idea_index":           map[string]interface{}{"type": "integer"},
							"improved_title":       map[string]interface{}{"type": "string"},
							"improved_description": map[string]interface{}{"type": "string"},
							"key_improvements":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
							"implementation_steps": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
							"differentiators":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						},
						"required": []string{"idea_index", "improved_title", "improved_description"},
					},
				},
			},
		},
	}
}

func evaluationSchema() *core.Schema {
	return &core.Schema{
		Name: "CriticEvaluationBatch",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"evaluations": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"idea_index": map[string]interface{}{"type": "integer"},
							"score":      map[string]interface{}{"type": "number"},
							"comment":    map[string]interface{}{"type": "string"},
						},
						"required": []string{"idea_index", "score", "comment"},
					},
				},
			},
		},
	}
}

func advocacySchema() *core.Schema {
	return &core.Schema{
		Name: "AdvocacyBatch",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"advocacies": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"idea_index":          map[string]interface{}{"type": "integer"},
							"strengths":           map[string]interface{}{"type": "array"},
							"opportunities":       map[string]interface{}{"type": "array"},
							"addressing_concerns": map[string]interface{}{"type": "array"},
						},
						"required": []string{"idea_index"},
					},
				},
			},
		},
	}
}

func skepticismSchema() *core.Schema {
	return &core.Schema{
		Name: "SkepticismBatch",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"skepticisms": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"idea_index":              map[string]interface{}{"type": "integer"},
							"critical_flaws":          map[string]interface{}{"type": "array"},
							"risks_challenges":        map[string]interface{}{"type": "array"},
							"questionable_assumptions": map[string]interface{}{"type": "array"},
							"missing_considerations":  map[string]interface{}{"type": "array"},
						},
						"required": []string{"idea_index"},
					},
				},
			},
		},
	}
}

func buildGenerationPrompt(topic, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate creative ideas for the topic: %q.\n", topic)
	if context != "" {
		fmt.Fprintf(&b, "Constraints/context: %s\n", context)
	}
	b.WriteString("Return a diverse set of concrete, actionable ideas as structured JSON.")
	return b.String()
}

func buildEvaluationPrompt(ideas []string, context string) string {
	var b strings.Builder
	b.WriteString("Evaluate each of the following ideas on a 0-10 scale, with a short comment.\n")
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	for i, idea := range ideas {
		fmt.Fprintf(&b, "%d. %s\n", i, idea)
	}
	return b.String()
}

func buildAdvocacyPrompt(items []AdvocateInput, context string) string {
	var b strings.Builder
	b.WriteString("Advocate for each of the following ideas, given their evaluation.\n")
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	for i, item := range items {
		fmt.Fprintf(&b, "%d. Idea: %s\n   Evaluation: %s\n", i, item.Idea, item.Evaluation)
	}
	return b.String()
}

func buildSkepticismPrompt(items []SkepticInput, context string) string {
	var b strings.Builder
	b.WriteString("Play devil's advocate against each of the following ideas, given the advocacy already made for them.\n")
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	for i, item := range items {
		fmt.Fprintf(&b, "%d. Idea: %s\n   Advocacy: %s\n", i, item.Idea, item.Advocacy)
	}
	return b.String()
}

func buildImprovementPrompt(items []ImproveInput, context string) string {
	var b strings.Builder
	b.WriteString("Improve each of the following ideas using the accumulated feedback.\n")
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	for i, item := range items {
		fmt.Fprintf(&b, "%d. Idea: %s\n   Critique: %s\n   Advocacy: %s\n   Skepticism: %s\n",
			i, item.Idea, item.Critique, item.Advocacy, item.Skepticism)
	}
	return b.String()
}

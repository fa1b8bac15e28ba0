// Package inference implements the logical inference engine (C7): it asks
// the LLM for one of five structured-but-freeform analyses of an idea
// (full / causal / constraints / contradiction / implications) and parses
// the labeled-section text format the provider returns. Grounded on
// original_source/tests/test_logical_inference.py and
// test_batch_logical_inference.py, whose fixture responses are plain text
// with fixed section headers rather than JSON — the engine therefore goes
// through llm.Router.GenerateResponseText, not GenerateStructured.
package inference

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/model"
)

const languageInstruction = "Respond in the same language as the user's input. Do not translate proper nouns or the input topic."

// Engine produces logical-inference analyses via an LLM router.
type Engine struct {
	router      *llm.Router
	temperature float32
}

// New constructs an Engine.
func New(router *llm.Router, temperature float32) *Engine {
	return &Engine{router: router, temperature: temperature}
}

// Analyze produces one InferenceResult for a single idea. It never returns
// an error for provider/parsing failures (spec.md §4.7: "do not propagate
// the exception") — those degrade to a placeholder result instead.
func (e *Engine) Analyze(ctx context.Context, idea, topic, context_ string, analysisType model.AnalysisType) (model.InferenceResult, int) {
	prompt := singleAnalysisPrompt(idea, topic, context_, analysisType)
	text, resp, err := e.router.GenerateResponseText(ctx, prompt, e.temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		return model.PlaceholderInferenceResult(0, analysisType, err.Error()), 0
	}

	result, ok := parseSection(text, analysisType)
	if !ok {
		return model.PlaceholderInferenceResult(0, analysisType, "Unable to parse analysis for this idea"), resp.TokensUsed
	}
	return result, resp.TokensUsed
}

// AnalyzeBatch produces one InferenceResult per idea from a single batched
// call. The response is split on the fixed "=== ANALYSIS_FOR_IDEA_N ==="
// delimiter; any idea whose section is missing or unparseable gets a
// placeholder. The returned slice always has len(ideas) entries, and on
// total API failure every entry is a placeholder carrying the error.
func (e *Engine) AnalyzeBatch(ctx context.Context, ideas []string, topic, context_ string, analysisType model.AnalysisType) ([]model.InferenceResult, int) {
	if len(ideas) == 0 {
		return nil, 0
	}

	prompt := batchAnalysisPrompt(ideas, topic, context_, analysisType)
	text, resp, err := e.router.GenerateResponseText(ctx, prompt, e.temperature, llm.GenerateOptions{SystemInstruction: languageInstruction})
	if err != nil {
		results := make([]model.InferenceResult, len(ideas))
		for i := range ideas {
			results[i] = model.PlaceholderInferenceResult(i, analysisType, err.Error())
		}
		return results, 0
	}

	sections := splitIntoSections(text, len(ideas))
	results := make([]model.InferenceResult, len(ideas))
	for i := range ideas {
		section, ok := sections[i]
		if !ok {
			results[i] = model.PlaceholderInferenceResult(i, analysisType, "Unable to parse analysis for this idea")
			continue
		}
		parsed, ok := parseSection(section, analysisType)
		if !ok {
			results[i] = model.PlaceholderInferenceResult(i, analysisType, "Unable to parse analysis for this idea")
			continue
		}
		parsed.IdeaIndex = i
		results[i] = parsed
	}

	return results, resp.TokensUsed
}

func singleAnalysisPrompt(idea, topic, context_ string, analysisType model.AnalysisType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a %s logical analysis of the following idea for the topic %q.\n", analysisType, topic)
	if context_ != "" {
		fmt.Fprintf(&b, "Context: %s\n", context_)
	}
	fmt.Fprintf(&b, "Idea: %s\n\n", idea)
	b.WriteString(analysisTemplate(analysisType))
	return b.String()
}

func batchAnalysisPrompt(ideas []string, topic, context_ string, analysisType model.AnalysisType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a %s logical analysis of each idea below for the topic %q.\n", analysisType, topic)
	if context_ != "" {
		fmt.Fprintf(&b, "Context: %s\n", context_)
	}
	for i, idea := range ideas {
		fmt.Fprintf(&b, "IDEA_%d: %s\n", i+1, idea)
	}
	b.WriteString("\nFor each idea, respond with a section in exactly this form:\n\n")
	for i := range ideas {
		fmt.Fprintf(&b, "=== ANALYSIS_FOR_IDEA_%d ===\n", i+1)
	}
	b.WriteString(analysisTemplate(analysisType))
	return b.String()
}

func analysisTemplate(analysisType model.AnalysisType) string {
	var b strings.Builder
	b.WriteString("INFERENCE_CHAIN:\n- [Step 1]: ...\n\nCONCLUSION: ...\n\nCONFIDENCE: 0.0-1.0\n\nIMPROVEMENTS: ...\n")
	switch analysisType {
	case model.AnalysisCausal:
		b.WriteString("CAUSAL_CHAIN: ...\nROOT_CAUSE: ...\n")
	case model.AnalysisConstraints:
		b.WriteString("CONSTRAINT_SATISFACTION: name=0.0-1.0, ...\nTRADE_OFFS: ...\n")
	case model.AnalysisContradiction:
		b.WriteString("CONTRADICTIONS: statement1 | statement2 | severity\nRESOLUTION: ...\n")
	case model.AnalysisImplications:
		b.WriteString("IMPLICATIONS: ...\nSECOND_ORDER_EFFECTS: ...\n")
	}
	return b.String()
}

var sectionDelimiter = regexp.MustCompile(`===\s*ANALYSIS_FOR_IDEA_(\d+)\s*===`)

// splitIntoSections divides text on the fixed delimiter, keyed by
// zero-based idea index (the delimiter itself is 1-indexed).
func splitIntoSections(text string, expectedCount int) map[int]string {
	locs := sectionDelimiter.FindAllStringSubmatchIndex(text, -1)
	sections := make(map[int]string, expectedCount)
	for i, loc := range locs {
		numStart, numEnd := loc[2], loc[3]
		n, err := strconv.Atoi(text[numStart:numEnd])
		if err != nil {
			continue
		}
		bodyStart := loc[1]
		bodyEnd := len(text)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		sections[n-1] = text[bodyStart:bodyEnd]
	}
	return sections
}

var (
	chainStepRe  = regexp.MustCompile(`(?m)^\s*-\s*(.+)$`)
	conclusionRe = regexp.MustCompile(`CONCLUSION:\s*(.+)`)
	confidenceRe = regexp.MustCompile(`CONFIDENCE:\s*([0-9.]+)`)
	improvementsRe = regexp.MustCompile(`IMPROVEMENTS:\s*(.+)`)
	rootCauseRe  = regexp.MustCompile(`ROOT_CAUSE:\s*(.+)`)
	resolutionRe = regexp.MustCompile(`RESOLUTION:\s*(.+)`)
)

// parseSection extracts the common fields (and a couple of type-specific
// ones) from one analysis block. ok is false when neither an inference
// chain nor a conclusion could be found — the section is unparseable.
func parseSection(text string, analysisType model.AnalysisType) (model.InferenceResult, bool) {
	chainSection := text
	if idx := strings.Index(text, "CONCLUSION:"); idx >= 0 {
		chainSection = text[:idx]
	}
	var chain []string
	for _, m := range chainStepRe.FindAllStringSubmatch(chainSection, -1) {
		step := strings.TrimSpace(m[1])
		if step != "" {
			chain = append(chain, step)
		}
	}

	conclusionMatch := conclusionRe.FindStringSubmatch(text)
	if len(chain) == 0 && conclusionMatch == nil {
		return model.InferenceResult{}, false
	}

	conclusion := ""
	if conclusionMatch != nil {
		conclusion = strings.TrimSpace(firstLine(conclusionMatch[1]))
	}

	confidence := 0.0
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			confidence = clamp01(v)
		}
	}

	improvements := ""
	if m := improvementsRe.FindStringSubmatch(text); m != nil {
		improvements = strings.TrimSpace(firstLine(m[1]))
	}

	result := model.InferenceResult{
		Type:           analysisType,
		InferenceChain: chain,
		Conclusion:     conclusion,
		Confidence:     roundTo2dp(confidence),
		Improvements:   improvements,
	}

	switch analysisType {
	case model.AnalysisCausal:
		if m := rootCauseRe.FindStringSubmatch(text); m != nil {
			result.RootCause = strings.TrimSpace(firstLine(m[1]))
		}
	case model.AnalysisContradiction:
		if m := resolutionRe.FindStringSubmatch(text); m != nil {
			result.Resolution = strings.TrimSpace(firstLine(m[1]))
		}
	}

	return result, true
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundTo2dp(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// Verbosity controls how much detail FormatForDisplay renders.
type Verbosity string

const (
	VerbosityBrief    Verbosity = "brief"
	VerbosityStandard Verbosity = "standard"
	VerbosityDetailed Verbosity = "detailed"
)

// FormatForDisplay renders a human-readable summary of result at the
// requested verbosity: brief is conclusion + confidence, standard adds the
// inference chain, detailed adds type-specific fields and improvements.
func FormatForDisplay(result model.InferenceResult, verbosity Verbosity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (confidence: %.0f%%)", result.Conclusion, result.Confidence*100)
	if verbosity == VerbosityBrief {
		return b.String()
	}

	if len(result.InferenceChain) > 0 {
		b.WriteString("\nReasoning:\n")
		for _, step := range result.InferenceChain {
			fmt.Fprintf(&b, "  - %s\n", step)
		}
	}
	if verbosity == VerbosityStandard {
		return strings.TrimRight(b.String(), "\n")
	}

	switch result.Type {
	case model.AnalysisCausal:
		if result.RootCause != "" {
			fmt.Fprintf(&b, "Root cause: %s\n", result.RootCause)
		}
		if len(result.CausalChain) > 0 {
			fmt.Fprintf(&b, "Causal chain: %s\n", strings.Join(result.CausalChain, " -> "))
		}
	case model.AnalysisConstraints:
		if len(result.ConstraintSatisfaction) > 0 {
			fmt.Fprintf(&b, "Constraint satisfaction: %v\n", result.ConstraintSatisfaction)
		}
	case model.AnalysisContradiction:
		for _, c := range result.Contradictions {
			fmt.Fprintf(&b, "Contradiction (%s): %q vs %q\n", c.Severity, c.Statement1, c.Statement2)
		}
		if result.Resolution != "" {
			fmt.Fprintf(&b, "Resolution: %s\n", result.Resolution)
		}
	case model.AnalysisImplications:
		if len(result.Implications) > 0 {
			fmt.Fprintf(&b, "Implications: %s\n", strings.Join(result.Implications, "; "))
		}
	}
	if result.Improvements != "" {
		fmt.Fprintf(&b, "Suggested improvements: %s\n", result.Improvements)
	}

	return strings.TrimRight(b.String(), "\n")
}

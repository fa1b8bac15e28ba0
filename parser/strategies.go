package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// strategy attempts one parsing approach over text, returning nil on
// failure so the chain can try the next strategy. No strategy ever panics
// or propagates an exception-style error across the chain boundary.
type strategy interface {
	name() string
	parse(text string, expectedCount int) (interface{}, bool)
}

// directJSON is strategy 1: parse the entire text as JSON.
type directJSON struct{}

func (directJSON) name() string { return "Direct" }

func (directJSON) parse(text string, expectedCount int) (interface{}, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	var arr []map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return arr, true
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, true
	}

	return nil, false
}

// arrayExtraction is strategy 2: bracket-matching scan for top-level [...]
// arrays, respecting string literals and escapes.
type arrayExtraction struct{}

func (arrayExtraction) name() string { return "ArrayExtraction" }

func (arrayExtraction) parse(text string, expectedCount int) (interface{}, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	var results []map[string]interface{}
	for _, arrText := range extractBracketedArrays(trimmed) {
		var arr []map[string]interface{}
		if err := json.Unmarshal([]byte(arrText), &arr); err == nil {
			results = append(results, arr...)
		}
	}

	if len(results) == 0 {
		return nil, false
	}
	return results, true
}

// extractBracketedArrays scans text for balanced top-level [...] spans,
// tracking string boundaries and escapes so brackets inside string
// literals are ignored.
func extractBracketedArrays(text string) []string {
	var spans []string
	runes := []rune(text)
	n := len(runes)

	for i := 0; i < n; i++ {
		if runes[i] != '[' {
			continue
		}
		end := matchArrayEnd(runes, i)
		if end != -1 {
			spans = append(spans, string(runes[i:end+1]))
			i = end
		}
	}
	return spans
}

// matchArrayEnd returns the index of the closing bracket matching the
// opening bracket at start, or -1 if unbalanced.
func matchArrayEnd(runes []rune, start int) int {
	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(runes); i++ {
		c := runes[i]
		switch {
		case escapeNext:
			escapeNext = false
		case c == '\\' && inString:
			escapeNext = true
		case c == '"':
			inString = !inString
		case !inString && c == '[':
			depth++
		case !inString && c == ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// lineByLine is strategy 3: attempt to parse each non-blank line as its
// own JSON object.
type lineByLine struct{}

func (lineByLine) name() string { return "LineByLine" }

func (lineByLine) parse(text string, expectedCount int) (interface{}, bool) {
	var results []map[string]interface{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			results = append(results, obj)
		}
	}
	if len(results) == 0 {
		return nil, false
	}
	return results, true
}

// regexObjectExtraction is strategy 4: pre-compiled patterns match {...}
// blocks with one level of nesting, retrying with newlines escaped inside
// strings when the raw match doesn't parse.
type regexObjectExtraction struct{}

var jsonObjectPattern = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

func (regexObjectExtraction) name() string { return "RegexObjectExtraction" }

func (regexObjectExtraction) parse(text string, expectedCount int) (interface{}, bool) {
	var results []map[string]interface{}

	for _, candidate := range jsonObjectPattern.FindAllString(text, -1) {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			results = append(results, obj)
			continue
		}

		cleaned := escapeNewlinesInStrings(candidate)
		if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
			results = append(results, obj)
		}
	}

	if len(results) == 0 {
		return nil, false
	}
	return results, true
}

// escapeNewlinesInStrings replaces literal newlines that appear inside
// quoted string values with the \n escape sequence, so otherwise-valid
// JSON that a model broke across lines still parses.
func escapeNewlinesInStrings(s string) string {
	var b strings.Builder
	inString := false
	escapeNext := false
	for _, c := range s {
		switch {
		case escapeNext:
			b.WriteRune(c)
			escapeNext = false
		case c == '\\':
			b.WriteRune(c)
			escapeNext = true
		case c == '"':
			inString = !inString
			b.WriteRune(c)
		case c == '\n' && inString:
			b.WriteString(`\n`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// scoreCommentLegacy is strategy 5: regex families for the legacy
// "Score: N ... Comment: ..." text format and narrative variants. All
// comment-capture groups are bounded to <=500 characters for ReDoS safety.
type scoreCommentLegacy struct{}

func (scoreCommentLegacy) name() string { return "ScoreCommentLegacy" }

var scoreCommentStandard = regexp.MustCompile(`(?is)score\s*[:\-]?\s*(\d{1,2})\D{0,20}comment\s*[:\-]?\s*([^\n]{0,500})`)

var scoreNarrativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)scores?\s+an?\s+(\d{1,2})[.,]?\s*([^\n]{0,500})`),
	regexp.MustCompile(`(?is)give[s]?\s+it\s+a\s+score\s+of\s+(\d{1,2})[.,]?\s*([^\n]{0,500})`),
	regexp.MustCompile(`(?is)deserves\s+an?\s+(\d{1,2})[.,]?\s*([^\n]{0,500})`),
}

func (scoreCommentLegacy) parse(text string, expectedCount int) (interface{}, bool) {
	var results []map[string]interface{}

	for _, m := range scoreCommentStandard.FindAllStringSubmatch(text, -1) {
		if score, ok := parseClampedScore(m[1]); ok {
			results = append(results, map[string]interface{}{
				"score":   score,
				"comment": strings.Trim(strings.TrimSpace(m[2]), `"'`),
			})
		}
	}

	if len(results) == 0 {
		for _, pattern := range scoreNarrativePatterns {
			for _, m := range pattern.FindAllStringSubmatch(text, -1) {
				if score, ok := parseClampedScore(m[1]); ok {
					results = append(results, map[string]interface{}{
						"score":   score,
						"comment": strings.Trim(strings.TrimSpace(m[2]), `"'.`),
					})
				}
			}
		}
	}

	if len(results) > 0 {
		if expectedCount <= 0 {
			if len(results) == 1 {
				return results[0], true
			}
			return results, true
		}
		for len(results) < expectedCount {
			results = append(results, placeholderEvaluation())
		}
		return results[:expectedCount], true
	}

	if expectedCount > 0 {
		placeholders := make([]map[string]interface{}, expectedCount)
		for i := range placeholders {
			placeholders[i] = placeholderEvaluation()
		}
		return placeholders, true
	}

	return nil, false
}

func placeholderEvaluation() map[string]interface{} {
	return map[string]interface{}{"score": 0, "comment": "Failed to parse evaluation"}
}

func parseClampedScore(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

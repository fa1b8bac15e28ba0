package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectJSONArray(t *testing.T) {
	result := Parse(`[{"score": 8, "comment": "solid"}]`, 0)
	arr, ok := result.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, arr, 1)
	assert.Equal(t, float64(8), arr[0]["score"])
}

func TestParseUnparseableReturnsNil(t *testing.T) {
	result := Parse("this is not json at all, just prose.", 0)
	assert.Nil(t, result)
}

func TestParseUnparseableWithExpectedCountYieldsPlaceholders(t *testing.T) {
	result := Parse("not json and no score pattern either", 3)
	arr, ok := result.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, arr, 3)
	for _, item := range arr {
		assert.Equal(t, 0, item["score"])
		assert.Equal(t, "Failed to parse evaluation", item["comment"])
	}
}

func TestParseArrayExtractionFromSurroundingProse(t *testing.T) {
	text := `Here are the results: [{"score": 5, "comment": "ok"}, {"score": 9, "comment": "great"}] Thanks!`
	result := Parse(text, 0)
	arr, ok := result.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, arr, 2)
}

func TestParseLineByLine(t *testing.T) {
	text := "{\"score\": 3, \"comment\": \"a\"}\n{\"score\": 7, \"comment\": \"b\"}"
	result := Parse(text, 0)
	arr, ok := result.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, arr, 2)
}

func TestParseScoreCommentLegacyStandard(t *testing.T) {
	text := `Score: 8 Comment: "Promising but needs a budget plan"`
	result := Parse(text, 0)
	obj, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 8, obj["score"])
}

func TestParseScoreCommentLegacyNarrative(t *testing.T) {
	text := "I'd say this idea deserves an 9, very strong concept."
	result := Parse(text, 0)
	obj, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 9, obj["score"])
}

func TestParseIdempotentOnValidArray(t *testing.T) {
	text := `[{"a":1},{"a":2}]`
	first := Parse(text, 0)
	second := Parse(text, 0)
	assert.Equal(t, first, second)
}

func TestTelemetryRecordsSucceedingStrategy(t *testing.T) {
	p := New()
	p.Parse(`[{"score":1,"comment":"x"}]`, 0)
	telemetry := p.Telemetry()
	assert.True(t, telemetry.Succeeded)
	assert.Equal(t, "Direct", telemetry.Strategy)
}

// Package parser extracts structured records from LLM text output that
// should be JSON but often isn't, running a fixed chain of strategies and
// short-circuiting on the first one that succeeds.
package parser

var chain = []strategy{
	directJSON{},
	arrayExtraction{},
	lineByLine{},
	regexObjectExtraction{},
	scoreCommentLegacy{},
}

// Parser runs the five-strategy fallback chain. It is stateful only in its
// telemetry (which strategy last succeeded or failed).
type Parser struct {
	telemetry Telemetry
}

// New creates a Parser with fresh telemetry.
func New() *Parser {
	return &Parser{}
}

// Telemetry returns the outcome of the most recent Parse call.
func (p *Parser) Telemetry() Telemetry {
	p.telemetry.mu.Lock()
	defer p.telemetry.mu.Unlock()
	return Telemetry{Strategy: p.telemetry.Strategy, Succeeded: p.telemetry.Succeeded, FailureNote: p.telemetry.FailureNote}
}

// Parse runs the fixed strategy chain over text, short-circuiting on the
// first strategy that returns a non-nil result. expectedCount, when > 0,
// is passed to strategies that can use it to pad/placeholder their output;
// 0 means "no expectation".
func (p *Parser) Parse(text string, expectedCount int) interface{} {
	for _, s := range chain {
		if result, ok := s.parse(text, expectedCount); ok {
			p.telemetry.recordSuccess(s.name())
			return result
		}
		p.telemetry.recordFailure(s.name(), "no match")
	}
	return nil
}

// Parse is a package-level convenience for one-shot calls that don't need
// to inspect telemetry.
func Parse(text string, expectedCount int) interface{} {
	return New().Parse(text, expectedCount)
}

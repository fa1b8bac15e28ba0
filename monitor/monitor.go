// Package monitor implements the batch-call accounting the orchestrator and
// the batch-with-fallback wrapper report into: one BatchMetrics record per
// batch attempt, aggregated into session summaries and a cost-effectiveness
// estimate. Grounded on
// original_source/src/madspark/cli/batch_metrics.py's period/cost-analysis
// shape; the underlying BatchMonitor/start_batch_call/end_batch_call pair
// it reads from is original_source/src/madspark/utils/batch_monitor.py
// (referenced via batch_fallback.py's get_batch_monitor()).
package monitor

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/model"
)

// active is a batch call in flight, keyed by the opaque handle StartBatchCall
// returns.
type active struct {
	batchType string
	itemCount int
	startedAt time.Time
}

// Options configures a Monitor. PersistPath, when non-empty, appends every
// completed BatchMetrics record as a line of JSON (spec's SUPPLEMENTED
// FEATURES "optional line-delimited JSON persistence").
type Options struct {
	Logger      core.Logger
	PersistPath string
}

// Monitor is the batch monitor (C9): request-scoped, constructed once per
// workflow run like the Router (no package-level mutable state).
type Monitor struct {
	mu      sync.Mutex
	logger  core.Logger
	persist string

	sessionID string
	active    map[string]*active
	records   []model.BatchMetrics
}

// New constructs a Monitor with a fresh session ID.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Monitor{
		logger:    logger,
		persist:   opts.PersistPath,
		sessionID: uuid.NewString(),
		active:    make(map[string]*active),
	}
}

// SessionID identifies this monitor's run, for log/trace correlation.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

// StartBatchCall records the start of a batch attempt and returns an opaque
// handle to pass to EndBatchCall.
func (m *Monitor) StartBatchCall(batchType string, itemCount int) string {
	handle := uuid.NewString()
	m.mu.Lock()
	m.active[handle] = &active{batchType: batchType, itemCount: itemCount, startedAt: time.Now()}
	m.mu.Unlock()
	return handle
}

// EndBatchCall closes out a batch attempt, recording its outcome. Unknown
// handles are ignored rather than panicking: a monitor is an accounting
// side-channel, never a reason to fail the call it's watching.
func (m *Monitor) EndBatchCall(handle string, success bool, errMsg string, fallbackUsed bool) {
	m.endBatchCall(handle, success, errMsg, fallbackUsed, 0, 0)
}

// EndBatchCallWithUsage is EndBatchCall plus token/cost accounting, used
// when the caller has that information (e.g. the router's response).
func (m *Monitor) EndBatchCallWithUsage(handle string, success bool, errMsg string, fallbackUsed bool, tokens int, costUSD float64) {
	m.endBatchCall(handle, success, errMsg, fallbackUsed, tokens, costUSD)
}

func (m *Monitor) endBatchCall(handle string, success bool, errMsg string, fallbackUsed bool, tokens int, costUSD float64) {
	m.mu.Lock()
	a, ok := m.active[handle]
	if ok {
		delete(m.active, handle)
	}
	m.mu.Unlock()
	if !ok {
		m.logger.Warn("end_batch_call for unknown handle", map[string]interface{}{"handle": handle})
		return
	}

	rec := model.BatchMetrics{
		Timestamp:        a.startedAt.Unix(),
		BatchType:        a.batchType,
		ItemsCount:       a.itemCount,
		TokensUsed:       tokens,
		EstimatedCostUSD: costUSD,
		DurationSeconds:  time.Since(a.startedAt).Seconds(),
		Success:          success,
		FallbackUsed:     fallbackUsed,
		ErrorMessage:     errMsg,
	}

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	if m.persist != "" {
		if err := m.appendRecord(rec); err != nil {
			m.logger.Warn("failed to persist batch metrics", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (m *Monitor) appendRecord(rec model.BatchMetrics) error {
	f, err := os.OpenFile(m.persist, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// Records returns a copy of every completed batch record this monitor has
// seen.
func (m *Monitor) Records() []model.BatchMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BatchMetrics, len(m.records))
	copy(out, m.records)
	return out
}

// TypeBreakdown is one batch type's aggregate within a SessionSummary.
type TypeBreakdown struct {
	BatchType string
	Calls     int
	Items     int
	Tokens    int
	CostUSD   float64
}

// SessionSummary aggregates every record this monitor has seen, grouped by
// batch type (_format_period_summary's by-type table).
type SessionSummary struct {
	SessionID       string
	Successful      int
	Failed          int
	WithFallback    int
	TotalItems      int
	TotalTokens     int
	TotalCostUSD    float64
	TotalDurationS  float64
	ByType          []TypeBreakdown
}

// Summarize computes the session summary over every record seen so far.
func (m *Monitor) Summarize() SessionSummary {
	m.mu.Lock()
	records := make([]model.BatchMetrics, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	summary := SessionSummary{SessionID: m.sessionID}
	byType := map[string]*TypeBreakdown{}

	for _, r := range records {
		if !r.Success {
			summary.Failed++
			continue
		}
		summary.Successful++
		if r.FallbackUsed {
			summary.WithFallback++
		}
		summary.TotalItems += r.ItemsCount
		summary.TotalTokens += r.TokensUsed
		summary.TotalCostUSD += r.EstimatedCostUSD
		summary.TotalDurationS += r.DurationSeconds

		bt, ok := byType[r.BatchType]
		if !ok {
			bt = &TypeBreakdown{BatchType: r.BatchType}
			byType[r.BatchType] = bt
		}
		bt.Calls++
		bt.Items += r.ItemsCount
		bt.Tokens += r.TokensUsed
		bt.CostUSD += r.EstimatedCostUSD
	}

	for _, bt := range byType {
		summary.ByType = append(summary.ByType, *bt)
	}
	sort.Slice(summary.ByType, func(i, j int) bool { return summary.ByType[i].BatchType < summary.ByType[j].BatchType })

	return summary
}

// CostEffectiveness estimates savings from batching versus one call per
// item, grounded on _format_cost_analysis's 30%-overhead heuristic.
type CostEffectiveness struct {
	BatchCostUSD      float64
	IndividualCostUSD float64
	SavingsUSD        float64
	SavingsPercent    float64
}

// AnalyzeCostEffectiveness compares batched cost against an estimated
// individual-call cost (+30% overhead), counting only successful,
// non-fallback batch calls.
func (m *Monitor) AnalyzeCostEffectiveness() CostEffectiveness {
	m.mu.Lock()
	records := make([]model.BatchMetrics, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	var batchCost float64
	for _, r := range records {
		if r.Success && !r.FallbackUsed {
			batchCost += r.EstimatedCostUSD
		}
	}

	individual := batchCost * 1.3
	savings := individual - batchCost
	var pct float64
	if individual > 0 {
		pct = savings / individual * 100
	}

	return CostEffectiveness{
		BatchCostUSD:      batchCost,
		IndividualCostUSD: individual,
		SavingsUSD:        savings,
		SavingsPercent:    pct,
	}
}

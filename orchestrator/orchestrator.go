// Package orchestrator implements the workflow orchestrator (C8): the
// component that composes the generate, evaluate, select, advocate,
// skeptic, improve and re-evaluate stages into one run, applying the
// concurrency, timeout, cancellation and degradation policy spec.md §4.8
// and §5 describe. Grounded on
// _examples/itsneelabh-gomind/orchestration/workflow_executor.go's
// BatchCall (indexed-result fan-out over a channel) and
// original_source/src/madspark/core/async_coordinator.py's six-stage
// pipeline shape.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ideagrid/orchestrator/batch"
	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/evaluator"
	"github.com/ideagrid/orchestrator/inference"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/resilience"
)

// Options constructs an Orchestrator. Router is mandatory; everything else
// is optional and degrades to a no-op or disabled feature when absent.
type Options struct {
	Router *llm.Router

	// Monitor records batch-call accounting (C9). A nil Monitor is replaced
	// by one that discards everything, so stage code never has to check
	// for its presence.
	Monitor batch.Monitor

	// Evaluator and Inference back the optional multi-dimensional
	// evaluation and logical-inference features. Leaving them nil disables
	// those RunOptions regardless of what the caller requests.
	Evaluator *evaluator.Evaluator
	Inference *inference.Engine

	Logger core.Logger

	// MaxConcurrency bounds simultaneous LLM calls across the whole run
	// (default 10).
	MaxConcurrency int

	// RetryConfig overrides the retry policy applied to every agent call
	// wrapped by resilience.RetryIfRetryable (default
	// resilience.AgentCallRetryConfig()).
	RetryConfig *resilience.RetryConfig

	// StateStore, when set, receives a best-effort checkpoint after every
	// stage of a Run so an operator can inspect an in-flight run from
	// outside the process. A nil StateStore (the default) disables
	// checkpointing entirely; checkpoint failures are logged and never
	// fail the run itself.
	StateStore StateStore
}

// discardMonitor implements batch.Monitor as a no-op, used when the caller
// supplies none.
type discardMonitor struct{}

func (discardMonitor) StartBatchCall(string, int) string       { return "" }
func (discardMonitor) EndBatchCall(string, bool, string, bool) {}

// Orchestrator runs workflows against one configured Router and its
// optional companions. It holds no per-run mutable state, so a single
// instance may run multiple workflows; each Run call owns its own
// semaphore permits and stage data.
type Orchestrator struct {
	router      *llm.Router
	monitor     batch.Monitor
	evaluator   *evaluator.Evaluator
	inference   *inference.Engine
	logger      core.Logger
	sem         semaphore
	retryConfig *resilience.RetryConfig
	stateStore  StateStore
}

// New validates and constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("%w: orchestrator requires a router", core.ErrMissingConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	mon := opts.Monitor
	if mon == nil {
		mon = discardMonitor{}
	}
	retryConfig := opts.RetryConfig
	if retryConfig == nil {
		retryConfig = resilience.AgentCallRetryConfig()
	}

	return &Orchestrator{
		router:      opts.Router,
		monitor:     mon,
		evaluator:   opts.Evaluator,
		inference:   opts.Inference,
		logger:      logger,
		sem:         newSemaphore(opts.MaxConcurrency),
		retryConfig: retryConfig,
		stateStore:  opts.StateStore,
	}, nil
}

// checkpoint saves a best-effort RunState if a StateStore is configured.
// Failures are logged, never returned: checkpointing is observability, not
// a correctness requirement of Run.
func (o *Orchestrator) checkpoint(ctx context.Context, runID, topic, stage string, stageErr error) {
	if o.stateStore == nil {
		return
	}
	state := RunState{RunID: runID, Topic: topic, Stage: stage, UpdatedAt: time.Now()}
	if stageErr != nil {
		state.Error = stageErr.Error()
	}
	if err := o.stateStore.SaveState(ctx, state); err != nil {
		o.logger.Warn("run state checkpoint failed", map[string]interface{}{
			"run_id": runID, "stage": stage, "error": err.Error(),
		})
	}
}

// withPermit acquires a semaphore slot, runs fn, and always releases the
// slot before returning — used to bound every individual LLM call (batch
// or per-item fallback) regardless of which stage issues it.
func (o *Orchestrator) withPermit(ctx context.Context, fn func(context.Context) error) error {
	if err := o.sem.acquire(ctx); err != nil {
		return err
	}
	defer o.sem.release()
	return fn(ctx)
}

// callWithTimeout bounds a single LLM call by the run's per-call timeout
// and retries it via resilience.RetryIfRetryable, honoring the semaphore.
func (o *Orchestrator) callWithTimeout(ctx context.Context, perCallTimeout time.Duration, fn func(context.Context) error) error {
	return o.withPermit(ctx, func(ctx context.Context) error {
		return resilience.RetryIfRetryable(ctx, o.retryConfig, func() error {
			callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
			defer cancel()
			return fn(callCtx)
		})
	})
}

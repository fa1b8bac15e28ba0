// Package batch implements the batch-with-fallback wrapper (C5): try one
// batched provider call for N items, and if it errors or comes back the
// wrong length, fall back to N independent per-item calls so the caller
// always gets exactly len(items) results back. Grounded on
// original_source/src/madspark/utils/batch_fallback.py's execute_batch_with_fallback.
package batch

import (
	"context"

	"github.com/ideagrid/orchestrator/core"
)

// Monitor is the subset of monitor.Monitor that batch needs. Declared here,
// not in monitor, so batch has no import-time dependency on the concrete
// accounting implementation.
type Monitor interface {
	StartBatchCall(batchType string, itemCount int) string
	EndBatchCall(handle string, success bool, errMsg string, fallbackUsed bool)
}

// WithFallback runs batchFn once over the whole slice. If it succeeds and
// returns exactly len(items) results, those are returned unchanged. If it
// errors, or returns the wrong number of results, every item is retried
// individually through perItemFn; an item whose individual call also fails
// is replaced by the output of placeholder so the caller never sees a
// length mismatch or a propagated per-item error (P3: batch degradation
// never reduces output length).
func WithFallback[T any, R any](
	ctx context.Context,
	mon Monitor,
	logger core.Logger,
	batchType string,
	items []T,
	batchFn func(context.Context, []T) ([]R, error),
	perItemFn func(context.Context, T, int) (R, error),
	placeholder func(index int, reason string) R,
) []R {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if len(items) == 0 {
		return nil
	}

	handle := mon.StartBatchCall(batchType, len(items))

	results, err := batchFn(ctx, items)
	if err == nil && len(results) == len(items) {
		mon.EndBatchCall(handle, true, "", false)
		return results
	}

	reason := "length mismatch"
	if err != nil {
		reason = err.Error()
	}
	logger.Warn("batch call degraded to per-item fallback", map[string]interface{}{
		"batch_type": batchType,
		"item_count": len(items),
		"reason":     reason,
	})
	mon.EndBatchCall(handle, false, reason, true)

	fallbackHandle := mon.StartBatchCall(batchType+"_fallback", len(items))
	out := make([]R, len(items))
	anyFailed := false
	for i, item := range items {
		r, itemErr := perItemFn(ctx, item, i)
		if itemErr != nil {
			anyFailed = true
			logger.Warn("per-item fallback failed, using placeholder", map[string]interface{}{
				"batch_type": batchType,
				"index":      i,
				"error":      itemErr.Error(),
			})
			out[i] = placeholder(i, itemErr.Error())
			continue
		}
		out[i] = r
	}
	mon.EndBatchCall(fallbackHandle, !anyFailed, "", true)

	return out
}

package orchestrator

import (
	"context"
	"sync/atomic"
	"time"
)

// wrapBatchCall adapts an agent package's batch function — which reports a
// token count as its middle return value — into the two-return shape
// batch.WithFallback expects, routing the call through the orchestrator's
// semaphore, per-call timeout and retry policy. tokens accumulates the
// reported count; it may be shared across concurrently running stages.
func wrapBatchCall[T, R any](o *Orchestrator, perCallTimeout time.Duration, tokens *int64, fn func(context.Context, []T) ([]R, int, error)) func(context.Context, []T) ([]R, error) {
	return func(ctx context.Context, items []T) ([]R, error) {
		var result []R
		err := o.callWithTimeout(ctx, perCallTimeout, func(ctx context.Context) error {
			r, n, err := fn(ctx, items)
			if err != nil {
				return err
			}
			result = r
			if tokens != nil {
				atomic.AddInt64(tokens, int64(n))
			}
			return nil
		})
		return result, err
	}
}

// wrapItemCall adapts an agent package's single-item function into
// batch.WithFallback's per-item shape, applying the same semaphore/timeout/
// retry policy as the batch path.
func wrapItemCall[T, R any](o *Orchestrator, perCallTimeout time.Duration, fn func(context.Context, T) (R, error)) func(context.Context, T, int) (R, error) {
	return func(ctx context.Context, item T, _ int) (R, error) {
		var result R
		err := o.callWithTimeout(ctx, perCallTimeout, func(ctx context.Context) error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		return result, err
	}
}

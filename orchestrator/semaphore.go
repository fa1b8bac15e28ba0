package orchestrator

import "context"

// semaphore bounds the number of concurrent LLM calls a workflow run may
// have in flight (spec.md §4.8/§5: "maximum concurrent LLM calls is bounded
// by a semaphore, default 10"). A batch call acquires one permit regardless
// of how many items it covers; a per-item fallback call acquires its own.
type semaphore chan struct{}

// defaultMaxConcurrency is the semaphore width used when Options.MaxConcurrency
// is zero or negative.
const defaultMaxConcurrency = 10

func newSemaphore(n int) semaphore {
	if n <= 0 {
		n = defaultMaxConcurrency
	}
	return make(semaphore, n)
}

// acquire blocks until a permit is free or ctx is done.
func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() {
	<-s
}

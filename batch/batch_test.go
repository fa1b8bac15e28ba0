package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ideagrid/orchestrator/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	starts []string
	ends   []endCall
}

type endCall struct {
	success      bool
	errMsg       string
	fallbackUsed bool
}

func (f *fakeMonitor) StartBatchCall(batchType string, itemCount int) string {
	f.starts = append(f.starts, batchType)
	return batchType
}

func (f *fakeMonitor) EndBatchCall(handle string, success bool, errMsg string, fallbackUsed bool) {
	f.ends = append(f.ends, endCall{success, errMsg, fallbackUsed})
}

func TestWithFallbackReturnsBatchResultOnSuccess(t *testing.T) {
	mon := &fakeMonitor{}
	results := batch.WithFallback(
		context.Background(), mon, nil, "evaluate",
		[]string{"a", "b", "c"},
		func(ctx context.Context, items []string) ([]int, error) {
			return []int{1, 2, 3}, nil
		},
		func(ctx context.Context, item string, idx int) (int, error) {
			t.Fatal("per-item fallback should not run on batch success")
			return 0, nil
		},
		func(idx int, reason string) int { return -1 },
	)

	require.Equal(t, []int{1, 2, 3}, results)
	require.Len(t, mon.ends, 1)
	assert.True(t, mon.ends[0].success)
	assert.False(t, mon.ends[0].fallbackUsed)
}

// P3: even when the batch call fails outright, the caller sees exactly
// len(items) results, never a partial or empty slice.
func TestWithFallbackDegradesToPerItemOnBatchError(t *testing.T) {
	mon := &fakeMonitor{}
	results := batch.WithFallback(
		context.Background(), mon, nil, "advocate",
		[]string{"a", "b", "c"},
		func(ctx context.Context, items []string) ([]int, error) {
			return nil, errors.New("provider unavailable")
		},
		func(ctx context.Context, item string, idx int) (int, error) {
			if item == "b" {
				return 0, errors.New("still failing")
			}
			return idx + 100, nil
		},
		func(idx int, reason string) int { return -1 },
	)

	require.Len(t, results, 3)
	assert.Equal(t, 100, results[0])
	assert.Equal(t, -1, results[1]) // placeholder for the item whose fallback also failed
	assert.Equal(t, 102, results[2])

	require.Len(t, mon.ends, 2)
	assert.False(t, mon.ends[0].success)
	assert.True(t, mon.ends[0].fallbackUsed)
	assert.False(t, mon.ends[1].success) // one item still failed within the fallback loop
}

// A batch call that returns the wrong number of results is treated the
// same as an outright failure: it never gets silently padded or truncated
// from the batch path itself, it triggers the same per-item fallback.
func TestWithFallbackDegradesOnLengthMismatch(t *testing.T) {
	mon := &fakeMonitor{}
	results := batch.WithFallback(
		context.Background(), mon, nil, "skeptic",
		[]string{"a", "b"},
		func(ctx context.Context, items []string) ([]int, error) {
			return []int{1}, nil // wrong length
		},
		func(ctx context.Context, item string, idx int) (int, error) {
			return idx, nil
		},
		func(idx int, reason string) int { return -1 },
	)

	require.Equal(t, []int{0, 1}, results)
	require.Len(t, mon.ends, 2)
	assert.True(t, mon.ends[1].success)
}

func TestWithFallbackEmptyInput(t *testing.T) {
	mon := &fakeMonitor{}
	results := batch.WithFallback(
		context.Background(), mon, nil, "evaluate",
		[]string{},
		func(ctx context.Context, items []string) ([]int, error) { return nil, nil },
		func(ctx context.Context, item string, idx int) (int, error) { return 0, nil },
		func(idx int, reason string) int { return -1 },
	)

	assert.Empty(t, results)
	assert.Empty(t, mon.starts)
}

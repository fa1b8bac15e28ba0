package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/ideagrid/orchestrator/cache"
	"github.com/ideagrid/orchestrator/core"
	"github.com/ideagrid/orchestrator/llm"
	"github.com/ideagrid/orchestrator/llm/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *core.Schema {
	return &core.Schema{Name: "Evaluation", Definition: map[string]interface{}{"type": "object"}}
}

func TestRouterGenerateStructuredPrimarySuccess(t *testing.T) {
	local := mock.New().QueueStructured(map[string]interface{}{"score": float64(7), "comment": "ok"})
	r := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local", FallbackEnabled: true}, map[string]core.AIClient{"local": local}, nil, nil, nil)

	data, resp, err := r.GenerateStructured(context.Background(), "rate this", testSchema(), 0.5, llm.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, float64(7), data["score"])
	assert.Equal(t, "local", resp.Provider)

	snap := r.Metrics()
	assert.Equal(t, int64(1), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.LocalCalls)
	assert.Equal(t, int64(0), snap.FallbackTriggers)
}

func TestRouterFallsBackOnPrimaryFailure(t *testing.T) {
	local := mock.New().SetError(core.ErrProviderUnavailable)
	remote := mock.New().QueueStructured(map[string]interface{}{"score": float64(9), "comment": "great"})

	r := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local", FallbackEnabled: true},
		map[string]core.AIClient{"local": local, "remote": remote}, nil, nil, nil)

	data, resp, err := r.GenerateStructured(context.Background(), "rate this", testSchema(), 0.5, llm.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, float64(9), data["score"])
	assert.Equal(t, "remote", resp.Provider)

	snap := r.Metrics()
	assert.Equal(t, int64(1), snap.FallbackTriggers)
	assert.Equal(t, int64(1), snap.RemoteCalls)
}

func TestRouterAllProvidersFailReturnsAggregateError(t *testing.T) {
	local := mock.New().SetError(core.ErrProviderUnavailable)
	remote := mock.New().SetError(core.ErrProviderUnavailable)

	r := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local", FallbackEnabled: true},
		map[string]core.AIClient{"local": local, "remote": remote}, nil, nil, nil)

	_, _, err := r.GenerateStructured(context.Background(), "rate this", testSchema(), 0.5, llm.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local")
	assert.Contains(t, err.Error(), "remote")
}

func TestRouterNoFallbackWhenDisabled(t *testing.T) {
	local := mock.New().SetError(core.ErrProviderUnavailable)
	remote := mock.New().QueueStructured(map[string]interface{}{"score": float64(9)})

	r := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local", FallbackEnabled: false},
		map[string]core.AIClient{"local": local, "remote": remote}, nil, nil, nil)

	_, _, err := r.GenerateStructured(context.Background(), "x", testSchema(), 0.5, llm.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, remote.CallCount)
}

// P6/cache integration at router level.
func TestRouterCachesSuccessfulCall(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(cache.Options{Enabled: true, Dir: dir, TTL: time.Hour})
	local := mock.New().QueueStructured(map[string]interface{}{"score": float64(5)})

	r := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local", CacheEnabled: true, CacheTTL: time.Hour},
		map[string]core.AIClient{"local": local}, c, nil, nil)

	_, _, err := r.GenerateStructured(context.Background(), "p", testSchema(), 0.5, llm.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, local.CallCount)

	// Second call should hit the cache and not invoke the provider again.
	local.QueueStructured(map[string]interface{}{"score": float64(999)})
	data, resp, err := r.GenerateStructured(context.Background(), "p", testSchema(), 0.5, llm.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, float64(5), data["score"])
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, local.CallCount)

	snap := r.Metrics()
	assert.Equal(t, int64(1), snap.CacheHits)
}

// Repeated provider failures trip that provider's circuit breaker; once
// open, further calls fail fast without reaching the provider at all.
func TestRouterCircuitBreakerTripsOpenOnRepeatedFailures(t *testing.T) {
	local := mock.New().SetError(core.ErrProviderUnavailable)

	r := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local", FallbackEnabled: false},
		map[string]core.AIClient{"local": local}, nil, nil, nil)

	// DefaultConfig's VolumeThreshold is 10 failures at a 0.5 error rate;
	// every one of these calls fails, so the breaker opens at or before
	// the tenth.
	for i := 0; i < 10; i++ {
		_, _, err := r.GenerateStructured(context.Background(), "x", testSchema(), 0.5, llm.GenerateOptions{})
		require.Error(t, err)
	}
	tripped := local.CallCount
	require.LessOrEqual(t, tripped, 10)

	_, _, err := r.GenerateStructured(context.Background(), "x", testSchema(), 0.5, llm.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
	assert.Equal(t, tripped, local.CallCount, "an open breaker must reject without calling the provider")
}

// P14: router metrics isolation across instances.
func TestRouterMetricsIsolation(t *testing.T) {
	local1 := mock.New().QueueStructured(map[string]interface{}{"score": float64(1)})
	local2 := mock.New().QueueStructured(map[string]interface{}{"score": float64(2)})

	r1 := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local"}, map[string]core.AIClient{"local": local1}, nil, nil, nil)
	r2 := llm.NewRouter(llm.RouterConfig{PrimaryProvider: "local"}, map[string]core.AIClient{"local": local2}, nil, nil, nil)

	_, _, err := r1.GenerateStructured(context.Background(), "a", testSchema(), 0.5, llm.GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Metrics().TotalRequests)
	assert.Equal(t, int64(0), r2.Metrics().TotalRequests)
}

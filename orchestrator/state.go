package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RunState is a point-in-time checkpoint of one Run invocation: which
// stage last completed and the candidates as they stood at that point.
// Grounded on the teacher's orchestration/workflow_state.go
// WorkflowExecution record, narrowed to what a synchronous run needs to
// expose for external observability (it is not used to resume a run —
// Run is single-process and synchronous end to end).
type RunState struct {
	RunID     string    `json:"run_id"`
	Topic     string    `json:"topic"`
	Stage     string    `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// StateStore persists RunState checkpoints. SaveState failures are logged
// by the caller and never abort a run.
type StateStore interface {
	SaveState(ctx context.Context, state RunState) error
}

// NewRunID generates a correlation ID for one Run invocation, threaded
// through checkpoints and (via the caller's logger) log lines.
func NewRunID() string {
	return uuid.NewString()
}

// MemoryStateStore keeps the most recent checkpoint per run in memory.
// It is the default StateStore (spec's ambient state-persistence feature
// is optional; this is what every test exercises).
type MemoryStateStore struct {
	states map[string]RunState
	order  []string
}

// NewMemoryStateStore constructs an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]RunState)}
}

func (m *MemoryStateStore) SaveState(_ context.Context, state RunState) error {
	if _, seen := m.states[state.RunID]; !seen {
		m.order = append(m.order, state.RunID)
	}
	m.states[state.RunID] = state
	return nil
}

// LastState returns the most recently checkpointed state across every run
// this store has seen, used by tests and simple single-run callers that
// never learn the orchestrator-generated run ID.
func (m *MemoryStateStore) LastState() (RunState, bool) {
	if len(m.order) == 0 {
		return RunState{}, false
	}
	return m.states[m.order[len(m.order)-1]], true
}

// State returns the last checkpoint saved for runID, if any.
func (m *MemoryStateStore) State(runID string) (RunState, bool) {
	s, ok := m.states[runID]
	return s, ok
}

// RedisStateStore persists checkpoints to Redis so an operator can inspect
// an in-flight or recently-finished run from outside the process.
// Grounded on the teacher's orchestration/redis_task_store.go /
// workflow_state.go RedisStateStore.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore constructs a RedisStateStore against addr (host:port).
// ttl bounds how long a checkpoint survives after the last write; zero
// uses a 24-hour default, mirroring the teacher's execution-history TTL.
func NewRedisStateStore(addr string, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStateStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (s *RedisStateStore) SaveState(ctx context.Context, state RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	key := fmt.Sprintf("ideaspark:run:%s", state.RunID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving run state to redis: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

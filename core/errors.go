package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is(). Each maps to
// one of the error kinds the pipeline reasons about when deciding whether a
// failure is recoverable via fallback/retry or must propagate.
var (
	// Configuration errors - fatal at startup.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Provider errors - recoverable via fallback or retry.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrNoProviderConfigured = errors.New("no llm provider configured for tier")

	// Schema/parsing errors - recoverable via the response-parser fallback
	// chain or retried; propagated once retries are exhausted.
	ErrSchemaValidation = errors.New("llm response failed schema validation")
	ErrParseFailed      = errors.New("unable to parse llm response")

	// Batch errors - trigger Batch-With-Fallback degradation.
	ErrBatchLengthMismatch = errors.New("batch response length does not match input length")

	// Operation errors.
	ErrTimeout            = errors.New("operation timeout")
	ErrCancelled          = errors.New("operation cancelled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// State errors.
	ErrAlreadyStarted = errors.New("already started")
	ErrNotInitialized = errors.New("not initialized")

	// Cache errors.
	ErrCacheDisabled = errors.New("cache disabled")
	ErrCacheMiss     = errors.New("cache miss")

	// ErrCircuitBreakerOpen is returned when a circuit breaker rejects a
	// call because the wrapped provider has exceeded its failure budget.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrContextCanceled mirrors context.Canceled for error classification
	// that must not depend on the standard library sentinel directly.
	ErrContextCanceled = errors.New("context canceled")

	// ErrAgentNotFound and ErrConnectionFailed are generic classification
	// errors used by the circuit breaker's default error classifier and
	// its tests to distinguish user errors (don't trip the breaker) from
	// infrastructure errors (do trip the breaker).
	ErrAgentNotFound    = errors.New("agent not found")
	ErrConnectionFailed = errors.New("connection failed")
)

// OrchestratorError provides structured error information with context. It
// implements the error interface and supports error wrapping via Unwrap.
type OrchestratorError struct {
	Op      string // Operation that failed (e.g. "router.Generate")
	Kind    string // Error kind: config, provider, schema, batch, timeout, cancelled, fatal
	ID      string // Optional identifier of the entity involved (provider name, stage name)
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

func (e *OrchestratorError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// NewOrchestratorError creates a new OrchestratorError.
func NewOrchestratorError(op, kind string, err error) *OrchestratorError {
	return &OrchestratorError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable reports whether an error represents a transient condition a
// retry wrapper should attempt again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrSchemaValidation)
}

// IsConfigurationError reports whether an error is configuration-related
// and therefore fatal at startup rather than recoverable mid-run.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsFatal reports whether an error must propagate to the orchestrator's
// caller rather than being absorbed by a fallback path.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		IsConfigurationError(err)
}

// IsNotFound reports whether an error represents a "not found" condition.
// These are user errors and should not trip a circuit breaker.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

// IsStateError reports whether an error is a programming/state error
// (already started, not initialized). These should not trip a circuit
// breaker either.
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrNotInitialized)
}

// FrameworkError is a backward-compatible alias for OrchestratorError used
// by the resilience package's error-type classification.
type FrameworkError = OrchestratorError

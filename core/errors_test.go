package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrProviderUnavailable is retryable", ErrProviderUnavailable, true},
		{"ErrTimeout is retryable", ErrTimeout, true},
		{"ErrSchemaValidation is retryable", ErrSchemaValidation, true},
		{"wrapped retryable error is retryable", fmt.Errorf("operation failed: %w", ErrTimeout), true},
		{"ErrCancelled is not retryable", ErrCancelled, false},
		{"ErrInvalidConfiguration is not retryable", ErrInvalidConfiguration, false},
		{"custom error is not retryable", errors.New("custom error"), false},
		{"nil error is not retryable", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsRetryable(tt.err); result != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrInvalidConfiguration is configuration error", ErrInvalidConfiguration, true},
		{"ErrMissingConfiguration is configuration error", ErrMissingConfiguration, true},
		{"wrapped configuration error is detected", fmt.Errorf("config validation failed: %w", ErrInvalidConfiguration), true},
		{"ErrProviderUnavailable is not configuration error", ErrProviderUnavailable, false},
		{"custom error is not configuration error", errors.New("random error"), false},
		{"nil error is not configuration error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsConfigurationError(tt.err); result != tt.expected {
				t.Errorf("IsConfigurationError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrCancelled is fatal", ErrCancelled, true},
		{"ErrInvalidConfiguration is fatal", ErrInvalidConfiguration, true},
		{"wrapped fatal error is detected", fmt.Errorf("aborted: %w", ErrCancelled), true},
		{"ErrTimeout is not fatal", ErrTimeout, false},
		{"ErrProviderUnavailable is not fatal", ErrProviderUnavailable, false},
		{"nil error is not fatal", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsFatal(tt.err); result != tt.expected {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := ErrSchemaValidation
	wrappedOnce := fmt.Errorf("failed to validate 'advocacy': %w", baseErr)
	wrappedTwice := fmt.Errorf("operation failed: %w", wrappedOnce)

	if !IsRetryable(baseErr) {
		t.Error("Base error should be detected as retryable")
	}
	if !IsRetryable(wrappedOnce) {
		t.Error("Once-wrapped error should be detected as retryable")
	}
	if !IsRetryable(wrappedTwice) {
		t.Error("Twice-wrapped error should be detected as retryable")
	}
	if !errors.Is(wrappedTwice, ErrSchemaValidation) {
		t.Error("errors.Is should work through multiple wrapping layers")
	}
}

func TestErrorCombinations(t *testing.T) {
	if !IsRetryable(ErrProviderUnavailable) {
		t.Error("ErrProviderUnavailable should be retryable")
	}
	if IsConfigurationError(ErrTimeout) {
		t.Error("ErrTimeout should not be a configuration error")
	}
	if IsFatal(ErrTimeout) {
		t.Error("ErrTimeout should not be fatal")
	}
}

func BenchmarkIsRetryable(b *testing.B) {
	err := fmt.Errorf("wrapped: %w", ErrTimeout)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = IsRetryable(err)
	}
}

func BenchmarkIsConfigurationError(b *testing.B) {
	err := fmt.Errorf("wrapped: %w", ErrInvalidConfiguration)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = IsConfigurationError(err)
	}
}

func BenchmarkIsFatal(b *testing.B) {
	err := fmt.Errorf("wrapped: %w", ErrCancelled)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = IsFatal(err)
	}
}

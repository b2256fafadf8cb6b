package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastRetryConfig keeps backoff waits negligible in tests.
func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:        maxRetries,
		Timeout:           5 * time.Second,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	fn := func(ctx context.Context) error {
		callCount++
		return nil
	}

	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetryConfig(3), "test", fn)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_TransientThenSuccess(t *testing.T) {
	// Transient failures on the first maxRetries attempts, then success:
	// the operation must be retried exactly maxRetries times and succeed.
	const maxRetries = 3

	callCount := 0
	fn := func(ctx context.Context) error {
		callCount++
		if callCount <= maxRetries {
			return &APIError{StatusCode: 503, Class: ErrorClassServer}
		}
		return nil
	}

	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetryConfig(maxRetries), "test", fn)

	if err != nil {
		t.Errorf("Expected success after retries, got %v", err)
	}
	if callCount != maxRetries+1 {
		t.Errorf("Expected %d calls, got %d", maxRetries+1, callCount)
	}
}

func TestRetryWithBackoff_PermanentNotRetried(t *testing.T) {
	permanent := &APIError{StatusCode: 404, Class: ErrorClassClient}

	callCount := 0
	fn := func(ctx context.Context) error {
		callCount++
		return permanent
	}

	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetryConfig(3), "test", fn)

	if callCount != 1 {
		t.Errorf("Permanent failure must not be retried: got %d calls", callCount)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Errorf("Expected the permanent APIError back, got %v", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Permanent failure must not be reported as exhaustion")
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	lastErr := &APIError{StatusCode: 500, Class: ErrorClassServer, Message: "boom"}

	callCount := 0
	fn := func(ctx context.Context) error {
		callCount++
		return lastErr
	}

	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetryConfig(2), "test", fn)

	if callCount != 3 {
		t.Errorf("Expected 3 total attempts (1 + 2 retries), got %d", callCount)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("Exhaustion error should carry the last observed error, got %v", err)
	}
}

func TestRetryWithBackoff_ZeroRetries(t *testing.T) {
	callCount := 0
	fn := func(ctx context.Context) error {
		callCount++
		return errors.New("network down")
	}

	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetryConfig(0), "test", fn)

	if callCount != 1 {
		t.Errorf("MaxRetries=0 means a single attempt, got %d", callCount)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRetryConfig(3)
	cfg.InitialBackoff = 500 * time.Millisecond

	fn := func(ctx context.Context) error {
		cancel() // cancel before the backoff wait starts
		return &APIError{StatusCode: 503, Class: ErrorClassServer}
	}

	err := retryWithBackoff(ctx, zerolog.Nop(), cfg, "test", fn)

	if !errors.Is(err, ErrContextCanceled) {
		t.Errorf("Expected ErrContextCanceled, got %v", err)
	}
}

func TestRetryWithBackoff_AttemptTimeout(t *testing.T) {
	cfg := fastRetryConfig(1)
	cfg.Timeout = 10 * time.Millisecond

	deadlines := 0
	fn := func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			deadlines++
		}
		return nil
	}

	if err := retryWithBackoff(context.Background(), zerolog.Nop(), cfg, "test", fn); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if deadlines != 1 {
		t.Error("Each attempt should run under its own deadline")
	}
}

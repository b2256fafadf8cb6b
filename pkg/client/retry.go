package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_retries_total",
		Help: "Total number of retry attempts by operation and error class",
	}, []string{"operation", "error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animal_api_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by operation",
	}, []string{"operation"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt. An
	// operation is tried at most MaxRetries+1 times.
	MaxRetries int

	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		Timeout:           30 * time.Second,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff retry logic. Each
// attempt runs under its own timeout derived from ctx. Failures classified
// as permanent abort immediately; transient failures back off with ±20%
// jitter and retry until cfg.MaxRetries is consumed. Every attempt is
// logged with its number and latency.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, cfg RetryConfig, operation string, fn func(ctx context.Context) error) error {
	maxAttempts := cfg.MaxRetries + 1
	backoff := cfg.InitialBackoff

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}

		start := time.Now()
		err := fn(attemptCtx)
		latency := time.Since(start)

		if cancel != nil {
			cancel()
		}

		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Dur("latency", latency).
					Msg("Request succeeded after retry")
			} else {
				logger.Debug().
					Str("operation", operation).
					Int("attempt", attempt).
					Dur("latency", latency).
					Msg("Request succeeded")
			}
			return nil
		}

		lastErr = err
		errorClass := classifyErr(err)

		logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("latency", latency).
			Msg("Request attempt failed")

		if !shouldRetry(errorClass) {
			// Permanent failure: does not consume retries
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		retriesTotal.WithLabelValues(operation, string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		logger.Debug().
			Str("operation", operation).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("Context canceled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCanceled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(operation).Inc()
	logger.Error().
		Err(lastErr).
		Str("operation", operation).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

package errors

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"go.uber.org/zap"
)

// RetryableFunc represents a function that can be retried
type RetryableFunc func() error

// RetryConfig defines retry configuration for operations
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
	RetryCondition  func(error) bool
}

// MatrixRetryConfig returns retry configuration for homeserver requests.
// Rate limit responses carry their own delay which overrides the backoff.
func MatrixRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		RetryCondition:  DefaultRetryCondition,
	}
}

// DefaultRetryCondition determines if an error should be retried
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.IsRetryable()
	}

	return IsTemporaryError(err)
}

// IsTemporaryError checks if an error appears to be temporary based on its message
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	temporaryPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"network is unreachable",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"502 bad gateway",
		"503 service unavailable",
		"504 gateway timeout",
	}

	for _, pattern := range temporaryPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// RetryWithContext executes a function with retry logic and context support.
// The last error is returned unchanged when every attempt fails.
func RetryWithContext(ctx context.Context, fn RetryableFunc, config RetryConfig) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.RetryCondition == nil {
		config.RetryCondition = DefaultRetryCondition
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return NewErrorWithCause(ErrServiceUnavailable, "Operation cancelled", ctx.Err())
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				logging.Debug("Operation succeeded after retry",
					zap.Int("attempt", attempt),
					zap.Int("total_attempts", config.MaxAttempts),
				)
			}
			return nil
		}
		lastErr = err

		if !config.RetryCondition(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		delay := calculateDelay(attempt, config)
		var appErr *AppError
		if stderrors.As(err, &appErr) && appErr.Code == ErrMatrixRateLimit && appErr.Retry.BackoffDelay > delay {
			delay = appErr.Retry.BackoffDelay
		}

		logging.Warn("Operation failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", config.MaxAttempts),
			zap.Duration("retry_delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return NewErrorWithCause(ErrServiceUnavailable, "Operation cancelled during retry", ctx.Err())
		case <-timer.C:
		}
	}

	logging.Warn("All retry attempts failed",
		zap.Error(lastErr),
		zap.Int("total_attempts", config.MaxAttempts),
	)
	return lastErr
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	if attempt <= 1 {
		return config.InitialDelay
	}

	delay := float64(config.InitialDelay) * math.Pow(config.ExponentialBase, float64(attempt-1))
	if config.MaxDelay > 0 && time.Duration(delay) > config.MaxDelay {
		delay = float64(config.MaxDelay)
	}

	// +/-25% jitter
	if config.Jitter && delay > 0 {
		jitterAmount := delay * 0.25
		delay = delay + (jitterAmount * (2*rand.Float64() - 1))
		if delay < 0 {
			delay = float64(config.InitialDelay)
		}
	}

	return time.Duration(delay)
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Exponential backoff

	// MaxWait caps a pause requested through After. A longer request ends
	// the retries with the error. Zero means no cap.
	MaxWait time.Duration
}

// stopError wraps an error that must not be retried.
type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as permanent: WithRetry returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// waitError asks for a specific pause before the next attempt.
type waitError struct {
	err   error
	after time.Duration
}

func (e *waitError) Error() string { return e.err.Error() }
func (e *waitError) Unwrap() error { return e.err }

// After retries err no sooner than d, overriding the configured delay.
func After(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &waitError{err: err, after: d}
}

func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}

		if attempt == config.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, err)
		}

		delay := config.Delay
		if config.Backoff {
			delay = time.Duration(1<<(attempt-1)) * config.Delay
		}
		var wait *waitError
		if errors.As(err, &wait) {
			if config.MaxWait > 0 && wait.after > config.MaxWait {
				return fmt.Errorf("retry wait %s exceeds limit %s: %w", wait.after, config.MaxWait, wait.err)
			}
			if wait.after > delay {
				delay = wait.after
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

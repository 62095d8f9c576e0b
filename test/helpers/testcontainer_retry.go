package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// RetryConfig defines configuration for test retries
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// StartPostgresWithRetry starts a Postgres container, retrying transient
// container runtime failures with exponential backoff.
func StartPostgresWithRetry(ctx context.Context, t *testing.T, config ...RetryConfig) (string, error) {
	retryConfig := DefaultRetryConfig()
	if len(config) > 0 {
		retryConfig = config[0]
	}
	var lastErr error
	delay := retryConfig.InitialDelay
	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		url, err := startPostgres(ctx, t)
		if err == nil {
			if attempt > 1 {
				t.Logf("Successfully created test container on attempt %d", attempt)
			}
			return url, nil
		}
		lastErr = err
		t.Logf("Failed to create test container on attempt %d/%d: %v", attempt, retryConfig.MaxAttempts, err)
		if attempt < retryConfig.MaxAttempts {
			t.Logf("Retrying in %v...", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("context canceled while retrying: %w", ctx.Err())
			}
			delay = min(time.Duration(float64(delay)*retryConfig.BackoffFactor), retryConfig.MaxDelay)
		}
	}
	return "", fmt.Errorf(
		"failed to create test container after %d attempts: %w",
		retryConfig.MaxAttempts,
		lastErr,
	)
}

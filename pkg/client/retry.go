package client

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// maxBackoff caps the exponential backoff between attempts.
const maxBackoff = 10 * time.Second

// backoffDelay returns the wait before the attempt after the given
// zero-based attempt index: min(2^attempt, 10) seconds.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// sleepFunc waits for d or until ctx is done. Swappable for tests.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryLoop runs fn up to maxRetries+1 times, sleeping backoffDelay(attempt)
// before each retry of a retryable failure. Non-retryable kinds surface
// immediately; exhausting all attempts surfaces the last retryable error.
func retryLoop(ctx context.Context, maxRetries int, sleep sleepFunc, logger zerolog.Logger, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info().Int("attempt", attempt+1).Msg("Request succeeded after retry")
			}
			return nil
		}

		kind := KindOf(err)
		if !shouldRetry(kind) {
			return err
		}
		lastErr = err

		if attempt >= maxRetries {
			break
		}

		wait := backoffDelay(attempt)
		retriesTotal.WithLabelValues(string(kind)).Inc()
		retryBackoffSeconds.WithLabelValues(string(kind)).Observe(wait.Seconds())
		logger.Warn().
			Str("kind", string(kind)).
			Int("attempt", attempt+1).
			Int("max_attempts", maxRetries+1).
			Dur("backoff", wait).
			Msg("Request failed, retrying after backoff")

		if err := sleep(ctx, wait); err != nil {
			return wrapError(KindNetwork, "cancelled during retry backoff", fmt.Errorf("%v (last error: %w)", err, lastErr))
		}
	}

	retryExhaustedTotal.WithLabelValues(string(KindOf(lastErr))).Inc()
	logger.Error().
		Int("attempts", maxRetries+1).
		Err(lastErr).
		Msg("Retry attempts exhausted")
	return lastErr
}

package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scoregate/internal/metrics"
)

// doWithRetry wraps an HTTP call with the provider retry policy.
// It attempts the request up to MaxRetries+1 times (initial + retries).
//   - Retries only on HTTP 429 and on transport failures where no response
//     was obtained. Every other status (2xx, 401, 404, 500, ...) is final.
//   - Backoff between attempts follows the fixed RetryDelays schedule,
//     with the attempt index capped at the schedule bounds.
//   - Respects the provided ctx: cancellation aborts immediately and is
//     never slept through.
//   - When retries run out, the last 429 response is handed back unchanged;
//     a persistent transport failure is returned as a wrapped error.
func (c *client) doWithRetry(
	ctx context.Context,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	var lastErr error
	maxAttempts := c.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		c.logger.Debug("upstream request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.Error(err),
		)

		if err != nil {
			// The caller went away - stop, whatever the attempt saw.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			// Transport failure before any response: retry on the same
			// schedule as rate limiting. Per-attempt timeouts land here too.
			lastErr = err
		} else if resp.StatusCode != http.StatusTooManyRequests {
			// Success, or an error status that retrying cannot fix.
			return resp, nil
		} else {
			lastErr = fmt.Errorf("upstream status %d", resp.StatusCode)

			if attempt == maxAttempts-1 {
				// Retries exhausted: hand the final 429 back unchanged so
				// the caller can preserve its status.
				return resp, nil
			}

			// Drain and close before retrying so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		// No more attempts left
		if attempt == maxAttempts-1 {
			break
		}

		delay := retryDelay(c.cfg.RetryDelays, attempt)
		metrics.UpstreamRetriesTotal.Inc()
		c.logger.Debug("backing off before retry",
			zap.Duration("backoff", delay),
			zap.Int("next_attempt", attempt+2),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			// Continue to next attempt
		}
	}

	c.logger.Warn("upstream request exhausted all retries",
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("upstream: %d attempts failed: %w", maxAttempts, lastErr)
}

// retryDelay returns the wait before retry n, capped at the end of the
// schedule so the delay never grows past the final step.
func retryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}
	return delays[attempt]
}

package compose

import (
	"context"
	"time"

	"clipforge/internal/faults"
	"clipforge/internal/logging"
)

// ComposeWithRetry runs the pipeline up to the configured attempt
// budget, backing off exponentially between attempts. Non-recoverable
// classifications abort immediately without consuming the budget. Each
// retry starts a fresh run from downloading under the same job ID.
func (c *Composer) ComposeWithRetry(ctx context.Context, req ComposeRequest) CompositionResult {
	maxAttempts := c.cfg.Compose.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	jobID := req.jobID()
	started := time.Now()

	var result CompositionResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * time.Second
			c.logger.Info("retrying composition",
				logging.String(logging.FieldJobID, jobID),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", backoff))
			if err := c.sleepFunc(ctx, backoff); err != nil {
				result.Err = faults.Timeout("composition canceled during backoff", err)
				break
			}
		}

		result = c.runAttempt(ctx, jobID, req)
		result.Attempts = attempt
		if result.Success || !faults.IsRecoverable(result.Err) {
			break
		}
	}

	result.ElapsedMillis = time.Since(started).Milliseconds()
	return result
}

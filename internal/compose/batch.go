package compose

import (
	"context"
	"sync"

	"clipforge/internal/logging"
)

// ComposeBatch fans the requests out over a fixed-size worker pool and
// returns one result per request in input order. Each worker drives one
// job's full state machine to completion before taking the next, which
// bounds the global in-flight encoder count at the pool size. Failures
// stay isolated to their own slot.
func (c *Composer) ComposeBatch(ctx context.Context, requests []ComposeRequest) []CompositionResult {
	results := make([]CompositionResult, len(requests))
	if len(requests) == 0 {
		return results
	}

	workers := c.cfg.Compose.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(requests) {
		workers = len(requests)
	}

	c.logger.Info("starting batch",
		logging.Int("requests", len(requests)),
		logging.Int("workers", workers))

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = c.ComposeWithRetry(ctx, requests[i])
			}
		}()
	}

	for i := range requests {
		indices <- i
	}
	close(indices)
	wg.Wait()

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	c.logger.Info("batch finished",
		logging.Int("succeeded", succeeded),
		logging.Int("failed", len(requests)-succeeded))
	return results
}

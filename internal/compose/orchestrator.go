package compose

import (
	"context"
	"log/slog"
	"time"

	"clipforge/internal/blobstore"
	"clipforge/internal/config"
	"clipforge/internal/faults"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/progress"
	"clipforge/internal/thumbnail"
)

// Composer owns the pipeline state machine and its collaborators.
type Composer struct {
	cfg      *config.Config
	toolkit  media.Toolkit
	store    *blobstore.Store
	uploader blobstore.Uploader
	tracker  *progress.Tracker
	thumbs   *thumbnail.Generator
	logger   *slog.Logger

	// sleepFunc is swapped in tests to skip retry backoff.
	sleepFunc func(context.Context, time.Duration) error
}

// New constructs a Composer.
func New(
	cfg *config.Config,
	toolkit media.Toolkit,
	store *blobstore.Store,
	uploader blobstore.Uploader,
	tracker *progress.Tracker,
	thumbs *thumbnail.Generator,
	logger *slog.Logger,
) *Composer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Composer{
		cfg:       cfg,
		toolkit:   toolkit,
		store:     store,
		uploader:  uploader,
		tracker:   tracker,
		thumbs:    thumbs,
		logger:    logging.NewComponentLogger(logger, "compose"),
		sleepFunc: sleepContext,
	}
}

// Tracker exposes the progress tracker for status and subscription
// queries against running jobs.
func (c *Composer) Tracker() *progress.Tracker {
	return c.tracker
}

// Compose runs a single pipeline attempt for the request.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) CompositionResult {
	jobID := req.jobID()
	started := time.Now()
	result := c.runAttempt(ctx, jobID, req)
	result.Attempts = 1
	result.ElapsedMillis = time.Since(started).Milliseconds()
	return result
}

func (c *Composer) runAttempt(ctx context.Context, jobID string, req ComposeRequest) CompositionResult {
	if err := req.Validate(); err != nil {
		fault := faults.InvalidSource(err.Error())
		c.tracker.StartTracking(jobID)
		c.tracker.CompleteTracking(jobID, fault)
		return CompositionResult{JobID: jobID, Err: fault}
	}

	videoURI, thumbnailURI, err := c.runPipeline(ctx, jobID, req)
	if err != nil {
		classified := faults.Classify(err)
		c.tracker.CompleteTracking(jobID, classified)
		return CompositionResult{JobID: jobID, Err: classified}
	}

	c.tracker.CompleteTracking(jobID, nil)
	return CompositionResult{
		Success:      true,
		JobID:        jobID,
		VideoURI:     videoURI,
		ThumbnailURI: thumbnailURI,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package progress

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
)

// Event is one observed job transition.
type Event struct {
	JobID                     string
	Stage                     Stage
	StagePercent              float64
	OverallPercent            float64
	EstimatedSecondsRemaining float64
	Message                   string
	Timestamp                 time.Time
}

// JobStatus is a point-in-time snapshot of a tracked job.
type JobStatus struct {
	JobID          string
	Stage          Stage
	StagePercent   float64
	OverallPercent float64
	StartedAt      time.Time
	UpdatedAt      time.Time
	Done           bool
	Err            error
}

type jobState struct {
	status  JobStatus
	history []Event
}

// Tracker records job progress in an in-memory arena and fans events
// out to per-job subscribers.
type Tracker struct {
	mu          sync.Mutex
	jobs        map[string]*jobState
	subscribers map[string]map[int]chan Event
	nextSubID   int

	retention    time.Duration
	stallTimeout time.Duration
	logger       *slog.Logger

	// nowFunc and afterFunc are swapped in tests.
	nowFunc   func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewTracker constructs a tracker with retention and stall settings
// from the compose configuration.
func NewTracker(cfg *config.Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		jobs:         make(map[string]*jobState),
		subscribers:  make(map[string]map[int]chan Event),
		retention:    time.Duration(cfg.Compose.RetentionSeconds) * time.Second,
		stallTimeout: time.Duration(cfg.Compose.StallTimeoutSeconds) * time.Second,
		logger:       logging.NewComponentLogger(logger, "progress"),
		nowFunc:      time.Now,
		afterFunc:    time.AfterFunc,
	}
}

// StartTracking registers a job and emits its initial downloading
// event. Restarting an existing job ID resets its state.
func (t *Tracker) StartTracking(jobID string) {
	now := t.nowFunc()
	event := Event{
		JobID:          jobID,
		Stage:          StageDownloading,
		OverallPercent: 0,
		Message:        "job started",
		Timestamp:      now,
	}

	t.mu.Lock()
	t.jobs[jobID] = &jobState{
		status: JobStatus{
			JobID:     jobID,
			Stage:     StageDownloading,
			StartedAt: now,
			UpdatedAt: now,
		},
		history: []Event{event},
	}
	t.broadcastLocked(event)
	t.mu.Unlock()
}

// OnProgress records a within-stage update. Unknown jobs and invalid
// stages are dropped; percentages clamp to 0-100.
func (t *Tracker) OnProgress(jobID string, stage Stage, stagePercent float64, message string) {
	if !stage.Valid() || stage.IsTerminal() {
		return
	}
	stagePercent = clampPercent(stagePercent)
	overall := OverallPercent(stage, stagePercent)
	now := t.nowFunc()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.jobs[jobID]
	if !ok || state.status.Done {
		return
	}
	state.status.Stage = stage
	state.status.StagePercent = stagePercent
	state.status.OverallPercent = overall
	state.status.UpdatedAt = now

	var eta float64
	if overall > 0 {
		if elapsed := now.Sub(state.status.StartedAt).Seconds(); elapsed > 0 {
			if eta = elapsed/overall*100 - elapsed; eta < 0 {
				eta = 0
			}
		}
	}
	event := Event{
		JobID:                     jobID,
		Stage:                     stage,
		StagePercent:              stagePercent,
		OverallPercent:            overall,
		EstimatedSecondsRemaining: eta,
		Message:                   message,
		Timestamp:                 now,
	}
	state.history = append(state.history, event)
	t.broadcastLocked(event)
}

// CompleteTracking marks a job terminal. Both outcomes report 100
// percent overall, since either way no further work remains. The
// record lingers for the retention window so late status queries still
// resolve, then the arena entry is dropped.
func (t *Tracker) CompleteTracking(jobID string, err error) {
	now := t.nowFunc()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.jobs[jobID]
	if !ok || state.status.Done {
		return
	}

	stage := StageCompleted
	message := "job completed"
	if err != nil {
		stage = StageFailed
		message = err.Error()
	}
	state.status.Stage = stage
	state.status.OverallPercent = 100
	state.status.UpdatedAt = now
	state.status.Done = true
	state.status.Err = err

	event := Event{
		JobID:          jobID,
		Stage:          stage,
		StagePercent:   state.status.StagePercent,
		OverallPercent: 100,
		Message:        message,
		Timestamp:      now,
	}
	state.history = append(state.history, event)
	t.broadcastLocked(event)
	t.closeSubscribersLocked(jobID)
	t.logger.Info("job reached terminal stage",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, string(stage)),
		logging.Duration("elapsed", now.Sub(state.status.StartedAt)))

	if t.retention <= 0 {
		delete(t.jobs, jobID)
		return
	}
	t.afterFunc(t.retention, func() {
		t.mu.Lock()
		delete(t.jobs, jobID)
		t.mu.Unlock()
	})
}

// Status returns the current snapshot for a job.
func (t *Tracker) Status(jobID string) (JobStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return state.status, true
}

// ActiveJobIDs lists non-terminal jobs in stable order.
func (t *Tracker) ActiveJobIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.jobs))
	for id, state := range t.jobs {
		if !state.status.Done {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// History returns a copy of every event recorded for a job.
func (t *Tracker) History(jobID string) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.jobs[jobID]
	if !ok {
		return nil
	}
	history := make([]Event, len(state.history))
	copy(history, state.history)
	return history
}

// EstimateSecondsRemaining projects time left by assuming progress so
// far is representative. Jobs with no measurable progress report zero.
func (t *Tracker) EstimateSecondsRemaining(jobID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.jobs[jobID]
	if !ok || state.status.Done || state.status.OverallPercent <= 0 {
		return 0
	}
	elapsed := t.nowFunc().Sub(state.status.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	total := elapsed / state.status.OverallPercent * 100
	remaining := total - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Subscribe returns a buffered channel receiving the named job's
// events, and a cancel function that detaches it. Subscribing before
// the job starts is fine; the channel is closed once the job reaches a
// terminal stage. Slow subscribers lose events rather than blocking
// the pipeline.
func (t *Tracker) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	subs, ok := t.subscribers[jobID]
	if !ok {
		subs = make(map[int]chan Event)
		t.subscribers[jobID] = subs
	}
	subs[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if subs, ok := t.subscribers[jobID]; ok {
			if existing, ok := subs[id]; ok {
				delete(subs, id)
				close(existing)
			}
			if len(subs) == 0 {
				delete(t.subscribers, jobID)
			}
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

func (t *Tracker) broadcastLocked(event Event) {
	for _, ch := range t.subscribers[event.JobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// closeSubscribersLocked signals end-of-stream to every subscriber of a
// job that just went terminal. Their cancel functions become no-ops.
func (t *Tracker) closeSubscribersLocked(jobID string) {
	for _, ch := range t.subscribers[jobID] {
		close(ch)
	}
	delete(t.subscribers, jobID)
}

// MonitorStalls logs a warning for any active job without an update for
// the stall window. Detection only; cancellation stays with the caller
// driving the job's context.
func (t *Tracker) MonitorStalls(ctx context.Context) {
	if t.stallTimeout <= 0 {
		return
	}
	interval := t.stallTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.warnStalled()
		}
	}
}

func (t *Tracker) warnStalled() {
	now := t.nowFunc()

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, state := range t.jobs {
		if state.status.Done {
			continue
		}
		idle := now.Sub(state.status.UpdatedAt)
		if idle < t.stallTimeout {
			continue
		}
		t.logger.Warn("job has not reported progress",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldStage, string(state.status.Stage)),
			logging.Duration("idle", idle))
	}
}

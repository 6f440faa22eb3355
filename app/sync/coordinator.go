package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var (
	// ErrSyncInProgress is returned when a sync is requested while another
	// job is still live. The live job's identity is never overwritten.
	ErrSyncInProgress = errors.New("a sync is already in progress")
	ErrJobNotFound    = errors.New("sync job not found")
	ErrTerminal       = errors.New("sync job already reached a terminal state")
)

// terminalJobRetention bounds how long finished jobs stay pollable. Old
// terminal jobs are pruned lazily so the jobs map cannot grow without
// bound on a long-running server.
const terminalJobRetention = time.Hour

// Status is the poll contract exposed to clients.
type Status struct {
	Progress int   `json:"progress"`
	State    State `json:"state"`
}

type Job struct {
	SyncID      string
	Progress    int
	State       State
	Reason      string
	StartedAt   time.Time
	CompletedAt *time.Time

	lastAdvance time.Time
}

// Coordinator drives sync jobs to a terminal state. Progress is monotonic
// per job, terminal states are final, and a watchdog fails any job whose
// progress holds at an intermediate value past the stall window, so a poll
// loop can never observe an indefinite stall.
type Coordinator struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	active string // syncId of the live job, empty when none

	stallTimeout  time.Duration
	watchInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

func NewCoordinator(stallTimeout time.Duration) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	watchInterval := stallTimeout / 4
	if watchInterval > time.Second {
		watchInterval = time.Second
	}
	if watchInterval <= 0 {
		watchInterval = 10 * time.Millisecond
	}

	return &Coordinator{
		jobs:          make(map[string]*Job),
		stallTimeout:  stallTimeout,
		watchInterval: watchInterval,
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
}

// StartSync creates a new job and returns its identifier immediately.
// While a previous job is still live the request is rejected rather than
// queued, keeping exactly one authoritative syncId.
func (c *Coordinator) StartSync() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != "" {
		if job, ok := c.jobs[c.active]; ok && !job.State.Terminal() {
			return "", fmt.Errorf("%w (syncId: %s)", ErrSyncInProgress, c.active)
		}
	}

	c.pruneLocked()

	job := &Job{
		SyncID:      uuid.NewString(),
		State:       StateQueued,
		StartedAt:   c.now(),
		lastAdvance: c.now(),
	}
	c.jobs[job.SyncID] = job
	c.active = job.SyncID

	c.wg.Add(1)
	go c.watchdog(job.SyncID)

	slog.Info("Sync started", "sync_id", job.SyncID)
	return job.SyncID, nil
}

// ReportProgress accepts a progress update for a live job. Regressive or
// duplicate values are dropped as logged anomalies, never surfaced as
// errors; the published sequence stays non-decreasing.
func (c *Coordinator) ReportProgress(syncID string, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[syncID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, syncID)
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, syncID)
	}

	if value > 100 {
		value = 100
	}

	if job.State == StateQueued {
		job.State = StateRunning
		job.lastAdvance = c.now()
	}

	if value < job.Progress {
		slog.Warn("Dropping regressive sync progress update",
			"sync_id", syncID, "current", job.Progress, "reported", value)
		return nil
	}

	if value > job.Progress {
		job.Progress = value
		job.lastAdvance = c.now()
	}

	return nil
}

// CompleteSync finishes the job at 100%.
func (c *Coordinator) CompleteSync(syncID string) error {
	return c.finish(syncID, StateComplete, "")
}

// FailSync moves the job to the failed state with a reason. A mid-sync
// failure always lands here; a job is never left silently running.
func (c *Coordinator) FailSync(syncID string, reason string) error {
	return c.finish(syncID, StateFailed, reason)
}

func (c *Coordinator) finish(syncID string, state State, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[syncID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, syncID)
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, syncID)
	}

	job.State = state
	job.Reason = reason
	if state == StateComplete {
		job.Progress = 100
	}
	now := c.now()
	job.CompletedAt = &now
	job.lastAdvance = now

	if c.active == syncID {
		c.active = ""
	}

	if state == StateFailed {
		slog.Warn("Sync failed", "sync_id", syncID, "progress", job.Progress, "reason", reason)
	} else {
		slog.Info("Sync complete", "sync_id", syncID, "duration", now.Sub(job.StartedAt))
	}

	return nil
}

// pruneLocked drops terminal jobs that finished longer than the retention
// window ago. Live jobs are never touched. Caller holds c.mu.
func (c *Coordinator) pruneLocked() {
	cutoff := c.now().Add(-terminalJobRetention)
	for id, job := range c.jobs {
		if job.State.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(c.jobs, id)
		}
	}
}

// PollStatus returns the current progress and state. Safe to call
// repeatedly and concurrently with progress reporting.
func (c *Coordinator) PollStatus(syncID string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[syncID]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrJobNotFound, syncID)
	}

	return Status{Progress: job.Progress, State: job.State}, nil
}

// Reason returns the failure reason for a terminal job, empty otherwise.
func (c *Coordinator) Reason(syncID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job, ok := c.jobs[syncID]; ok {
		return job.Reason
	}
	return ""
}

// watchdog fails the job when no forward progress happens within the stall
// window. It exits as soon as the job reaches a terminal state.
func (c *Coordinator) watchdog(syncID string) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			job, ok := c.jobs[syncID]
			if !ok || job.State.Terminal() {
				c.mu.Unlock()
				return
			}
			stalled := c.now().Sub(job.lastAdvance) > c.stallTimeout
			progress := job.Progress
			c.mu.Unlock()

			if stalled {
				reason := fmt.Sprintf("no progress past %d%% within %s", progress, c.stallTimeout)
				if err := c.FailSync(syncID, reason); err == nil {
					slog.Error("Sync watchdog triggered", "sync_id", syncID, "progress", progress)
				}
				return
			}
		}
	}
}

// Stop shuts down outstanding watchdogs. Live jobs are failed so no poll
// loop is left waiting on a job that can no longer finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	for id, job := range c.jobs {
		if !job.State.Terminal() {
			job.State = StateFailed
			job.Reason = "server shutting down"
			now := c.now()
			job.CompletedAt = &now
			slog.Warn("Sync aborted by shutdown", "sync_id", id)
		}
	}
	c.active = ""
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

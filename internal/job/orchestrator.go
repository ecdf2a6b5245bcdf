// Package job owns the async-job lifecycle shared by imports and pipeline
// executions: create, advance stage/progress, terminal transitions and
// cooperative cancellation.
package job

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-dataset-engine/internal/metrics"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

// ErrInvalidTransition signals a job-state ordering bug: advancing a
// terminal job, regressing progress, or double-terminating. It is a core
// invariant violation, not a user-facing condition.
var ErrInvalidTransition = errors.New("invalid job transition")

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = store.ErrNotFound

// CancelledMessage is the error message recorded when a cancelled job is
// terminated by its owning executor.
const CancelledMessage = "cancelled"

// StageQueued is the stage every job starts in.
const StageQueued = "queued"

// StageCompleted is the terminal success stage.
const StageCompleted = "completed"

// Orchestrator serializes all writes to a single job id so observers see
// stage and progress transitions in the order they were applied, and the
// monotonic-progress invariant holds without cross-job locking.
type Orchestrator struct {
	store *store.Store
	clock clock.Clock
	log   *zap.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	cancels map[string]*atomic.Bool
}

// New builds an orchestrator over the given store.
func New(st *store.Store, clk clock.Clock, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:   st,
		clock:   clk,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
		cancels: make(map[string]*atomic.Bool),
	}
}

// Create allocates a job in stage "queued" with progress 0 and returns it.
func (o *Orchestrator) Create(jobType model.JobType, userID string) (model.AsyncJob, error) {
	now := o.clock.Now().UTC()
	j := model.AsyncJob{
		ID:        uuid.New().String(),
		Type:      jobType,
		UserID:    userID,
		Status:    model.JobRunning,
		Stage:     StageQueued,
		Progress:  0,
		Metadata:  model.Metadata{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateJob(j); err != nil {
		return model.AsyncJob{}, fmt.Errorf("create job: %w", err)
	}

	o.mu.Lock()
	o.locks[j.ID] = &sync.Mutex{}
	o.cancels[j.ID] = &atomic.Bool{}
	o.mu.Unlock()

	metrics.JobCreated(string(jobType))
	o.log.Info("job created", zap.String("job_id", j.ID), zap.String("type", string(jobType)))
	return j, nil
}

// Advance moves a running job to a new stage, bumps progress by delta and
// merges the metadata patch. A negative delta is rejected rather than
// clamped so ordering bugs surface; overshoot past 100 is clamped.
func (o *Orchestrator) Advance(jobID, stage string, delta int, patch model.Metadata) error {
	lock, err := o.lockFor(jobID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	j, err := o.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: advance on %s job %s", ErrInvalidTransition, j.Status, jobID)
	}
	if delta < 0 {
		return fmt.Errorf("%w: progress regression (%d) on job %s", ErrInvalidTransition, delta, jobID)
	}

	j.Stage = stage
	j.Progress = min(j.Progress+delta, 100)
	if patch != nil {
		normalized, err := patch.Normalize()
		if err != nil {
			return err
		}
		j.Metadata = j.Metadata.Merge(normalized)
	}
	j.UpdatedAt = o.clock.Now().UTC()
	return o.store.UpdateJob(j)
}

// Complete terminates a job successfully: progress 100, stage "completed".
// Re-completing an already succeeded job is a no-op; completing any other
// terminal job is an invalid transition.
func (o *Orchestrator) Complete(jobID string, final model.Metadata) error {
	lock, err := o.lockFor(jobID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	j, err := o.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if j.Status == model.JobSucceeded {
		return nil
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: complete on %s job %s", ErrInvalidTransition, j.Status, jobID)
	}

	j.Status = model.JobSucceeded
	j.Stage = StageCompleted
	j.Progress = 100
	if final != nil {
		normalized, err := final.Normalize()
		if err != nil {
			return err
		}
		j.Metadata = j.Metadata.Merge(normalized)
	}
	j.UpdatedAt = o.clock.Now().UTC()
	if err := o.store.UpdateJob(j); err != nil {
		return err
	}

	metrics.JobFinished(string(j.Type), "succeeded")
	o.log.Info("job completed", zap.String("job_id", jobID))
	return nil
}

// Fail terminates a job with an error message. It is allowed from any
// non-terminal state; it is the escape hatch for step failures and
// cancellation propagation.
func (o *Orchestrator) Fail(jobID, errorMessage string) error {
	lock, err := o.lockFor(jobID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	j, err := o.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: fail on %s job %s", ErrInvalidTransition, j.Status, jobID)
	}

	j.Status = model.JobFailed
	j.ErrorMessage = errorMessage
	j.UpdatedAt = o.clock.Now().UTC()
	if err := o.store.UpdateJob(j); err != nil {
		return err
	}

	metrics.JobFinished(string(j.Type), "failed")
	o.log.Warn("job failed", zap.String("job_id", jobID), zap.String("error", errorMessage))
	return nil
}

// Cancel requests cooperative cancellation. The owning executor observes
// the flag at its next step boundary and calls Fail; nothing is forcibly
// terminated here.
func (o *Orchestrator) Cancel(jobID string) error {
	lock, err := o.lockFor(jobID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	j, err := o.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: cancel on %s job %s", ErrInvalidTransition, j.Status, jobID)
	}

	o.cancelFlag(jobID).Store(true)
	o.log.Info("job cancellation requested", zap.String("job_id", jobID))
	return nil
}

// Cancelled reports whether cancellation has been requested for jobID.
func (o *Orchestrator) Cancelled(jobID string) bool {
	return o.cancelFlag(jobID).Load()
}

// Get returns the latest durable state of a job.
func (o *Orchestrator) Get(jobID string) (model.AsyncJob, error) {
	return o.store.GetJob(jobID)
}

func (o *Orchestrator) lockFor(jobID string) (*sync.Mutex, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[jobID]
	if !ok {
		// Jobs created before a restart are still pollable but no longer
		// owned by a live executor; writes re-register lazily.
		if _, err := o.store.GetJob(jobID); err != nil {
			return nil, err
		}
		lock = &sync.Mutex{}
		o.locks[jobID] = lock
	}
	return lock, nil
}

func (o *Orchestrator) cancelFlag(jobID string) *atomic.Bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	flag, ok := o.cancels[jobID]
	if !ok {
		flag = &atomic.Bool{}
		o.cancels[jobID] = flag
	}
	return flag
}

package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/lineage"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/step"
	"go-dataset-engine/internal/store"
)

// Engine owns Execution records and is the only writer of derived
// datasets. Each run executes on its own goroutine; steps within a run are
// strictly sequential and fail-fast.
type Engine struct {
	store    *store.Store
	registry *dataset.Registry
	lineage  *lineage.Tracker
	jobs     *job.Orchestrator
	exec     *step.Executor
	log      *zap.Logger

	// OnTerminal, when set, is invoked with the job's final state after
	// its terminal transition. Callers use it to feed their audit sink.
	OnTerminal func(model.AsyncJob)
}

// NewEngine wires the engine to its collaborators.
func NewEngine(st *store.Store, registry *dataset.Registry, tracker *lineage.Tracker, jobs *job.Orchestrator, exec *step.Executor, log *zap.Logger) *Engine {
	return &Engine{store: st, registry: registry, lineage: tracker, jobs: jobs, exec: exec, log: log}
}

// Submit plans a run of the pipeline and starts it asynchronously. The
// plan is built before the job exists, so structurally invalid pipelines
// fail synchronously with a PlanError and never create a job.
func (e *Engine) Submit(pipelineID, userID string) (model.AsyncJob, model.Execution, error) {
	p, err := e.store.GetPipeline(pipelineID)
	if err != nil {
		return model.AsyncJob{}, model.Execution{}, err
	}
	if !p.Active {
		return model.AsyncJob{}, model.Execution{}, &PlanError{Detail: fmt.Sprintf("pipeline %q is not active", p.Name)}
	}

	pl, err := buildPlan(p, e.registry)
	if err != nil {
		return model.AsyncJob{}, model.Execution{}, err
	}

	j, err := e.jobs.Create(model.JobExecution, userID)
	if err != nil {
		return model.AsyncJob{}, model.Execution{}, err
	}

	now := time.Now().UTC()
	exec := model.Execution{
		ID:         uuid.New().String(),
		PipelineID: p.ID,
		JobID:      j.ID,
		Status:     model.ExecutionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.CreateExecution(exec); err != nil {
		return model.AsyncJob{}, model.Execution{}, err
	}

	go e.run(pl, exec)
	return j, exec, nil
}

// run drives one execution to a terminal state. The caller's request
// context deliberately does not propagate here: a submitted run outlives
// the request that started it and is stopped only via cooperative
// cancellation.
func (e *Engine) run(pl *plan, exec model.Execution) {
	defer e.notifyTerminal(exec.JobID)

	log := e.log.With(zap.String("execution_id", exec.ID), zap.String("job_id", exec.JobID))
	e.setStatus(&exec, model.ExecutionRunning)

	total := len(pl.steps)
	produced := make([]model.Dataset, total)
	lastProgress := 0

	for i, ps := range pl.steps {
		// Cancellation checkpoint: only between steps, never mid-step.
		if e.jobs.Cancelled(exec.JobID) {
			log.Info("execution cancelled", zap.Int("completed_steps", i))
			e.setStatus(&exec, model.ExecutionCancelled)
			e.failJob(exec.JobID, job.CancelledMessage)
			return
		}

		target := int(math.Round(float64(i) / float64(total) * 100))
		if err := e.jobs.Advance(exec.JobID, fmt.Sprintf("executing-step-%d", i+1), target-lastProgress, model.Metadata{
			"step_output": ps.step.OutputName,
			"step_kind":   string(ps.step.Kind),
		}); err != nil {
			log.Error("advance failed", zap.Error(err))
			e.setStatus(&exec, model.ExecutionFailed)
			// Best effort: the job must not be stranded non-terminal.
			e.failJob(exec.JobID, fmt.Sprintf("record progress for step %d: %v", i+1, err))
			return
		}
		lastProgress = target

		inputs := make(map[string]model.Dataset, len(ps.inputs))
		for _, in := range ps.inputs {
			if in.stepIndex >= 0 {
				inputs[in.name] = produced[in.stepIndex]
			} else {
				inputs[in.name] = in.dataset
			}
		}

		out, err := e.exec.Execute(context.Background(), ps.step, inputs)
		if err != nil {
			e.failStep(&exec, i, err, log)
			return
		}

		ds, err := e.registry.CreateDerived(ps.step.OutputName, out.Schema, out.Rows)
		if err != nil {
			e.failStep(&exec, i, err, log)
			return
		}
		for _, in := range inputs {
			if err := e.lineage.Record(model.LineageEdge{
				DerivedDatasetID: ds.ID,
				SourceDatasetID:  in.ID,
				ExecutionID:      exec.ID,
				StepIndex:        i,
			}); err != nil {
				e.failStep(&exec, i, fmt.Errorf("record lineage: %w", err), log)
				return
			}
		}

		produced[i] = ds
		exec.Steps = append(exec.Steps, model.StepResult{
			Index:           i,
			Status:          model.StepSucceeded,
			OutputDatasetID: ds.ID,
		})
		e.setStatus(&exec, model.ExecutionRunning)
	}

	e.setStatus(&exec, model.ExecutionSucceeded)
	final := model.Metadata{"steps": total}
	if total > 0 {
		final["output_dataset_id"] = produced[total-1].ID
	}
	if err := e.jobs.Complete(exec.JobID, final); err != nil {
		log.Error("complete failed", zap.Error(err))
	}
	log.Info("execution succeeded", zap.Int("steps", total))
}

// failStep records the failing step's result, terminates the execution and
// the job, and stops the run. Later steps never execute.
func (e *Engine) failStep(exec *model.Execution, index int, cause error, log *zap.Logger) {
	log.Warn("step failed", zap.Int("step", index), zap.Error(cause))
	exec.Steps = append(exec.Steps, model.StepResult{
		Index:  index,
		Status: model.StepFailed,
		Error:  cause.Error(),
	})
	e.setStatus(exec, model.ExecutionFailed)
	e.failJob(exec.JobID, fmt.Sprintf("step %d failed: %v", index+1, cause))
}

func (e *Engine) setStatus(exec *model.Execution, status model.ExecutionStatus) {
	exec.Status = status
	exec.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateExecution(*exec); err != nil {
		e.log.Error("persist execution failed", zap.String("execution_id", exec.ID), zap.Error(err))
	}
}

func (e *Engine) failJob(jobID, msg string) {
	if err := e.jobs.Fail(jobID, msg); err != nil {
		e.log.Error("fail transition failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (e *Engine) notifyTerminal(jobID string) {
	if e.OnTerminal == nil {
		return
	}
	j, err := e.jobs.Get(jobID)
	if err != nil || !j.Status.Terminal() {
		return
	}
	e.OnTerminal(j)
}

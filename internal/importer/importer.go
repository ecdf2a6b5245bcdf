package importer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/metrics"
	"go-dataset-engine/internal/model"
)

// Request is one import submission.
type Request struct {
	DatasetName string
	Schema      model.Schema
	Raw         RawBatch
}

// Importer drives the async import job: validate, then materialize a
// source dataset from the validated rows.
type Importer struct {
	registry  *dataset.Registry
	jobs      *job.Orchestrator
	threshold float64
	log       *zap.Logger

	// OnTerminal, when set, is invoked with the job's final state after
	// its terminal transition. Callers use it to feed their audit sink.
	OnTerminal func(model.AsyncJob)
}

// New builds an importer with the given error-rate threshold.
func New(registry *dataset.Registry, jobs *job.Orchestrator, threshold float64, log *zap.Logger) *Importer {
	return &Importer{registry: registry, jobs: jobs, threshold: threshold, log: log}
}

// Submit validates the request shape, creates the async job and starts the
// import on its own goroutine. The returned job is what the caller polls.
func (im *Importer) Submit(req Request, userID string) (model.AsyncJob, error) {
	if req.DatasetName == "" {
		return model.AsyncJob{}, fmt.Errorf("dataset name is required")
	}
	if len(req.Schema) == 0 {
		return model.AsyncJob{}, fmt.Errorf("a declared schema is required")
	}

	j, err := im.jobs.Create(model.JobImport, userID)
	if err != nil {
		return model.AsyncJob{}, err
	}
	go im.run(j.ID, req)
	return j, nil
}

func (im *Importer) run(jobID string, req Request) {
	defer im.notifyTerminal(jobID)

	if err := im.jobs.Advance(jobID, "validating", 10, model.Metadata{
		"dataset_name": req.DatasetName,
		"raw_rows":     len(req.Raw.Rows),
	}); err != nil {
		im.log.Error("advance failed", zap.String("job_id", jobID), zap.Error(err))
		// Best effort: the job must not be stranded non-terminal.
		im.fail(jobID, fmt.Sprintf("record progress: %v", err))
		return
	}

	batch, err := Validate(req.Raw, req.Schema, im.threshold)
	if err != nil {
		var vf *ValidationFailedError
		if errors.As(err, &vf) {
			metrics.RowsRejected(len(vf.RowErrors))
			// Attach the full ordered row-error list before failing so the
			// error payload callers poll is complete.
			if aerr := im.jobs.Advance(jobID, "validating", 0, model.Metadata{
				"row_errors": vf.RowErrors,
			}); aerr != nil {
				im.log.Error("attach row errors failed", zap.String("job_id", jobID), zap.Error(aerr))
			}
		}
		im.fail(jobID, err.Error())
		return
	}

	// Validation and materialization are the import's two units of work;
	// cancellation is observed on the boundary between them.
	if im.jobs.Cancelled(jobID) {
		im.fail(jobID, job.CancelledMessage)
		return
	}

	if err := im.jobs.Advance(jobID, "materializing", 60, model.Metadata{
		"valid_rows":   len(batch.Rows),
		"skipped_rows": len(batch.RowErrors),
	}); err != nil {
		im.log.Error("advance failed", zap.String("job_id", jobID), zap.Error(err))
		im.fail(jobID, fmt.Sprintf("record progress: %v", err))
		return
	}

	ds, err := im.registry.CreateSource(req.DatasetName, req.Schema, batch.Rows)
	if err != nil {
		im.fail(jobID, err.Error())
		return
	}

	metrics.RowsImported(len(batch.Rows))
	metrics.RowsRejected(len(batch.RowErrors))

	final := model.Metadata{
		"dataset_id":    ds.ID,
		"rows_imported": len(batch.Rows),
		"rows_skipped":  len(batch.RowErrors),
	}
	if len(batch.RowErrors) > 0 {
		final["row_errors"] = batch.RowErrors
	}
	if len(batch.Warnings) > 0 {
		final["warnings"] = batch.Warnings
	}
	if err := im.jobs.Complete(jobID, final); err != nil {
		im.log.Error("complete failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (im *Importer) fail(jobID, msg string) {
	if err := im.jobs.Fail(jobID, msg); err != nil {
		im.log.Error("fail transition failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (im *Importer) notifyTerminal(jobID string) {
	if im.OnTerminal == nil {
		return
	}
	j, err := im.jobs.Get(jobID)
	if err != nil || !j.Status.Terminal() {
		return
	}
	im.OnTerminal(j)
}

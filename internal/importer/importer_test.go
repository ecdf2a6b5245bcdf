package importer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

type importFixture struct {
	store    *store.Store
	registry *dataset.Registry
	jobs     *job.Orchestrator
	importer *Importer
}

func newImportFixture(t *testing.T, threshold float64) *importFixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := zap.NewNop()
	jobs := job.New(st, clock.New(), log)
	registry := dataset.NewRegistry(st, log)
	return &importFixture{
		store:    st,
		registry: registry,
		jobs:     jobs,
		importer: New(registry, jobs, threshold, log),
	}
}

func waitTerminal(t *testing.T, jobs *job.Orchestrator, jobID string) model.AsyncJob {
	t.Helper()
	var j model.AsyncJob
	require.Eventually(t, func() bool {
		var err error
		j, err = jobs.Get(jobID)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return j
}

func TestImportSucceeds(t *testing.T) {
	f := newImportFixture(t, 0.1)

	j, err := f.importer.Submit(Request{
		DatasetName: "orders",
		Schema:      orderSchema,
		Raw: RawBatch{
			Header: []string{"id", "amount", "paid"},
			Rows: [][]string{
				{"1", "9.99", "true"},
				{"2", "0.5", "false"},
			},
		},
	}, "alice")
	require.NoError(t, err)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobSucceeded, done.Status)
	require.Equal(t, 100, done.Progress)
	require.Equal(t, float64(2), done.Metadata["rows_imported"])
	require.Equal(t, float64(0), done.Metadata["rows_skipped"])

	dsID, ok := done.Metadata["dataset_id"].(string)
	require.True(t, ok)

	ds, err := f.registry.Get(dsID)
	require.NoError(t, err)
	require.Equal(t, model.KindSource, ds.Kind)
	require.Equal(t, "orders", ds.Name)
	require.Equal(t, int64(2), ds.RowCount)

	rows, err := f.registry.Rows(dsID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0]["id"])
	require.Equal(t, true, rows[0]["paid"])
}

func TestImportSkipsBadRowsAndReportsThem(t *testing.T) {
	f := newImportFixture(t, 0.5)

	j, err := f.importer.Submit(Request{
		DatasetName: "orders",
		Schema:      orderSchema,
		Raw: RawBatch{
			Header: []string{"id", "amount", "paid"},
			Rows: [][]string{
				{"1", "9.99", "true"},
				{"2", "broken", "true"},
				{"3", "1.0", "false"},
			},
		},
	}, "alice")
	require.NoError(t, err)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobSucceeded, done.Status)
	require.Equal(t, float64(2), done.Metadata["rows_imported"])
	require.Equal(t, float64(1), done.Metadata["rows_skipped"])
	require.NotNil(t, done.Metadata["row_errors"])
}

func TestImportFailsAboveThreshold(t *testing.T) {
	f := newImportFixture(t, 0.1)

	j, err := f.importer.Submit(Request{
		DatasetName: "orders",
		Schema:      orderSchema,
		Raw: RawBatch{
			Header: []string{"id", "amount", "paid"},
			Rows: [][]string{
				{"1", "bad", "true"},
				{"2", "also bad", "true"},
				{"3", "1.0", "false"},
			},
		},
	}, "alice")
	require.NoError(t, err)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobFailed, done.Status)
	require.Contains(t, done.ErrorMessage, "exceeds threshold")

	// The full row-error list is attached before the terminal transition.
	errs, ok := done.Metadata["row_errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, errs, 2)

	// No dataset is created on a failed import.
	datasets, err := f.registry.List()
	require.NoError(t, err)
	require.Empty(t, datasets)
}

func TestImportStructuralFailure(t *testing.T) {
	f := newImportFixture(t, 1.0)

	j, err := f.importer.Submit(Request{
		DatasetName: "orders",
		Schema:      orderSchema,
		Raw: RawBatch{
			Header: []string{"id"},
			Rows:   [][]string{{"1"}},
		},
	}, "alice")
	require.NoError(t, err)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobFailed, done.Status)
	require.Contains(t, done.ErrorMessage, "missing declared column")
}

func TestImportRejectsEmptyRequest(t *testing.T) {
	f := newImportFixture(t, 0.1)

	_, err := f.importer.Submit(Request{Schema: orderSchema}, "alice")
	require.Error(t, err)

	_, err = f.importer.Submit(Request{DatasetName: "orders"}, "alice")
	require.Error(t, err)
}

func TestImportStopsAfterConflictingTerminalTransition(t *testing.T) {
	f := newImportFixture(t, 0.1)

	j, err := f.jobs.Create(model.JobImport, "alice")
	require.NoError(t, err)
	// Another actor terminates the job before the run's first advance.
	require.NoError(t, f.jobs.Fail(j.ID, "superseded"))

	// The run must stop at the failed advance without materializing
	// anything or applying a second terminal transition.
	f.importer.run(j.ID, Request{
		DatasetName: "orders",
		Schema:      orderSchema,
		Raw: RawBatch{
			Header: []string{"id", "amount", "paid"},
			Rows:   [][]string{{"1", "2.0", "true"}},
		},
	})

	got, err := f.jobs.Get(j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, got.Status)
	require.Equal(t, "superseded", got.ErrorMessage)

	datasets, err := f.registry.List()
	require.NoError(t, err)
	require.Empty(t, datasets)
}

func TestImportNotifiesTerminal(t *testing.T) {
	f := newImportFixture(t, 0.1)

	got := make(chan model.AsyncJob, 1)
	f.importer.OnTerminal = func(j model.AsyncJob) { got <- j }

	j, err := f.importer.Submit(Request{
		DatasetName: "orders",
		Schema:      orderSchema,
		Raw: RawBatch{
			Header: []string{"id", "amount", "paid"},
			Rows:   [][]string{{"1", "2.0", "true"}},
		},
	}, "alice")
	require.NoError(t, err)

	select {
	case terminal := <-got:
		require.Equal(t, j.ID, terminal.ID)
		require.Equal(t, model.JobSucceeded, terminal.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("terminal hook never fired")
	}
}

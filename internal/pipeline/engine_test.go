package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/lineage"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/step"
	"go-dataset-engine/internal/store"
)

type engineFixture struct {
	store    *store.Store
	registry *dataset.Registry
	lineage  *lineage.Tracker
	jobs     *job.Orchestrator
	engine   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := zap.NewNop()
	registry := dataset.NewRegistry(st, log)
	tracker := lineage.NewTracker(st)
	jobs := job.New(st, clock.New(), log)
	exec := step.NewExecutor(st, 10*time.Second, 5*time.Second, log)
	return &engineFixture{
		store:    st,
		registry: registry,
		lineage:  tracker,
		jobs:     jobs,
		engine:   NewEngine(st, registry, tracker, jobs, exec, log),
	}
}

func (f *engineFixture) createPipeline(t *testing.T, steps []model.Step) model.Pipeline {
	t.Helper()
	now := time.Now().UTC()
	p := model.Pipeline{
		ID:        uuid.New().String(),
		Name:      "test-pipeline",
		Active:    true,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.CreatePipeline(p))
	return p
}

func (f *engineFixture) seedSales(t *testing.T) model.Dataset {
	t.Helper()
	ds, err := f.registry.CreateSource("sales", model.Schema{
		{Name: "region", Type: model.ColumnString},
		{Name: "amount", Type: model.ColumnFloat},
	}, []model.Row{
		{"region": "north", "amount": 10.0},
		{"region": "north", "amount": 5.0},
		{"region": "south", "amount": 7.5},
	})
	require.NoError(t, err)
	return ds
}

func waitTerminal(t *testing.T, jobs *job.Orchestrator, jobID string) model.AsyncJob {
	t.Helper()
	var j model.AsyncJob
	require.Eventually(t, func() bool {
		var err error
		j, err = jobs.Get(jobID)
		return err == nil && j.Status.Terminal()
	}, 10*time.Second, 5*time.Millisecond)
	return j
}

func TestRunChainsStepsAndRecordsLineage(t *testing.T) {
	f := newEngineFixture(t)
	source := f.seedSales(t)

	p := f.createPipeline(t, []model.Step{
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY region`,
			Inputs:     []string{"sales"},
			OutputName: "totals",
		},
		{
			Kind: model.StepScript,
			Source: `
				output = inputs.totals.map(function(r) {
					return { region: r.region, total: r.total, high: r.total > 10 };
				});
			`,
			Inputs:     []string{"totals"},
			OutputName: "flagged",
		},
	})

	j, exec, err := f.engine.Submit(p.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, model.ExecutionPending, exec.Status)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobSucceeded, done.Status)
	require.Equal(t, 100, done.Progress)

	result, err := f.store.GetExecution(exec.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExecutionSucceeded, result.Status)
	require.Len(t, result.Steps, 2)
	require.Equal(t, model.StepSucceeded, result.Steps[0].Status)
	require.Equal(t, model.StepSucceeded, result.Steps[1].Status)

	// The second step consumed the first step's output, not a registered
	// dataset of the same name.
	flagged, err := f.registry.Get(result.Steps[1].OutputDatasetID)
	require.NoError(t, err)
	require.Equal(t, model.KindDerived, flagged.Kind)
	require.Equal(t, "flagged", flagged.Name)
	require.Equal(t, int64(2), flagged.RowCount)

	rows, err := f.registry.Rows(flagged.ID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, true, rows[0]["high"])

	// Lineage: flagged <- totals <- sales.
	direct, err := f.lineage.DirectProducers(flagged.ID)
	require.NoError(t, err)
	require.Len(t, direct, 1)
	require.Equal(t, result.Steps[0].OutputDatasetID, direct[0].SourceDatasetID)
	require.Equal(t, exec.ID, direct[0].ExecutionID)
	require.Equal(t, 1, direct[0].StepIndex)

	ancestors, err := f.lineage.AncestorsOf(flagged.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	require.Equal(t, source.ID, ancestors[1].SourceDatasetID)

	// The final metadata names the terminal output.
	require.Equal(t, flagged.ID, done.Metadata["output_dataset_id"])
}

func TestRunFailsFast(t *testing.T) {
	f := newEngineFixture(t)
	f.seedSales(t)

	p := f.createPipeline(t, []model.Step{
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT region FROM sales`,
			Inputs:     []string{"sales"},
			OutputName: "step_one",
		},
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT nonexistent_column FROM step_one`,
			Inputs:     []string{"step_one"},
			OutputName: "step_two",
		},
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT * FROM step_two`,
			Inputs:     []string{"step_two"},
			OutputName: "step_three",
		},
	})

	j, exec, err := f.engine.Submit(p.ID, "alice")
	require.NoError(t, err)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobFailed, done.Status)
	require.Contains(t, done.ErrorMessage, "step 2 failed")

	result, err := f.store.GetExecution(exec.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExecutionFailed, result.Status)

	// Step 1 succeeded, step 2 failed, step 3 has no result at all.
	require.Len(t, result.Steps, 2)
	require.Equal(t, model.StepSucceeded, result.Steps[0].Status)
	require.NotEmpty(t, result.Steps[0].OutputDatasetID)
	require.Equal(t, model.StepFailed, result.Steps[1].Status)
	require.Empty(t, result.Steps[1].OutputDatasetID)
	require.NotEmpty(t, result.Steps[1].Error)

	// Earlier outputs stay materialized; the failed step left nothing.
	datasets, err := f.registry.List()
	require.NoError(t, err)
	names := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		names = append(names, ds.Name)
	}
	require.Contains(t, names, "step_one")
	require.NotContains(t, names, "step_two")
	require.NotContains(t, names, "step_three")
}

func TestSubmitPlanErrorsAreSynchronous(t *testing.T) {
	f := newEngineFixture(t)

	empty := f.createPipeline(t, nil)
	_, _, err := f.engine.Submit(empty.ID, "alice")
	var pe *PlanError
	require.ErrorAs(t, err, &pe)

	unresolvable := f.createPipeline(t, []model.Step{
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT * FROM ghosts`,
			Inputs:     []string{"ghosts"},
			OutputName: "out",
		},
	})
	_, _, err = f.engine.Submit(unresolvable.ID, "alice")
	require.ErrorAs(t, err, &pe)
	require.Contains(t, pe.Detail, "ghosts")

	// No jobs or executions were created for plan failures.
	jobs, err := f.store.ListRecentJobs(model.JobExecution, 10)
	require.NoError(t, err)
	require.Empty(t, jobs)
	execs, err := f.store.ListRecentExecutions(10)
	require.NoError(t, err)
	require.Empty(t, execs)
}

func TestSubmitUnknownAndInactivePipelines(t *testing.T) {
	f := newEngineFixture(t)
	f.seedSales(t)

	_, _, err := f.engine.Submit("no-such-id", "alice")
	require.ErrorIs(t, err, store.ErrNotFound)

	p := f.createPipeline(t, []model.Step{
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT * FROM sales`,
			Inputs:     []string{"sales"},
			OutputName: "copy",
		},
	})
	require.NoError(t, f.store.SetPipelineActive(p.ID, false))

	var pe *PlanError
	_, _, err = f.engine.Submit(p.ID, "alice")
	require.ErrorAs(t, err, &pe)
	require.Contains(t, pe.Detail, "not active")
}

func TestCancelStopsBetweenSteps(t *testing.T) {
	f := newEngineFixture(t)

	// A wide source makes the first step slow enough that the cancel below
	// always lands while the run is still in flight.
	var rows []model.Row
	for i := 0; i < 300; i++ {
		rows = append(rows, model.Row{"n": int64(i)})
	}
	_, err := f.registry.CreateSource("numbers", model.Schema{
		{Name: "n", Type: model.ColumnInteger},
	}, rows)
	require.NoError(t, err)

	p := f.createPipeline(t, []model.Step{
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT COUNT(*) AS total FROM numbers a, numbers b, numbers c`,
			Inputs:     []string{"numbers"},
			OutputName: "first",
		},
		{
			Kind:       model.StepSQLQuery,
			Source:     `SELECT total FROM first`,
			Inputs:     []string{"first"},
			OutputName: "second",
		},
	})

	j, exec, err := f.engine.Submit(p.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.jobs.Cancel(j.ID))

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobFailed, done.Status)
	require.Equal(t, job.CancelledMessage, done.ErrorMessage)

	result, err := f.store.GetExecution(exec.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExecutionCancelled, result.Status)
	// The flag is observed at a step boundary, so steps already finished
	// keep their results and nothing after the boundary ran.
	require.LessOrEqual(t, len(result.Steps), 1)
}

func TestProgressRoundsPerStep(t *testing.T) {
	f := newEngineFixture(t)
	f.seedSales(t)

	// Three steps; the third fails, freezing progress at its start mark.
	p := f.createPipeline(t, []model.Step{
		{Kind: model.StepSQLQuery, Source: `SELECT region FROM sales`, Inputs: []string{"sales"}, OutputName: "s1"},
		{Kind: model.StepSQLQuery, Source: `SELECT region FROM s1`, Inputs: []string{"s1"}, OutputName: "s2"},
		{Kind: model.StepSQLQuery, Source: `SELECT no_such_column FROM s2`, Inputs: []string{"s2"}, OutputName: "s3"},
	})

	j, _, err := f.engine.Submit(p.ID, "alice")
	require.NoError(t, err)

	done := waitTerminal(t, f.jobs, j.ID)
	require.Equal(t, model.JobFailed, done.Status)
	// Step 3 of 3 starts at round(2/3 * 100) = 67, not the truncated 66.
	require.Equal(t, 67, done.Progress)
}

func TestRunToleratesConflictingTerminalTransition(t *testing.T) {
	f := newEngineFixture(t)
	f.seedSales(t)

	p := model.Pipeline{
		ID:     uuid.New().String(),
		Name:   "conflicted",
		Active: true,
		Steps: []model.Step{
			{Kind: model.StepSQLQuery, Source: `SELECT region FROM sales`, Inputs: []string{"sales"}, OutputName: "out"},
		},
	}
	pl, err := buildPlan(p, f.registry)
	require.NoError(t, err)

	j, err := f.jobs.Create(model.JobExecution, "alice")
	require.NoError(t, err)
	now := time.Now().UTC()
	exec := model.Execution{
		ID:         uuid.New().String(),
		PipelineID: p.ID,
		JobID:      j.ID,
		Status:     model.ExecutionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.store.CreateExecution(exec))

	// Another actor terminates the job before the run's first advance.
	require.NoError(t, f.jobs.Fail(j.ID, "superseded"))

	// The run must stop at the failed advance instead of executing steps,
	// and must not apply a second terminal transition.
	f.engine.run(pl, exec)

	got, err := f.jobs.Get(j.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, got.Status)
	require.Equal(t, "superseded", got.ErrorMessage)

	result, err := f.store.GetExecution(exec.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExecutionFailed, result.Status)
	require.Empty(t, result.Steps)
}

func TestBuildPlanValidation(t *testing.T) {
	f := newEngineFixture(t)
	f.seedSales(t)

	cases := []struct {
		name  string
		steps []model.Step
	}{
		{"no output name", []model.Step{{Kind: model.StepSQLQuery, Source: "SELECT 1 AS x", Inputs: []string{"sales"}}}},
		{"empty source", []model.Step{{Kind: model.StepSQLQuery, Inputs: []string{"sales"}, OutputName: "o"}}},
		{"unknown kind", []model.Step{{Kind: "shell", Source: "ls", Inputs: []string{"sales"}, OutputName: "o"}}},
		{"no inputs", []model.Step{{Kind: model.StepSQLQuery, Source: "SELECT 1 AS x", OutputName: "o"}}},
		{"forward reference", []model.Step{
			{Kind: model.StepSQLQuery, Source: "SELECT * FROM later", Inputs: []string{"later"}, OutputName: "early"},
			{Kind: model.StepSQLQuery, Source: "SELECT * FROM sales", Inputs: []string{"sales"}, OutputName: "later"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := model.Pipeline{ID: uuid.New().String(), Name: tc.name, Active: true, Steps: tc.steps}
			_, err := buildPlan(p, f.registry)
			var pe *PlanError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestPlanPrefersEarlierStepOutputs(t *testing.T) {
	f := newEngineFixture(t)
	f.seedSales(t)

	// A registered dataset named "totals" already exists; the second step's
	// "totals" input must still bind to step one's output.
	_, err := f.registry.CreateSource("totals", model.Schema{
		{Name: "decoy", Type: model.ColumnString},
	}, []model.Row{{"decoy": "x"}})
	require.NoError(t, err)

	p := model.Pipeline{
		ID:     uuid.New().String(),
		Name:   "shadow",
		Active: true,
		Steps: []model.Step{
			{Kind: model.StepSQLQuery, Source: `SELECT region FROM sales`, Inputs: []string{"sales"}, OutputName: "totals"},
			{Kind: model.StepSQLQuery, Source: `SELECT region FROM totals`, Inputs: []string{"totals"}, OutputName: "out"},
		},
	}
	pl, err := buildPlan(p, f.registry)
	require.NoError(t, err)
	require.Len(t, pl.steps, 2)
	require.Equal(t, 0, pl.steps[1].inputs[0].stepIndex)
}

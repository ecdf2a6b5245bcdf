package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"

	"go-dataset-engine/internal/config"
	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/lineage"
	"go-dataset-engine/internal/logging"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/pipeline"
	"go-dataset-engine/internal/step"
	"go-dataset-engine/internal/store"
)

// engine-run executes one pipeline against a local database and waits for
// the result. Useful for scripted runs and debugging without the API server.
func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	pipelineID := flag.String("pipeline", "", "id of the pipeline to execute")
	pollEvery := flag.Duration("poll", 200*time.Millisecond, "job poll interval")
	flag.Parse()

	if *pipelineID == "" {
		fmt.Fprintln(os.Stderr, "engine-run: -pipeline is required")
		os.Exit(2)
	}
	if err := run(*configPath, *pipelineID, *pollEvery); err != nil {
		fmt.Fprintln(os.Stderr, "engine-run:", err)
		os.Exit(1)
	}
}

func run(configPath, pipelineID string, pollEvery time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs := job.New(st, clock.New(), log)
	registry := dataset.NewRegistry(st, log)
	tracker := lineage.NewTracker(st)
	exec := step.NewExecutor(st, cfg.Execution.StepTimeout.Std(), cfg.Execution.ScriptTimeout.Std(), log)
	engine := pipeline.NewEngine(st, registry, tracker, jobs, exec, log)

	j, execution, err := engine.Submit(pipelineID, "engine-run")
	if err != nil {
		return err
	}
	fmt.Printf("job %s started (execution %s)\n", j.ID, execution.ID)

	for {
		j, err = jobs.Get(j.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  %-20s %3d%%  %s\n", j.Stage, j.Progress, j.Status)
		if j.Status.Terminal() {
			break
		}
		time.Sleep(pollEvery)
	}

	result, err := st.GetExecution(execution.ID)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if j.Status != model.JobSucceeded {
		return fmt.Errorf("execution %s: %s", result.Status, j.ErrorMessage)
	}
	return nil
}

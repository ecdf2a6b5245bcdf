package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-dataset-engine/internal/api"
	"go-dataset-engine/internal/config"
	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/importer"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/lineage"
	"go-dataset-engine/internal/logging"
	"go-dataset-engine/internal/pipeline"
	"go-dataset-engine/internal/step"
	"go-dataset-engine/internal/store"
	"go-dataset-engine/pkg/router"
)

// @title Dataset Engine API
// @version 1.0
// @description Dataset pipeline execution engine with asynchronous job orchestration.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "engine-api:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
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
	imp := importer.New(registry, jobs, cfg.Import.ErrorRateThreshold, log)

	a := api.New(st, registry, tracker, jobs, engine, imp, log, api.Options{
		Recent: cfg.Dashboard.Recent,
	})

	r := router.New(log)
	a.Register(r)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("db", cfg.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

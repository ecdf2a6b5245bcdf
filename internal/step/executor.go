// Package step executes a single pipeline step: a SQL query or a script,
// run against resolved input datasets, producing the rows and schema of the
// step's output dataset.
package step

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-dataset-engine/internal/metrics"
	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

// QueryError reports a SQL step failure (syntax, unknown column, type
// mismatch, timeout) with the underlying diagnostic.
type QueryError struct {
	Detail string
}

func (e *QueryError) Error() string { return "query error: " + e.Detail }

// ScriptError reports a script step failure: evaluation error, timeout, or
// a missing output binding.
type ScriptError struct {
	Detail string
}

func (e *ScriptError) Error() string { return "script error: " + e.Detail }

// Output is a fully computed step result. Nothing is durable yet; the
// caller materializes it, so a failed step can never leave a partial
// dataset behind.
type Output struct {
	Schema model.Schema
	Rows   []model.Row
}

// Executor runs steps with enforced timeouts. Dataset read handles and the
// pinned SQL connection are released on every exit path.
type Executor struct {
	store         *store.Store
	queryTimeout  time.Duration
	scriptTimeout time.Duration
	log           *zap.Logger
}

// NewExecutor builds an executor over the given store.
func NewExecutor(st *store.Store, queryTimeout, scriptTimeout time.Duration, log *zap.Logger) *Executor {
	return &Executor{
		store:         st,
		queryTimeout:  queryTimeout,
		scriptTimeout: scriptTimeout,
		log:           log,
	}
}

// Execute runs one step against the resolved inputs, keyed by the input
// name the step's source refers to.
func (e *Executor) Execute(ctx context.Context, s model.Step, inputs map[string]model.Dataset) (*Output, error) {
	start := time.Now()
	var out *Output
	var err error

	switch s.Kind {
	case model.StepSQLQuery:
		out, err = e.executeQuery(ctx, s, inputs)
	case model.StepScript:
		out, err = e.executeScript(ctx, s, inputs)
	default:
		err = fmt.Errorf("unknown step kind %q", s.Kind)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.StepExecuted(string(s.Kind), outcome)
	e.log.Debug("step executed",
		zap.String("kind", string(s.Kind)),
		zap.String("output", s.OutputName),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)))
	return out, err
}

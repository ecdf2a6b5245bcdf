// Package metrics instruments the engine with Prometheus counters. It keeps
// its own registry so tests and embedding programs do not collide with the
// default global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_jobs_total",
		Help: "Async jobs by type and terminal outcome.",
	}, []string{"type", "outcome"})

	stepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_steps_total",
		Help: "Pipeline steps executed, by kind and outcome.",
	}, []string{"kind", "outcome"})

	importRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_import_rows_total",
		Help: "Import rows by disposition (imported or rejected).",
	}, []string{"disposition"})
)

func init() {
	registry.MustRegister(jobsTotal, stepsTotal, importRows)
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// JobCreated counts a newly created job.
func JobCreated(jobType string) {
	jobsTotal.WithLabelValues(jobType, "created").Inc()
}

// JobFinished counts a terminal transition ("succeeded" or "failed").
func JobFinished(jobType, outcome string) {
	jobsTotal.WithLabelValues(jobType, outcome).Inc()
}

// StepExecuted counts one executed step.
func StepExecuted(kind, outcome string) {
	stepsTotal.WithLabelValues(kind, outcome).Inc()
}

// RowsImported counts rows materialized by an import.
func RowsImported(n int) {
	importRows.WithLabelValues("imported").Add(float64(n))
}

// RowsRejected counts rows skipped by import validation.
func RowsRejected(n int) {
	importRows.WithLabelValues("rejected").Add(float64(n))
}

// Package api exposes the engine over HTTP: job-creating operations return
// a job id synchronously, outcomes are observed by polling the job
// endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"go-dataset-engine/internal/dataset"
	"go-dataset-engine/internal/importer"
	"go-dataset-engine/internal/job"
	"go-dataset-engine/internal/lineage"
	"go-dataset-engine/internal/metrics"
	"go-dataset-engine/internal/pipeline"
	"go-dataset-engine/internal/store"
	"go-dataset-engine/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-dataset-engine/docs"
)

// API holds the handler dependencies.
type API struct {
	store    *store.Store
	registry *dataset.Registry
	lineage  *lineage.Tracker
	jobs     *job.Orchestrator
	engine   *pipeline.Engine
	importer *importer.Importer
	perms    PermissionChecker
	audit    AuditSink
	recent   int
	log      *zap.Logger
}

// Options are the optional collaborators; zero values get safe defaults.
type Options struct {
	Permissions PermissionChecker
	Audit       AuditSink
	Recent      int
}

// New wires the API and registers the audit hook on both job owners.
func New(st *store.Store, registry *dataset.Registry, tracker *lineage.Tracker, jobs *job.Orchestrator,
	engine *pipeline.Engine, imp *importer.Importer, log *zap.Logger, opts Options) *API {
	a := &API{
		store:    st,
		registry: registry,
		lineage:  tracker,
		jobs:     jobs,
		engine:   engine,
		importer: imp,
		perms:    opts.Permissions,
		audit:    opts.Audit,
		recent:   opts.Recent,
		log:      log,
	}
	if a.perms == nil {
		a.perms = AllowAll{}
	}
	if a.audit == nil {
		a.audit = LogAuditSink{Log: log}
	}
	if a.recent <= 0 {
		a.recent = 10
	}
	engine.OnTerminal = a.auditTerminal
	imp.OnTerminal = a.auditTerminal
	return a
}

// Register installs all routes.
func (a *API) Register(r *router.Router) {
	r.POST("/api/v1/pipelines", a.createPipeline)
	r.GET("/api/v1/pipelines", a.listPipelines)
	r.PATCH("/api/v1/pipelines/*/deactivate", a.deactivatePipeline)
	r.POST("/api/v1/pipelines/*/executions", a.executePipeline)
	r.GET("/api/v1/pipelines/*", a.getPipeline)

	r.GET("/api/v1/executions", a.listExecutions)
	r.GET("/api/v1/executions/*", a.getExecution)

	r.POST("/api/v1/imports", a.createImport)

	r.POST("/api/v1/jobs/*/cancel", a.cancelJob)
	r.GET("/api/v1/jobs/*", a.getJob)

	r.GET("/api/v1/datasets", a.listDatasets)
	r.GET("/api/v1/datasets/*/rows", a.datasetRows)
	r.GET("/api/v1/datasets/*/lineage", a.datasetLineage)
	r.GET("/api/v1/datasets/*", a.getDataset)

	r.GET("/api/v1/dashboard", a.dashboard)

	r.Mount("/metrics", metrics.Handler())
	r.Mount("/swagger/", httpSwagger.WrapHandler)
}

// userID identifies the caller. Authentication is an external concern; the
// fronting proxy or session layer is expected to set the header.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

// pathParam extracts the wildcard segment between prefix and suffix,
// rejecting values that span segments.
func pathParam(path, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	v := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	v = strings.Trim(v, "/")
	if v == "" || strings.Contains(v, "/") {
		return "", false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}

// writeDomainError maps core errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var planErr *pipeline.PlanError
	var valErr *importer.ValidationFailedError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &planErr), errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, code string) bool {
	if a.perms.HasPermission(userID(r), code) {
		return true
	}
	writeError(w, http.StatusForbidden, "permission denied: "+code)
	return false
}

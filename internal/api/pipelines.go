package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"go-dataset-engine/internal/model"
)

type createPipelineRequest struct {
	Name  string       `json:"name"`
	Steps []model.Step `json:"steps"`
}

// createPipeline registers a new pipeline definition
// @Summary Create a pipeline
// @Description Register an ordered sequence of SQL and script steps
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body createPipelineRequest true "Pipeline definition"
// @Success 201 {object} model.Pipeline
// @Failure 400 {object} map[string]interface{} "Invalid definition"
// @Router /pipelines [post]
func (a *API) createPipeline(w http.ResponseWriter, r *http.Request) {
	if !a.requirePermission(w, r, PermPipelineCreate) {
		return
	}

	var req createPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "pipeline name is required")
		return
	}
	if len(req.Steps) == 0 {
		writeError(w, http.StatusBadRequest, "at least one step is required")
		return
	}
	for i, s := range req.Steps {
		if s.Kind != model.StepSQLQuery && s.Kind != model.StepScript {
			writeError(w, http.StatusBadRequest, "step "+strconv.Itoa(i+1)+" has unknown kind")
			return
		}
		if s.OutputName == "" || s.Source == "" || len(s.Inputs) == 0 {
			writeError(w, http.StatusBadRequest, "step "+strconv.Itoa(i+1)+" needs a source, inputs and an output name")
			return
		}
	}

	now := time.Now().UTC()
	p := model.Pipeline{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Active:    true,
		Steps:     req.Steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreatePipeline(p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// listPipelines returns all pipelines
// @Summary List pipelines
// @Tags pipelines
// @Produce json
// @Success 200 {array} model.Pipeline
// @Router /pipelines [get]
func (a *API) listPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := a.store.ListPipelines()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipelines": pipelines,
		"count":     len(pipelines),
	})
}

// getPipeline returns one pipeline
// @Summary Get pipeline
// @Tags pipelines
// @Produce json
// @Param id path string true "Pipeline ID"
// @Success 200 {object} model.Pipeline
// @Failure 404 {object} map[string]interface{} "Unknown pipeline"
// @Router /pipelines/{id} [get]
func (a *API) getPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/pipelines/", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "pipeline id is required")
		return
	}
	p, err := a.store.GetPipeline(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// deactivatePipeline flips the active flag off
// @Summary Deactivate pipeline
// @Description Inactive pipelines reject new executions
// @Tags pipelines
// @Produce json
// @Param id path string true "Pipeline ID"
// @Success 200 {object} map[string]interface{} "Deactivated"
// @Failure 404 {object} map[string]interface{} "Unknown pipeline"
// @Router /pipelines/{id}/deactivate [patch]
func (a *API) deactivatePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/pipelines/", "/deactivate")
	if !ok {
		writeError(w, http.StatusBadRequest, "pipeline id is required")
		return
	}
	if err := a.store.SetPipelineActive(id, false); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"active": false,
	})
}

// executePipeline starts an asynchronous pipeline run
// @Summary Execute pipeline
// @Description Plans the run synchronously, then returns a job id to poll
// @Tags pipelines
// @Produce json
// @Param id path string true "Pipeline ID"
// @Success 202 {object} map[string]interface{} "Job and execution ids"
// @Failure 400 {object} map[string]interface{} "Plan error or inactive pipeline"
// @Failure 404 {object} map[string]interface{} "Unknown pipeline"
// @Router /pipelines/{id}/executions [post]
func (a *API) executePipeline(w http.ResponseWriter, r *http.Request) {
	if !a.requirePermission(w, r, PermPipelineExecute) {
		return
	}
	id, ok := pathParam(r.URL.Path, "/api/v1/pipelines/", "/executions")
	if !ok {
		writeError(w, http.StatusBadRequest, "pipeline id is required")
		return
	}

	j, exec, err := a.engine.Submit(id, userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":       j.ID,
		"executionId": exec.ID,
		"status":      exec.Status,
		"createdAt":   exec.CreatedAt,
	})
}

// listExecutions returns recent executions
// @Summary List recent executions
// @Tags executions
// @Produce json
// @Success 200 {array} model.Execution
// @Router /executions [get]
func (a *API) listExecutions(w http.ResponseWriter, r *http.Request) {
	n := a.recent
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			n = parsed
		}
	}
	execs, err := a.store.ListRecentExecutions(n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"executions": execs,
		"count":      len(execs),
	})
}

// getExecution returns one execution with per-step results
// @Summary Get execution
// @Tags executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} model.Execution
// @Failure 404 {object} map[string]interface{} "Unknown execution"
// @Router /executions/{id} [get]
func (a *API) getExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/executions/", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "execution id is required")
		return
	}
	exec, err := a.store.GetExecution(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

package api

import (
	"net/http"
)

// getJob returns the latest durable job state
// @Summary Get job status
// @Description Poll the async-job envelope: stage, progress 0-100, metadata, error message
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.AsyncJob
// @Failure 404 {object} map[string]interface{} "Unknown job"
// @Router /jobs/{id} [get]
func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/jobs/", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	j, err := a.jobs.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// cancelJob requests cooperative cancellation
// @Summary Cancel job
// @Description Sets the cancellation flag; the running executor observes it at its next step boundary
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} map[string]interface{} "Cancellation requested"
// @Failure 404 {object} map[string]interface{} "Unknown job"
// @Failure 409 {object} map[string]interface{} "Job already terminal"
// @Router /jobs/{id}/cancel [post]
func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	if !a.requirePermission(w, r, PermJobCancel) {
		return
	}
	id, ok := pathParam(r.URL.Path, "/api/v1/jobs/", "/cancel")
	if !ok {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	if err := a.jobs.Cancel(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":  id,
		"status": "cancellation requested",
	})
}

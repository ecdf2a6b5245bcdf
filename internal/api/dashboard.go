package api

import (
	"net/http"

	"go-dataset-engine/internal/model"
)

// dashboard aggregates the landing-page counters and recent activity
// @Summary Engine dashboard
// @Description Dataset and pipeline counts plus the most recent jobs and executions
// @Tags dashboard
// @Produce json
// @Success 200 {object} map[string]interface{} "Dashboard payload"
// @Router /dashboard [get]
func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	dsTotal, dsSource, dsDerived, err := a.store.DatasetCounts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	plTotal, plActive, err := a.store.PipelineCounts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	imports, err := a.store.ListRecentJobs(model.JobImport, a.recent)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	execJobs, err := a.store.ListRecentJobs(model.JobExecution, a.recent)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	execs, err := a.store.ListRecentExecutions(a.recent)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": map[string]interface{}{
			"total":   dsTotal,
			"source":  dsSource,
			"derived": dsDerived,
		},
		"pipelines": map[string]interface{}{
			"total":  plTotal,
			"active": plActive,
		},
		"recentImportJobs":    imports,
		"recentExecutionJobs": execJobs,
		"recentExecutions":    execs,
	})
}

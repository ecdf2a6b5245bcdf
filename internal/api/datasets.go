package api

import (
	"net/http"
	"strconv"
)

// listDatasets returns all registered datasets
// @Summary List datasets
// @Tags datasets
// @Produce json
// @Success 200 {array} model.Dataset
// @Router /datasets [get]
func (a *API) listDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := a.registry.List()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// getDataset returns a dataset's metadata
// @Summary Get dataset
// @Tags datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} model.Dataset
// @Failure 404 {object} map[string]interface{} "Unknown dataset"
// @Router /datasets/{id} [get]
func (a *API) getDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/datasets/", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "dataset id is required")
		return
	}
	ds, err := a.registry.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// datasetRows pages a dataset's materialized rows
// @Summary Read dataset rows
// @Tags datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {object} map[string]interface{} "Rows"
// @Failure 404 {object} map[string]interface{} "Unknown dataset"
// @Router /datasets/{id}/rows [get]
func (a *API) datasetRows(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/datasets/", "/rows")
	if !ok {
		writeError(w, http.StatusBadRequest, "dataset id is required")
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := a.registry.Rows(id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": id,
		"rows":      rows,
		"count":     len(rows),
		"limit":     limit,
	})
}

// datasetLineage returns the transitive producer edges of a dataset
// @Summary Get dataset lineage
// @Tags datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} map[string]interface{} "Lineage edges, nearest ancestors first"
// @Failure 404 {object} map[string]interface{} "Unknown dataset"
// @Router /datasets/{id}/lineage [get]
func (a *API) datasetLineage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(r.URL.Path, "/api/v1/datasets/", "/lineage")
	if !ok {
		writeError(w, http.StatusBadRequest, "dataset id is required")
		return
	}
	if _, err := a.registry.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}
	edges, err := a.lineage.AncestorsOf(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": id,
		"edges":     edges,
		"count":     len(edges),
	})
}

package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go-dataset-engine/internal/importer"
	"go-dataset-engine/internal/model"
)

type importRequest struct {
	DatasetName string         `json:"datasetName"`
	Schema      []model.Column `json:"schema"`
	Header      []string       `json:"header"`
	Rows        [][]string     `json:"rows"`
}

// createImport starts an asynchronous import
// @Summary Import a dataset
// @Description Validates the rows against the declared schema and materializes a source dataset; returns a job id to poll. On failure the job metadata carries the full ordered row-error list.
// @Tags imports
// @Accept json
// @Produce json
// @Param import body importRequest true "Import payload"
// @Success 202 {object} map[string]interface{} "Job id"
// @Failure 400 {object} map[string]interface{} "Invalid payload"
// @Router /imports [post]
func (a *API) createImport(w http.ResponseWriter, r *http.Request) {
	if !a.requirePermission(w, r, PermDatasetImport) {
		return
	}

	var req importer.Request
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		req, err = csvImportRequest(r)
	} else {
		req, err = jsonImportRequest(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := a.importer.Submit(req, userID(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":     j.ID,
		"stage":     j.Stage,
		"createdAt": j.CreatedAt,
	})
}

func jsonImportRequest(r *http.Request) (importer.Request, error) {
	var body importRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return importer.Request{}, fmt.Errorf("invalid JSON payload")
	}
	return importer.Request{
		DatasetName: body.DatasetName,
		Schema:      model.Schema(body.Schema),
		Raw:         importer.RawBatch{Header: body.Header, Rows: body.Rows},
	}, nil
}

// csvImportRequest reads a raw CSV body. The dataset name comes from the
// `name` query parameter and the schema from `schema`, as
// "col:type,col:type" pairs.
func csvImportRequest(r *http.Request) (importer.Request, error) {
	name := r.URL.Query().Get("name")
	schema, err := parseSchemaParam(r.URL.Query().Get("schema"))
	if err != nil {
		return importer.Request{}, err
	}

	reader := csv.NewReader(r.Body)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return importer.Request{}, fmt.Errorf("read CSV header: %w", err)
	}
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return importer.Request{}, fmt.Errorf("read CSV row: %w", err)
		}
		rows = append(rows, record)
	}

	return importer.Request{
		DatasetName: name,
		Schema:      schema,
		Raw:         importer.RawBatch{Header: header, Rows: rows},
	}, nil
}

func parseSchemaParam(s string) (model.Schema, error) {
	if s == "" {
		return nil, fmt.Errorf("schema query parameter is required for CSV imports")
	}
	var schema model.Schema
	for _, pair := range strings.Split(s, ",") {
		name, typ, ok := strings.Cut(pair, ":")
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("invalid schema entry %q, want col:type", pair)
		}
		schema = append(schema, model.Column{Name: name, Type: model.ColumnType(typ)})
	}
	return schema, nil
}

// Package dataset owns Dataset records: creation of source datasets from
// imports, derived datasets from pipeline runs, and all reads.
package dataset

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

// Registry is the ground truth for dataset metadata. Datasets are immutable
// after creation; CreateSource and CreateDerived are the only write paths,
// and the pipeline engine is the sole caller of CreateDerived.
type Registry struct {
	store *store.Store
	log   *zap.Logger
}

// NewRegistry builds a registry over the given store.
func NewRegistry(st *store.Store, log *zap.Logger) *Registry {
	return &Registry{store: st, log: log}
}

// CreateSource materializes a dataset from an import's validated rows.
// Source datasets carry no lineage.
func (r *Registry) CreateSource(name string, schema model.Schema, rows []model.Row) (model.Dataset, error) {
	return r.create(name, model.KindSource, schema, rows)
}

// CreateDerived materializes a dataset produced by a pipeline step. The
// caller is responsible for recording at least one lineage edge.
func (r *Registry) CreateDerived(name string, schema model.Schema, rows []model.Row) (model.Dataset, error) {
	return r.create(name, model.KindDerived, schema, rows)
}

func (r *Registry) create(name string, kind model.DatasetKind, schema model.Schema, rows []model.Row) (model.Dataset, error) {
	if name == "" {
		return model.Dataset{}, fmt.Errorf("dataset name is required")
	}
	if len(schema) == 0 {
		return model.Dataset{}, fmt.Errorf("dataset %q has an empty schema", name)
	}

	now := time.Now().UTC()
	id := uuid.New().String()
	ds := model.Dataset{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Schema:    schema,
		RowCount:  int64(len(rows)),
		TableName: store.TableNameForDataset(id),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateDataset(ds, rows); err != nil {
		return model.Dataset{}, fmt.Errorf("materialize dataset %q: %w", name, err)
	}

	r.log.Info("dataset created",
		zap.String("dataset_id", ds.ID),
		zap.String("name", name),
		zap.String("kind", string(kind)),
		zap.Int64("rows", ds.RowCount))
	return ds, nil
}

// Get fetches a dataset by id.
func (r *Registry) Get(id string) (model.Dataset, error) {
	return r.store.GetDataset(id)
}

// LatestByName resolves a dataset name to its newest version.
func (r *Registry) LatestByName(name string) (model.Dataset, error) {
	return r.store.LatestDatasetByName(name)
}

// List returns all datasets, newest first.
func (r *Registry) List() ([]model.Dataset, error) {
	return r.store.ListDatasets()
}

// Rows pages the materialized rows of a dataset.
func (r *Registry) Rows(id string, limit int) ([]model.Row, error) {
	ds, err := r.store.GetDataset(id)
	if err != nil {
		return nil, err
	}
	return r.store.ReadRows(ds, limit)
}

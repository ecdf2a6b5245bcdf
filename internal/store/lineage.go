package store

import (
	"go-dataset-engine/internal/model"
)

// AppendLineageEdge records one producer edge. Edges are never updated or
// deleted.
func (s *Store) AppendLineageEdge(e model.LineageEdge) error {
	_, err := s.db.Exec(
		`INSERT INTO lineage_edges (derived_dataset_id, source_dataset_id, execution_id, step_index, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.DerivedDatasetID, e.SourceDatasetID, e.ExecutionID, e.StepIndex, e.CreatedAt)
	return err
}

// LineageEdgesFor returns the direct producer edges of a derived dataset,
// in insertion order.
func (s *Store) LineageEdgesFor(derivedDatasetID string) ([]model.LineageEdge, error) {
	rows, err := s.db.Query(
		`SELECT derived_dataset_id, source_dataset_id, execution_id, step_index, created_at
		 FROM lineage_edges WHERE derived_dataset_id = ? ORDER BY id`, derivedDatasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LineageEdge
	for rows.Next() {
		var e model.LineageEdge
		if err := rows.Scan(&e.DerivedDatasetID, &e.SourceDatasetID, &e.ExecutionID, &e.StepIndex, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go-dataset-engine/internal/model"
)

// CreateExecution stores a new execution record.
func (s *Store) CreateExecution(e model.Execution) error {
	stepsJSON, err := json.Marshal(e.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO executions (id, pipeline_id, job_id, status, step_results, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PipelineID, e.JobID, e.Status, string(stepsJSON), e.CreatedAt, e.UpdatedAt)
	return err
}

// UpdateExecution rewrites status and step results.
func (s *Store) UpdateExecution(e model.Execution) error {
	stepsJSON, err := json.Marshal(e.Steps)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE executions SET status = ?, step_results = ?, updated_at = ? WHERE id = ?`,
		e.Status, string(stepsJSON), e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExecution fetches an execution by id.
func (s *Store) GetExecution(id string) (model.Execution, error) {
	row := s.db.QueryRow(
		`SELECT id, pipeline_id, job_id, status, step_results, created_at, updated_at
		 FROM executions WHERE id = ?`, id)
	return scanExecution(row)
}

// ListRecentExecutions returns the n most recent executions.
func (s *Store) ListRecentExecutions(n int) ([]model.Execution, error) {
	rows, err := s.db.Query(
		`SELECT id, pipeline_id, job_id, status, step_results, created_at, updated_at
		 FROM executions ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExecution(r rowScanner) (model.Execution, error) {
	var e model.Execution
	var stepsJSON string
	err := r.Scan(&e.ID, &e.PipelineID, &e.JobID, &e.Status, &stepsJSON, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Execution{}, ErrNotFound
	}
	if err != nil {
		return model.Execution{}, err
	}
	if err := json.Unmarshal([]byte(stepsJSON), &e.Steps); err != nil {
		return model.Execution{}, fmt.Errorf("decode step results for execution %s: %w", e.ID, err)
	}
	return e, nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-dataset-engine/internal/model"
)

// CreatePipeline stores a new pipeline definition.
func (s *Store) CreatePipeline(p model.Pipeline) error {
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO pipelines (id, name, active, steps, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Active, string(stepsJSON), p.CreatedAt, p.UpdatedAt)
	return err
}

// GetPipeline fetches a pipeline by id.
func (s *Store) GetPipeline(id string) (model.Pipeline, error) {
	row := s.db.QueryRow(
		`SELECT id, name, active, steps, created_at, updated_at FROM pipelines WHERE id = ?`, id)
	return scanPipeline(row)
}

// ListPipelines returns all pipelines, newest first.
func (s *Store) ListPipelines() ([]model.Pipeline, error) {
	rows, err := s.db.Query(
		`SELECT id, name, active, steps, created_at, updated_at FROM pipelines ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPipelineActive flips the active flag.
func (s *Store) SetPipelineActive(id string, active bool) error {
	res, err := s.db.Exec(`UPDATE pipelines SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
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

// PipelineCounts returns total and active pipeline counts.
func (s *Store) PipelineCounts() (total, active int64, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0) FROM pipelines`).
		Scan(&total, &active)
	return total, active, err
}

func scanPipeline(r rowScanner) (model.Pipeline, error) {
	var p model.Pipeline
	var stepsJSON string
	err := r.Scan(&p.ID, &p.Name, &p.Active, &stepsJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pipeline{}, ErrNotFound
	}
	if err != nil {
		return model.Pipeline{}, err
	}
	if err := json.Unmarshal([]byte(stepsJSON), &p.Steps); err != nil {
		return model.Pipeline{}, fmt.Errorf("decode steps for pipeline %s: %w", p.ID, err)
	}
	return p, nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go-dataset-engine/internal/model"
)

// CreateJob stores a new async job record.
func (s *Store) CreateJob(j model.AsyncJob) error {
	metaJSON, err := json.Marshal(j.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO jobs (id, job_type, user_id, status, stage, progress, metadata, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Type, j.UserID, j.Status, j.Stage, j.Progress, string(metaJSON), j.ErrorMessage, j.CreatedAt, j.UpdatedAt)
	return err
}

// UpdateJob rewrites the mutable fields of a job record. Writes for one job
// id are serialized by the orchestrator, so polling always observes the
// latest durable state.
func (s *Store) UpdateJob(j model.AsyncJob) error {
	metaJSON, err := json.Marshal(j.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, stage = ?, progress = ?, metadata = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		j.Status, j.Stage, j.Progress, string(metaJSON), j.ErrorMessage, j.UpdatedAt, j.ID)
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

// GetJob fetches a job by id.
func (s *Store) GetJob(id string) (model.AsyncJob, error) {
	row := s.db.QueryRow(
		`SELECT id, job_type, user_id, status, stage, progress, metadata, error_message, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListRecentJobs returns the n most recent jobs of one type.
func (s *Store) ListRecentJobs(jobType model.JobType, n int) ([]model.AsyncJob, error) {
	rows, err := s.db.Query(
		`SELECT id, job_type, user_id, status, stage, progress, metadata, error_message, created_at, updated_at
		 FROM jobs WHERE job_type = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, jobType, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AsyncJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(r rowScanner) (model.AsyncJob, error) {
	var j model.AsyncJob
	var metaJSON string
	err := r.Scan(&j.ID, &j.Type, &j.UserID, &j.Status, &j.Stage, &j.Progress, &metaJSON, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AsyncJob{}, ErrNotFound
	}
	if err != nil {
		return model.AsyncJob{}, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &j.Metadata); err != nil {
		return model.AsyncJob{}, fmt.Errorf("decode metadata for job %s: %w", j.ID, err)
	}
	return j, nil
}

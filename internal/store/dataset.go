package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go-dataset-engine/internal/model"
)

// CreateDataset inserts the dataset record, creates its rows table and
// writes the rows, all in one transaction. On any error nothing is
// materialized.
func (s *Store) CreateDataset(ds model.Dataset, rows []model.Row) error {
	schemaJSON, err := json.Marshal(ds.Schema)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO datasets (id, name, kind, schema, table_name, row_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Kind, string(schemaJSON), ds.TableName, ds.RowCount, ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset record: %w", err)
	}

	if err := createRowsTable(tx, ds.TableName, ds.Schema); err != nil {
		return err
	}
	if err := insertRows(tx, ds.TableName, ds.Schema, rows); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDataset fetches a dataset record by id.
func (s *Store) GetDataset(id string) (model.Dataset, error) {
	row := s.db.QueryRow(
		`SELECT id, name, kind, schema, table_name, row_count, created_at, updated_at
		 FROM datasets WHERE id = ?`, id)
	return scanDataset(row)
}

// LatestDatasetByName returns the most recently created dataset with the
// given name. Re-runs produce new versions under the same name, so "latest
// wins" is the lookup rule for step input references.
func (s *Store) LatestDatasetByName(name string) (model.Dataset, error) {
	row := s.db.QueryRow(
		`SELECT id, name, kind, schema, table_name, row_count, created_at, updated_at
		 FROM datasets WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, name)
	return scanDataset(row)
}

// ListDatasets returns all dataset records, newest first.
func (s *Store) ListDatasets() ([]model.Dataset, error) {
	rows, err := s.db.Query(
		`SELECT id, name, kind, schema, table_name, row_count, created_at, updated_at
		 FROM datasets ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// DatasetCounts returns total, source and derived dataset counts.
func (s *Store) DatasetCounts() (total, source, derived int64, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0)
		 FROM datasets`, model.KindSource, model.KindDerived).Scan(&total, &source, &derived)
	return total, source, derived, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(r rowScanner) (model.Dataset, error) {
	var ds model.Dataset
	var schemaJSON string
	err := r.Scan(&ds.ID, &ds.Name, &ds.Kind, &schemaJSON, &ds.TableName, &ds.RowCount, &ds.CreatedAt, &ds.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dataset{}, ErrNotFound
	}
	if err != nil {
		return model.Dataset{}, err
	}
	if err := json.Unmarshal([]byte(schemaJSON), &ds.Schema); err != nil {
		return model.Dataset{}, fmt.Errorf("decode schema for dataset %s: %w", ds.ID, err)
	}
	return ds, nil
}

// TableNameForDataset derives the rows table name from a dataset id.
func TableNameForDataset(id string) string {
	return "ds_" + strings.ReplaceAll(id, "-", "")
}

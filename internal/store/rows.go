package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go-dataset-engine/internal/model"
)

// sqlType maps a declared column type to its sqlite storage type.
func sqlType(t model.ColumnType) string {
	switch t {
	case model.ColumnInteger:
		return "INTEGER"
	case model.ColumnFloat:
		return "REAL"
	case model.ColumnBoolean:
		return "INTEGER"
	case model.ColumnTimestamp:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func createRowsTable(tx *sql.Tx, tableName string, schema model.Schema) error {
	cols := make([]string, 0, len(schema))
	for _, c := range schema {
		cols = append(cols, fmt.Sprintf("%s %s", QuoteIdent(c.Name), sqlType(c.Type)))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(tableName), strings.Join(cols, ", "))
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("create rows table %s: %w", tableName, err)
	}
	return nil
}

func insertRows(tx *sql.Tx, tableName string, schema model.Schema, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(schema))
	marks := make([]string, 0, len(schema))
	for _, c := range schema {
		cols = append(cols, QuoteIdent(c.Name))
		marks = append(marks, "?")
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(tableName), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(schema))
	for _, row := range rows {
		for i, c := range schema {
			args[i] = toStorageValue(row[c.Name], c.Type)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}
	return nil
}

// ReadRows returns up to limit rows of a dataset, in insertion order.
// limit <= 0 means all rows.
func (s *Store) ReadRows(ds model.Dataset, limit int) ([]model.Row, error) {
	cols := make([]string, 0, len(ds.Schema))
	for _, c := range ds.Schema {
		cols = append(cols, QuoteIdent(c.Name))
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), QuoteIdent(ds.TableName))
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("read rows of dataset %s: %w", ds.ID, err)
	}
	defer rows.Close()

	var out []model.Row
	vals := make([]interface{}, len(ds.Schema))
	ptrs := make([]interface{}, len(ds.Schema))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(model.Row, len(ds.Schema))
		for i, c := range ds.Schema {
			rec[c.Name] = fromStorageValue(vals[i], c.Type)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// toStorageValue converts a typed row value into what the sqlite driver
// expects for the declared column type.
func toStorageValue(v interface{}, t model.ColumnType) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case model.ColumnBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case model.ColumnTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return v
}

func fromStorageValue(v interface{}, t model.ColumnType) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case model.ColumnBoolean:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case model.ColumnInteger:
		if n, ok := v.(int64); ok {
			return n
		}
	case model.ColumnFloat:
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	case model.ColumnString, model.ColumnTimestamp:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		}
	}
	return v
}

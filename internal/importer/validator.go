// Package importer validates raw tabular input and materializes source
// datasets from the rows that pass.
package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-dataset-engine/internal/model"
)

// RowError describes one rejected input row.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// ValidationFailedError is returned when the input is structurally invalid
// or the row error rate exceeds the configured threshold. RowErrors carries
// the full ordered list; no dataset is created.
type ValidationFailedError struct {
	Message   string
	RowErrors []RowError
}

func (e *ValidationFailedError) Error() string { return "validation failed: " + e.Message }

// RawBatch is an unvalidated tabular payload.
type RawBatch struct {
	Header []string
	Rows   [][]string
}

// ValidatedBatch is the validation result below the failure threshold:
// coerced rows plus the non-fatal errors for the rows that were skipped.
type ValidatedBatch struct {
	Rows      []model.Row
	RowErrors []RowError
	Warnings  []string
}

// Validate checks the batch against the declared schema. The structural
// check runs first: every declared column must appear in the header (extra
// header columns only warn). Then each row is coerced column by column;
// rows failing any column are skipped and reported. If the skip rate
// exceeds threshold the whole batch is rejected.
func Validate(raw RawBatch, schema model.Schema, threshold float64) (*ValidatedBatch, error) {
	colIndex := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		colIndex[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, c := range schema {
		if _, ok := colIndex[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationFailedError{
			Message: fmt.Sprintf("header is missing declared column(s): %s", strings.Join(missing, ", ")),
		}
	}

	var warnings []string
	declared := make(map[string]bool, len(schema))
	for _, c := range schema {
		declared[c.Name] = true
	}
	for _, h := range raw.Header {
		if !declared[strings.TrimSpace(h)] {
			warnings = append(warnings, fmt.Sprintf("column %q is not declared and was ignored", strings.TrimSpace(h)))
		}
	}

	batch := &ValidatedBatch{Warnings: warnings}
	for i, rawRow := range raw.Rows {
		row, rowErr := coerceRow(i, rawRow, raw.Header, colIndex, schema)
		if rowErr != nil {
			batch.RowErrors = append(batch.RowErrors, *rowErr)
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}

	if len(raw.Rows) > 0 {
		rate := float64(len(batch.RowErrors)) / float64(len(raw.Rows))
		if rate > threshold {
			return nil, &ValidationFailedError{
				Message: fmt.Sprintf("row error rate %.2f exceeds threshold %.2f (%d of %d rows invalid)",
					rate, threshold, len(batch.RowErrors), len(raw.Rows)),
				RowErrors: batch.RowErrors,
			}
		}
	}
	return batch, nil
}

func coerceRow(idx int, raw []string, header []string, colIndex map[string]int, schema model.Schema) (model.Row, *RowError) {
	if len(raw) != len(header) {
		return nil, &RowError{Row: idx, Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(raw))}
	}
	row := make(model.Row, len(schema))
	for _, c := range schema {
		val, err := coerceValue(raw[colIndex[c.Name]], c.Type)
		if err != nil {
			return nil, &RowError{Row: idx, Column: c.Name, Reason: err.Error()}
		}
		row[c.Name] = val
	}
	return row, nil
}

// coerceValue parses one cell into its declared type. Empty cells become
// nulls for every type.
func coerceValue(s string, t model.ColumnType) (interface{}, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch t {
	case model.ColumnInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return n, nil
	case model.ColumnFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", s)
		}
		return f, nil
	case model.ColumnBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", s)
		}
		return b, nil
	case model.ColumnTimestamp:
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%q is not an RFC3339 timestamp", s)
		}
		return ts.UTC().Format(time.RFC3339), nil
	default:
		return s, nil
	}
}

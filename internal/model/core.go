package model

import "time"

// Row is a schema-agnostic record keyed by column name.
type Row map[string]interface{}

// ColumnType is the declared type of a dataset column.
type ColumnType string

const (
	ColumnString    ColumnType = "string"
	ColumnInteger   ColumnType = "integer"
	ColumnFloat     ColumnType = "float"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp" // RFC3339
)

// Column is one (name, declared type) pair in a dataset schema.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered column list of a dataset.
type Schema []Column

// Column returns the column with the given name, if present.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// DatasetKind distinguishes imported datasets from pipeline outputs.
type DatasetKind string

const (
	KindSource  DatasetKind = "source"
	KindDerived DatasetKind = "derived"
)

// Dataset is the registry record for one materialized dataset. Datasets are
// immutable after creation; a pipeline re-run produces a new dataset under
// the same name rather than rewriting an existing one.
type Dataset struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      DatasetKind `json:"kind"`
	Schema    Schema      `json:"schema"`
	RowCount  int64       `json:"rowCount"`
	TableName string      `json:"-"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

package step

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-dataset-engine/internal/model"
)

func TestColumnNamesSortedUnion(t *testing.T) {
	rows := []model.Row{
		{"b": 1, "a": 2},
		{"c": 3},
		{},
	}
	require.Equal(t, []string{"a", "b", "c"}, columnNames(rows))
}

func TestInferSchema(t *testing.T) {
	rows := []model.Row{
		{"n": int64(1), "f": 1.5, "ok": true, "s": "hello", "at": "2026-08-29T10:00:00Z", "sparse": nil},
		{"n": int64(2), "f": 2.0, "ok": false, "s": "world", "at": "2026-08-29T11:00:00Z"},
	}

	tests := []struct {
		column string
		want   model.ColumnType
	}{
		{"n", model.ColumnInteger},
		{"f", model.ColumnFloat},
		{"ok", model.ColumnBoolean},
		{"s", model.ColumnString},
		{"at", model.ColumnTimestamp},
		{"sparse", model.ColumnString}, // all-null defaults to string
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, inferColumn(tc.column, rows), "column %s", tc.column)
	}
}

func TestInferColumnWidening(t *testing.T) {
	// ints mixed with floats widen to float
	rows := []model.Row{{"v": int64(1)}, {"v": 2.5}}
	require.Equal(t, model.ColumnFloat, inferColumn("v", rows))

	// anything else mixed degrades to string
	rows = []model.Row{{"v": int64(1)}, {"v": "two"}}
	require.Equal(t, model.ColumnString, inferColumn("v", rows))

	rows = []model.Row{{"v": true}, {"v": int64(0)}}
	require.Equal(t, model.ColumnString, inferColumn("v", rows))

	// nulls do not affect the inferred type
	rows = []model.Row{{"v": nil}, {"v": int64(3)}}
	require.Equal(t, model.ColumnInteger, inferColumn("v", rows))
}

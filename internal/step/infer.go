package step

import (
	"sort"
	"time"

	"go-dataset-engine/internal/model"
)

// columnNames collects the union of row keys, sorted for determinism.
func columnNames(rows []model.Row) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// inferSchema derives a declared schema from computed rows. A column is
// typed by the narrowest type that fits every non-nil value it holds;
// anything mixed degrades to string.
func inferSchema(names []string, rows []model.Row) model.Schema {
	schema := make(model.Schema, 0, len(names))
	for _, name := range names {
		schema = append(schema, model.Column{Name: name, Type: inferColumn(name, rows)})
	}
	return schema
}

func inferColumn(name string, rows []model.Row) model.ColumnType {
	var current model.ColumnType
	for _, r := range rows {
		v, ok := r[name]
		if !ok || v == nil {
			continue
		}
		t := valueType(v)
		switch {
		case current == "":
			current = t
		case current == t:
			// unchanged
		case current == model.ColumnInteger && t == model.ColumnFloat,
			current == model.ColumnFloat && t == model.ColumnInteger:
			current = model.ColumnFloat
		default:
			return model.ColumnString
		}
	}
	if current == "" {
		return model.ColumnString
	}
	return current
}

func valueType(v interface{}) model.ColumnType {
	switch tv := v.(type) {
	case bool:
		return model.ColumnBoolean
	case int64, int, int32:
		return model.ColumnInteger
	case float64, float32:
		return model.ColumnFloat
	case string:
		if _, err := time.Parse(time.RFC3339, tv); err == nil {
			return model.ColumnTimestamp
		}
		return model.ColumnString
	default:
		return model.ColumnString
	}
}

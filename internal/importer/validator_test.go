package importer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"go-dataset-engine/internal/model"
)

var orderSchema = model.Schema{
	{Name: "id", Type: model.ColumnInteger},
	{Name: "amount", Type: model.ColumnFloat},
	{Name: "paid", Type: model.ColumnBoolean},
}

func TestValidateCoercesTypes(t *testing.T) {
	raw := RawBatch{
		Header: []string{"id", "amount", "paid"},
		Rows: [][]string{
			{"1", "9.99", "true"},
			{"2", "0.5", "false"},
			{"3", "", ""},
		},
	}

	batch, err := Validate(raw, orderSchema, 0.1)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 3)
	require.Empty(t, batch.RowErrors)

	require.Equal(t, int64(1), batch.Rows[0]["id"])
	require.Equal(t, 9.99, batch.Rows[0]["amount"])
	require.Equal(t, true, batch.Rows[0]["paid"])

	// Empty cells become nulls for every type.
	require.Nil(t, batch.Rows[2]["amount"])
	require.Nil(t, batch.Rows[2]["paid"])
}

func TestValidateSkipsRowsBelowThreshold(t *testing.T) {
	raw := RawBatch{Header: []string{"id", "amount", "paid"}}
	for i := 0; i < 100; i++ {
		amount := "1.5"
		if i%20 == 19 { // rows 19, 39, 59, 79, 99 are invalid
			amount = "not-a-number"
		}
		raw.Rows = append(raw.Rows, []string{fmt.Sprint(i), amount, "true"})
	}

	batch, err := Validate(raw, orderSchema, 0.1)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 95)
	require.Len(t, batch.RowErrors, 5)

	// Errors keep input order and name the offending column.
	require.Equal(t, 19, batch.RowErrors[0].Row)
	require.Equal(t, 99, batch.RowErrors[4].Row)
	require.Equal(t, "amount", batch.RowErrors[0].Column)
}

func TestValidateFailsAboveThreshold(t *testing.T) {
	raw := RawBatch{Header: []string{"id", "amount", "paid"}}
	for i := 0; i < 100; i++ {
		amount := "1.5"
		if i < 15 {
			amount = "bad"
		}
		raw.Rows = append(raw.Rows, []string{fmt.Sprint(i), amount, "true"})
	}

	_, err := Validate(raw, orderSchema, 0.1)
	var vf *ValidationFailedError
	require.ErrorAs(t, err, &vf)
	// The full ordered row-error list rides on the failure.
	require.Len(t, vf.RowErrors, 15)
	require.Equal(t, 0, vf.RowErrors[0].Row)
	require.Equal(t, 14, vf.RowErrors[14].Row)
}

func TestValidateExactThresholdPasses(t *testing.T) {
	raw := RawBatch{Header: []string{"id", "amount", "paid"}}
	for i := 0; i < 10; i++ {
		amount := "1.5"
		if i == 0 {
			amount = "bad"
		}
		raw.Rows = append(raw.Rows, []string{fmt.Sprint(i), amount, "true"})
	}

	// Rate == threshold is not "exceeds".
	batch, err := Validate(raw, orderSchema, 0.1)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 9)
	require.Len(t, batch.RowErrors, 1)
}

func TestValidateMissingDeclaredColumn(t *testing.T) {
	raw := RawBatch{
		Header: []string{"id", "amount"},
		Rows:   [][]string{{"1", "2.0"}},
	}

	_, err := Validate(raw, orderSchema, 1.0)
	var vf *ValidationFailedError
	require.ErrorAs(t, err, &vf)
	require.Contains(t, vf.Message, "paid")
	require.Empty(t, vf.RowErrors)
}

func TestValidateUndeclaredColumnWarns(t *testing.T) {
	raw := RawBatch{
		Header: []string{"id", "amount", "paid", "note"},
		Rows:   [][]string{{"1", "2.0", "true", "ignored"}},
	}

	batch, err := Validate(raw, orderSchema, 0)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	require.NotContains(t, batch.Rows[0], "note")
	require.Len(t, batch.Warnings, 1)
	require.Contains(t, batch.Warnings[0], "note")
}

func TestValidateFieldCountMismatch(t *testing.T) {
	raw := RawBatch{
		Header: []string{"id", "amount", "paid"},
		Rows: [][]string{
			{"1", "2.0", "true"},
			{"2", "3.0"},
		},
	}

	batch, err := Validate(raw, orderSchema, 0.5)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	require.Len(t, batch.RowErrors, 1)
	require.Equal(t, 1, batch.RowErrors[0].Row)
	require.Contains(t, batch.RowErrors[0].Reason, "expected 3 fields")
}

func TestValidateIsDeterministic(t *testing.T) {
	raw := RawBatch{
		Header: []string{"id", "amount", "paid"},
		Rows: [][]string{
			{"1", "bad", "true"},
			{"2", "2.0", "nope"},
			{"3", "3.0", "false"},
		},
	}

	first, err := Validate(raw, orderSchema, 1.0)
	require.NoError(t, err)
	second, err := Validate(raw, orderSchema, 1.0)
	require.NoError(t, err)
	require.Equal(t, first.Rows, second.Rows)
	require.Equal(t, first.RowErrors, second.RowErrors)
}

func TestValidateTimestamps(t *testing.T) {
	schema := model.Schema{{Name: "at", Type: model.ColumnTimestamp}}
	raw := RawBatch{
		Header: []string{"at"},
		Rows: [][]string{
			{"2026-08-29T10:00:00Z"},
			{"2026-08-29T12:00:00+02:00"},
			{"yesterday"},
		},
	}

	batch, err := Validate(raw, schema, 0.5)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	require.Equal(t, "2026-08-29T10:00:00Z", batch.Rows[0]["at"])
	// Offsets normalize to UTC.
	require.Equal(t, "2026-08-29T10:00:00Z", batch.Rows[1]["at"])
	require.Len(t, batch.RowErrors, 1)
}

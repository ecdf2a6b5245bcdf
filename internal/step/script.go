package step

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"go-dataset-engine/internal/model"
)

// executeScript evaluates a script step. Every evaluation gets a fresh VM:
// inputs are bound as plain values (copies of the dataset rows, so the
// script cannot reach durable state), the script must assign `output` an
// array of row objects, and a wall-clock timeout interrupts runaway code.
func (e *Executor) executeScript(ctx context.Context, s model.Step, inputs map[string]model.Dataset) (*Output, error) {
	bound := make(map[string][]model.Row, len(inputs))
	for name, ds := range inputs {
		rows, err := e.store.ReadRows(ds, 0)
		if err != nil {
			return nil, fmt.Errorf("read input %q: %w", name, err)
		}
		bound[name] = rows
	}

	vm := goja.New()
	if err := vm.Set("inputs", bound); err != nil {
		return nil, &ScriptError{Detail: fmt.Sprintf("bind inputs: %v", err)}
	}

	const timeoutFlag = "script timeout"
	timer := time.AfterFunc(e.scriptTimeout, func() { vm.Interrupt(timeoutFlag) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	if _, err := vm.RunString(s.Source); err != nil {
		if intr, ok := err.(*goja.InterruptedError); ok && fmt.Sprint(intr.Value()) == timeoutFlag {
			return nil, &ScriptError{Detail: "timeout"}
		}
		return nil, &ScriptError{Detail: err.Error()}
	}

	outVal := vm.Get("output")
	if outVal == nil || goja.IsUndefined(outVal) || goja.IsNull(outVal) {
		return nil, &ScriptError{Detail: "script did not bind `output`"}
	}

	exported := outVal.Export()
	rows, err := exportedRows(exported)
	if err != nil {
		return nil, &ScriptError{Detail: err.Error()}
	}

	names := columnNames(rows)
	if len(names) == 0 {
		return nil, &ScriptError{Detail: "`output` rows have no columns"}
	}
	return &Output{Schema: inferSchema(names, rows), Rows: rows}, nil
}

// exportedRows converts a goja export of `output` into row maps.
func exportedRows(v interface{}) ([]model.Row, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("`output` must be an array of objects, got %T", v)
	}
	rows := make([]model.Row, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("`output[%d]` must be an object, got %T", i, item)
		}
		rec := make(model.Row, len(obj))
		for k, val := range obj {
			switch tv := val.(type) {
			case nil, string, bool, int64, float64:
				rec[k] = tv
			case int:
				rec[k] = int64(tv)
			case int32:
				rec[k] = int64(tv)
			case time.Time:
				rec[k] = tv.UTC().Format(time.RFC3339)
			default:
				rec[k] = fmt.Sprint(tv)
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

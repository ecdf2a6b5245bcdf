package step

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"go-dataset-engine/internal/model"
	"go-dataset-engine/internal/store"
)

// executeQuery runs a SQL step. Each input dataset is exposed as a temp
// view named after the step's input reference, on a pinned connection that
// is switched to query-only mode before the user query runs. Result rows
// are fully read before anything is materialized.
func (e *Executor) executeQuery(ctx context.Context, s model.Step, inputs map[string]model.Dataset) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	conn, err := e.store.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	// Close returns the connection to the pool, so the query-only mode and
	// the temp views must be undone first or the next pooled write fails.
	// The step's ctx may already be expired here; cleanup gets its own.
	var views []string
	defer func() {
		cleanup := context.Background()
		ok := true
		if _, err := conn.ExecContext(cleanup, "PRAGMA query_only = 0"); err != nil {
			ok = false
		}
		for _, v := range views {
			if _, err := conn.ExecContext(cleanup, "DROP VIEW IF EXISTS "+v); err != nil {
				ok = false
			}
		}
		if !ok {
			// Discard the session rather than pool a half-cleaned one.
			conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		}
		conn.Close()
	}()

	for name, ds := range inputs {
		cols := make([]string, 0, len(ds.Schema))
		for _, c := range ds.Schema {
			cols = append(cols, store.QuoteIdent(c.Name))
		}
		stmt := fmt.Sprintf("CREATE TEMP VIEW %s AS SELECT %s FROM %s",
			store.QuoteIdent(name), strings.Join(cols, ", "), store.QuoteIdent(ds.TableName))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, &QueryError{Detail: fmt.Sprintf("bind input %q: %v", name, err)}
		}
		views = append(views, store.QuoteIdent(name))
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = 1"); err != nil {
		return nil, fmt.Errorf("enter read-only mode: %w", err)
	}

	rows, err := conn.QueryContext(ctx, s.Source)
	if err != nil {
		return nil, &QueryError{Detail: queryDetail(ctx, err)}
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Detail: err.Error()}
	}
	if len(colNames) == 0 {
		return nil, &QueryError{Detail: "query produced no columns"}
	}
	seen := make(map[string]bool, len(colNames))
	for _, name := range colNames {
		if name == "" {
			return nil, &QueryError{Detail: "result column without a name; alias expressions with AS"}
		}
		if seen[name] {
			return nil, &QueryError{Detail: fmt.Sprintf("duplicate result column %q", name)}
		}
		seen[name] = true
	}

	var out []model.Row
	vals := make([]interface{}, len(colNames))
	ptrs := make([]interface{}, len(colNames))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Detail: err.Error()}
		}
		rec := make(model.Row, len(colNames))
		for i, name := range colNames {
			if b, ok := vals[i].([]byte); ok {
				rec[name] = string(b)
			} else {
				rec[name] = vals[i]
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Detail: queryDetail(ctx, err)}
	}

	return &Output{Schema: inferSchema(colNames, out), Rows: out}, nil
}

func queryDetail(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

// Package filedb executes statements against single-file databases opened
// through dbfile.
package filedb

import (
	"context"
	"fmt"
	"time"

	"github.com/querybridge/querybridge/internal/dbfile"
	"github.com/querybridge/querybridge/internal/query"
)

type Engine struct {
	Dialect dbfile.Dialect
	Timeout time.Duration
}

func NewEngine(dialect dbfile.Dialect, timeout time.Duration) *Engine {
	return &Engine{Dialect: dialect, Timeout: timeout}
}

// Execute opens the file, runs one statement, fetches every row up to
// RowLimit and closes the handle again. Batches of several statements are
// refused. A read-only request needs an existing file; otherwise the file is
// created if absent.
func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText, err := query.SingleStatement(request.SQL)
	if err != nil {
		return query.Result{}, err
	}
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if request.DatabasePath == "" {
		return query.Result{}, fmt.Errorf("database path is required")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	start := time.Now()
	open := dbfile.Open
	if request.ReadOnly {
		open = dbfile.OpenReadOnly
	}
	db, err := open(ctx, e.Dialect, request.DatabasePath)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if request.RowLimit > 0 && len(resultRows) == request.RowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339Nano)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

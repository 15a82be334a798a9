package query

import (
	"context"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// RowCount is the number of data rows in the result.
func (r Result) RowCount() int {
	return len(r.Rows)
}

// SingleValue reports the sole cell of a one-row, one-column result.
func (r Result) SingleValue() (any, bool) {
	if len(r.Rows) == 1 && len(r.Columns) == 1 && len(r.Rows[0]) == 1 {
		return r.Rows[0][0], true
	}
	return nil, false
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// Inspector enumerates the warehouse schema: table names and their columns
// in declaration order.
type Inspector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]string, error)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Handle is the opaque storage capability the engine drives.
//
// Implementations are not required to be goroutine-safe: the engine
// guarantees all calls come from one goroutine, in request order.
type Handle interface {
	// Exec runs a statement with bound parameters.
	Exec(ctx context.Context, query string, args []any) (sql.Result, error)

	// Query runs a statement and returns a cursor over its rows.
	// The cursor must be closed before the next call on the handle.
	Query(ctx context.Context, query string, args []any) (Cursor, error)

	// Commit flushes pending writes to durable storage.
	// No-op when no transaction is open.
	Commit(ctx context.Context) error

	// Close releases the handle. Pending writes are committed first.
	Close() error
}

// Cursor iterates the rows of the last executed query.
type Cursor interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// rowsCursor adapts *sql.Rows to Cursor.
type rowsCursor struct {
	rows *sql.Rows
	cols int
	blob []bool // column declared BLOB; other []byte values are text
}

func newRowsCursor(rows *sql.Rows) (*rowsCursor, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}
	blob := make([]bool, len(types))
	for i, ct := range types {
		blob[i] = strings.EqualFold(ct.DatabaseTypeName(), "BLOB")
	}
	return &rowsCursor{rows: rows, cols: len(types), blob: blob}, nil
}

func (c *rowsCursor) Next() bool { return c.rows.Next() }

// Values scans the current row into a fresh slice in column order.
// Text comes back as string and BLOB columns as []byte, whichever driver
// is in use. []byte values are copied by database/sql, so the slice
// outlives the cursor.
func (c *rowsCursor) Values() ([]any, error) {
	vals := make([]any, c.cols)
	ptrs := make([]any, c.cols)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok && !c.blob[i] {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (c *rowsCursor) Err() error   { return c.rows.Err() }
func (c *rowsCursor) Close() error { return c.rows.Close() }

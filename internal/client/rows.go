package client

import (
	"context"
	"iter"

	"github.com/roach88/sqlq/internal/engine"
)

// Rows is the lazy, forward-only result of Select.
//
// Not safe for concurrent use. A Rows is finite and single-use; run the
// query again with another Select to re-read.
type Rows struct {
	ctx    context.Context
	stream *engine.RowStream
	cur    Row
	err    error
	done   bool
}

// Next advances to the next row, blocking until the worker produces it.
// Returns false at the end of the result or on error; check Err.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}

	row, ok, err := r.stream.Next(r.ctx)
	if !ok {
		r.done = true
		r.cur = nil
		r.err = err
		if err != nil && r.ctx.Err() != nil {
			// Caller gave up; let the worker drop the rest.
			r.stream.Abandon()
		}
		return false
	}

	r.cur = row
	return true
}

// Row returns the current row.
func (r *Rows) Row() Row {
	return r.cur
}

// Err returns the query error or the context error that ended iteration.
func (r *Rows) Err() error {
	return r.err
}

// Close stops iteration early. Rows not yet read are discarded.
func (r *Rows) Close() error {
	if !r.done {
		r.done = true
		r.cur = nil
		r.stream.Abandon()
	}
	return nil
}

// All iterates over the remaining rows. Check Err afterwards.
func (r *Rows) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for r.Next() {
			if !yield(r.Row()) {
				r.Close()
				return
			}
		}
	}
}

// Collect reads every remaining row into memory.
func (r *Rows) Collect() ([]Row, error) {
	var out []Row
	for r.Next() {
		out = append(out, r.Row())
	}
	return out, r.Err()
}

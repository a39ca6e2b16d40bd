package engine

import (
	"context"
	"sync"
)

// Row is one result row in column order.
type Row []any

// RowStream carries the rows of one query from the worker to the caller.
//
// The buffer is unbounded so the worker never blocks on a slow or departed
// reader: holding one full result set in memory is the accepted cost.
// A stream is single-use: the worker pushes rows, then calls Finish exactly
// once (the end-of-results sentinel). The reader drains with Next.
type RowStream struct {
	mu        sync.Mutex
	rows      []Row
	err       error
	finished  bool
	abandoned bool
	signal    chan struct{} // buffered, size 1; closed by Finish
}

// NewRowStream creates an empty stream.
func NewRowStream() *RowStream {
	return &RowStream{
		rows:   make([]Row, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Push appends a row. Called only by the worker.
// Returns false once the reader has abandoned the stream, telling the
// worker to stop iterating its cursor.
func (s *RowStream) Push(row Row) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned {
		return false
	}
	if s.finished {
		return false
	}

	s.rows = append(s.rows, row)

	select {
	case s.signal <- struct{}{}:
	default:
	}

	return true
}

// Finish delivers the end-of-results sentinel with the query error, if any.
// Wakes any waiting reader. Later calls are ignored.
func (s *RowStream) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	close(s.signal)
}

// Abandon tells the worker the reader is gone and drops buffered rows.
func (s *RowStream) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abandoned = true
	s.rows = nil
}

// Abandoned reports whether the reader has abandoned the stream.
func (s *RowStream) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

// tryNext pops the next row without blocking.
// done is true once the sentinel has been seen and no rows remain.
func (s *RowStream) tryNext() (row Row, ok bool, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rows) > 0 {
		row = s.rows[0]
		s.rows[0] = nil
		if len(s.rows) == 1 {
			s.rows = s.rows[:0]
		} else {
			s.rows = s.rows[1:]
		}
		return row, true, false, nil
	}
	if s.finished || s.abandoned {
		return nil, false, true, s.err
	}
	return nil, false, false, nil
}

// Next blocks until a row is available or the sentinel arrives.
//
// Returns (row, true, nil) for each row in cursor order, then
// (nil, false, err) once the stream has ended, where err is the query error.
// A cancelled ctx returns (nil, false, ctx.Err()) without consuming the stream.
func (s *RowStream) Next(ctx context.Context) (Row, bool, error) {
	for {
		row, ok, done, err := s.tryNext()
		if ok {
			return row, true, nil
		}
		if done {
			return nil, false, err
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-s.signal:
			// Loop back to tryNext. The channel is closed by Finish,
			// so this case fires immediately after the sentinel.
		}
	}
}

// Len returns the number of buffered rows not yet read.
func (s *RowStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

package testutil

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/roach88/sqlq/internal/store"
)

// Call records one operation performed on a FakeHandle.
type Call struct {
	Op        string // "exec", "query", "commit", "close"
	Statement string
	Params    []any
}

// FakeHandle is a scriptable store.Handle for engine and client tests.
//
// It never touches a database: Exec and Query consult the configured
// failures and canned rows, and every call is recorded in order.
//
// Thread-safety: the recording methods are safe for concurrent use so tests
// can inspect Calls() while the worker is running.
type FakeHandle struct {
	mu      sync.Mutex
	calls   []Call
	closed  bool
	rows    map[string][][]any
	fail    map[string]error
	gate    chan struct{}
	entered chan string
}

var _ store.Handle = (*FakeHandle)(nil)

// NewFakeHandle creates an empty fake.
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{
		rows: make(map[string][][]any),
		fail: make(map[string]error),
	}
}

// Opener returns an opener that hands out this fake.
func (f *FakeHandle) Opener() func(context.Context) (store.Handle, error) {
	return func(context.Context) (store.Handle, error) {
		return f, nil
	}
}

// FailingOpener returns an opener that always fails with err.
func FailingOpener(err error) func(context.Context) (store.Handle, error) {
	return func(context.Context) (store.Handle, error) {
		return nil, err
	}
}

// SetRows scripts the rows returned for a query statement.
func (f *FakeHandle) SetRows(statement string, rows [][]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[statement] = rows
}

// FailOn makes Exec/Query of statement return err.
func (f *FakeHandle) FailOn(statement string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[statement] = err
}

// Block makes every Exec wait until Release is called. Each blocked Exec
// announces its statement on the returned channel.
func (f *FakeHandle) Block() <-chan string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan string, 1024)
	return f.entered
}

// Release unblocks all current and future Exec calls.
func (f *FakeHandle) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Calls returns a copy of the recorded calls.
func (f *FakeHandle) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Statements returns the statements of recorded exec calls in order.
func (f *FakeHandle) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Op == "exec" {
			out = append(out, c.Statement)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (f *FakeHandle) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeHandle) record(c Call) (chan struct{}, chan string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.gate, f.entered, f.fail[c.Statement]
}

// Exec implements store.Handle.
func (f *FakeHandle) Exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	gate, entered, err := f.record(Call{Op: "exec", Statement: query, Params: args})
	if gate != nil {
		entered <- query
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return fakeResult{}, nil
}

// Query implements store.Handle.
func (f *FakeHandle) Query(ctx context.Context, query string, args []any) (store.Cursor, error) {
	_, _, err := f.record(Call{Op: "query", Statement: query, Params: args})
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	rows := f.rows[query]
	f.mu.Unlock()
	return &fakeCursor{rows: rows, pos: -1}, nil
}

// Commit implements store.Handle.
func (f *FakeHandle) Commit(ctx context.Context) error {
	_, _, err := f.record(Call{Op: "commit"})
	return err
}

// Close implements store.Handle.
func (f *FakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fake handle already closed")
	}
	f.closed = true
	f.calls = append(f.calls, Call{Op: "close"})
	return nil
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 1, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeCursor struct {
	rows [][]any
	pos  int
}

func (c *fakeCursor) Next() bool {
	c.pos++
	return c.pos < len(c.rows)
}

func (c *fakeCursor) Values() ([]any, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, errors.New("no current row")
	}
	return c.rows[c.pos], nil
}

func (c *fakeCursor) Err() error   { return nil }
func (c *fakeCursor) Close() error { return nil }

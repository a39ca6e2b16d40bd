package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/roach88/sqlq/internal/store"
)

// State is the worker lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateProcessing
	StateDraining
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Opener creates the storage handle. Called on the worker goroutine.
type Opener func(ctx context.Context) (store.Handle, error)

// Worker is the single consumer of the request channel and the only
// goroutine that touches the storage handle.
//
// Thread-safety model:
//   - Start(): call once, from any goroutine
//   - State(), Done(), Err(): safe from any goroutine
//   - the handle: touched only by the worker goroutine
type Worker struct {
	open       Opener
	reqs       <-chan Request
	autocommit bool
	onError    ErrorHandler
	logger     *slog.Logger

	state    atomic.Int32
	done     chan struct{}
	closeErr error
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithAutocommit commits after every successful statement.
func WithAutocommit(on bool) WorkerOption {
	return func(w *Worker) {
		w.autocommit = on
	}
}

// WithErrorHandler sets the sink for failures of unacknowledged requests.
// Default: LogErrors on the worker's logger.
func WithErrorHandler(h ErrorHandler) WorkerOption {
	return func(w *Worker) {
		w.onError = h
	}
}

// WithLogger sets the worker logger. Default: slog.Default().
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker creates a worker reading from reqs. Nothing runs until Start.
func NewWorker(open Opener, reqs <-chan Request, opts ...WorkerOption) *Worker {
	w := &Worker{
		open:   open,
		reqs:   reqs,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.onError == nil {
		w.onError = LogErrors(w.logger)
	}
	return w
}

// Start launches the worker goroutine and blocks until the handle is open.
//
// An open failure is returned and the worker exits. If ctx ends first,
// Start returns ctx.Err(); the caller must then close the request channel
// so the worker releases the handle once it finishes opening.
func (w *Worker) Start(ctx context.Context) error {
	ready := make(chan error, 1)
	go w.run(ready)

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the error from closing the handle. Valid after Done.
func (w *Worker) Err() error {
	return w.closeErr
}

// run is the worker goroutine.
// CRITICAL: the only code path that holds the handle.
func (w *Worker) run(ready chan<- error) {
	defer close(w.done)

	// The handle stays on one OS thread for its whole lifetime.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := context.Background()

	h, err := w.open(ctx)
	if err != nil {
		w.state.Store(int32(StateClosed))
		w.closeErr = err
		ready <- fmt.Errorf("open handle: %w", err)
		return
	}
	w.state.Store(int32(StateReady))
	ready <- nil
	w.logger.Debug("worker ready")

	for req := range w.reqs {
		if req.Kind == KindClose {
			w.state.Store(int32(StateDraining))
			w.closeErr = h.Close()
			w.state.Store(int32(StateClosed))
			if req.Ack != nil {
				req.Ack <- Ack{Err: w.closeErr}
			}
			w.logger.Debug("worker stopped", "request_id", req.ID)
			return
		}

		w.state.Store(int32(StateProcessing))
		w.process(ctx, h, req)
		w.state.Store(int32(StateReady))
	}

	// Channel closed without a close request (aborted startup).
	w.state.Store(int32(StateDraining))
	w.closeErr = h.Close()
	w.state.Store(int32(StateClosed))
	w.logger.Debug("worker stopped: request channel closed")
}

// process executes one request against the handle.
// Failures are reported and never stop the loop.
func (w *Worker) process(ctx context.Context, h store.Handle, req Request) {
	switch req.Kind {
	case KindWrite:
		res, err := h.Exec(ctx, req.Statement, req.Params)
		if err == nil && w.autocommit {
			err = h.Commit(ctx)
		}
		w.finish(req, toResult(res), err)

	case KindQuery:
		w.query(ctx, h, req)

	case KindCommit:
		w.finish(req, Result{}, h.Commit(ctx))

	default:
		w.finish(req, Result{}, fmt.Errorf("unknown request kind: %d", req.Kind))
	}
}

// query runs a query and streams every row into the request's RowStream.
// The sentinel is always delivered, so a reader never hangs.
func (w *Worker) query(ctx context.Context, h store.Handle, req Request) {
	if req.Rows == nil {
		w.finish(req, Result{}, errors.New("query request missing row stream"))
		return
	}

	cur, err := h.Query(ctx, req.Statement, req.Params)
	if err != nil {
		w.logger.Debug("query failed", "request_id", req.ID, "error", err)
		req.Rows.Finish(err)
		return
	}

	var scanErr error
	for cur.Next() {
		vals, err := cur.Values()
		if err != nil {
			scanErr = err
			break
		}
		if !req.Rows.Push(Row(vals)) {
			// Reader gone; drop the remainder.
			break
		}
	}
	if scanErr == nil {
		scanErr = cur.Err()
	}
	if err := cur.Close(); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr == nil && w.autocommit {
		scanErr = h.Commit(ctx)
	}
	if scanErr != nil {
		w.logger.Debug("query failed", "request_id", req.ID, "error", scanErr)
	}

	req.Rows.Finish(scanErr)
}

// finish delivers the outcome: to the Ack channel when the caller waits,
// otherwise failures go to the ErrorHandler.
func (w *Worker) finish(req Request, res Result, err error) {
	if req.Ack != nil {
		req.Ack <- Ack{Result: res, Err: err}
		return
	}
	if err != nil {
		w.onError(&ExecError{
			RequestID: req.ID,
			Kind:      req.Kind,
			Statement: req.Statement,
			Params:    req.Params,
			Err:       err,
		})
	}
}

// toResult extracts counters from a driver result. Errors from drivers
// that do not support a counter leave it at zero.
func toResult(res sql.Result) Result {
	if res == nil {
		return Result{}
	}
	var r Result
	if n, err := res.RowsAffected(); err == nil {
		r.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		r.LastInsertID = id
	}
	return r
}

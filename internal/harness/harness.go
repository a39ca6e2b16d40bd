package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/sqlq/internal/client"
	"github.com/roach88/sqlq/internal/config"
	"github.com/roach88/sqlq/internal/engine"
	"github.com/roach88/sqlq/internal/store"
)

// barrier is issued after the last step. Its reply proves the worker has
// processed every earlier request, so collected failures are complete.
const barrier = "SELECT 1"

// Outcomes recorded for requests that do not wait for the worker.
const (
	outcomeQueued = "queued"
	outcomeError  = "error"
)

// Harness runs one scenario against one client.
type Harness struct {
	client *client.Client
	result *Result

	mu       sync.Mutex
	failures []*engine.ExecError
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Open a client on a private in-memory database
//  2. Execute setup steps
//  3. Execute steps with expect validation
//  4. Wait for the worker to drain, then report unexpected failures
//  5. Evaluate assertions and close the client
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller context and extra client options.
func RunContext(ctx context.Context, scenario *Scenario, opts ...client.Option) (*Result, error) {
	cfg := config.DefaultDatabase(store.MemoryPath)
	if scenario.Driver != "" {
		cfg.Driver = scenario.Driver
	}
	cfg.Autocommit = scenario.Autocommit

	h := &Harness{result: NewResult()}

	clientOpts := []client.Option{
		client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in scenarios
		client.WithErrorHandler(h.collect),
	}
	clientOpts = append(clientOpts, opts...)

	c, err := client.Open(ctx, cfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario database: %w", err)
	}
	h.client = c

	if err := h.runSteps(ctx, "setup", scenario.Setup); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.runSteps(ctx, "steps", scenario.Steps); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	if _, _, err := c.SelectOne(ctx, barrier); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to drain worker: %w", err)
	}
	for _, f := range h.drainFailures() {
		h.result.AddError(fmt.Sprintf("unexpected failure: %v", f))
	}

	for _, msg := range EvaluateAssertions(ctx, h.result, scenario.Assertions, c) {
		h.result.AddError(msg)
	}

	if err := c.Close(); err != nil {
		h.result.AddError(fmt.Sprintf("close: %v", err))
	}

	return h.result, nil
}

// collect is the client's error handler. It runs on the worker goroutine.
func (h *Harness) collect(e *engine.ExecError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, e)
}

func (h *Harness) drainFailures() []*engine.ExecError {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.failures
	h.failures = nil
	return out
}

// runSteps executes steps in order. An error is returned only when the
// client itself refuses a request; statement failures become result errors.
func (h *Harness) runSteps(ctx context.Context, phase string, steps []Step) error {
	for i, step := range steps {
		if err := h.runStep(ctx, fmt.Sprintf("%s[%d]", phase, i), step); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) runStep(ctx context.Context, where string, step Step) error {
	switch step.Op() {
	case OpExec:
		return h.exec(ctx, where, step)
	case OpExecMany:
		h.result.AddTrace(TraceEvent{Op: OpExecMany, Statement: step.ExecMany, Items: step.Items, Outcome: outcomeQueued})
		return h.client.ExecuteMany(ctx, step.ExecMany, step.Items)
	case OpSelect:
		return h.selectAll(ctx, where, step)
	case OpSelectOne:
		return h.selectOne(ctx, where, step)
	case OpCommit:
		h.result.AddTrace(TraceEvent{Op: OpCommit, Outcome: outcomeQueued})
		return h.client.Commit(ctx)
	case OpCreateTable:
		return h.createTable(ctx, where, step.CreateTable)
	case OpCreateIndex:
		return h.createIndex(ctx, where, step.CreateIndex)
	default:
		return fmt.Errorf("%s: exactly one operation is required", where)
	}
}

func (h *Harness) exec(ctx context.Context, where string, step Step) error {
	ev := TraceEvent{Op: OpExec, Statement: step.Exec, Params: step.Params}

	if step.Expect == nil {
		ev.Outcome = outcomeQueued
		h.result.AddTrace(ev)
		return h.client.Execute(ctx, step.Exec, step.Params...)
	}

	res, err := h.client.ExecWait(ctx, step.Exec, step.Params...)
	if err != nil && isRefusal(ctx, err) {
		return err
	}
	if err != nil {
		ev.Outcome = outcomeError
	} else {
		ev.Outcome = fmt.Sprintf("rows_affected=%d", res.RowsAffected)
	}
	h.result.AddTrace(ev)

	if !h.checkError(where, step.Expect, err) || err != nil {
		return nil
	}
	if want := step.Expect.RowsAffected; want != nil && *want != res.RowsAffected {
		h.result.AddError(fmt.Sprintf("%s: expected rows_affected=%d, got %d", where, *want, res.RowsAffected))
	}
	return nil
}

func (h *Harness) selectAll(ctx context.Context, where string, step Step) error {
	ev := TraceEvent{Op: OpSelect, Statement: step.Select, Params: step.Params}

	rows, err := h.client.Select(ctx, step.Select, step.Params...)
	if err != nil {
		return err
	}
	all, err := rows.Collect()
	if err != nil && isRefusal(ctx, err) {
		return err
	}

	got := make([][]any, len(all))
	for i, row := range all {
		got[i] = normalizeRow(row)
	}
	if err != nil {
		ev.Outcome = outcomeError
	} else {
		ev.Outcome = fmt.Sprintf("rows=%v", got)
	}
	h.result.AddTrace(ev)

	if !h.checkError(where, step.Expect, err) || err != nil || step.Expect == nil || step.Expect.Rows == nil {
		return nil
	}

	want := step.Expect.Rows
	if len(want) != len(got) {
		h.result.AddError(fmt.Sprintf("%s: expected %d rows %v, got %d rows %v", where, len(want), want, len(got), got))
		return nil
	}
	for i := range want {
		if !rowsEqual(want[i], got[i]) {
			h.result.AddError(fmt.Sprintf("%s: row %d: expected %v, got %v", where, i, want[i], got[i]))
		}
	}
	return nil
}

func (h *Harness) selectOne(ctx context.Context, where string, step Step) error {
	ev := TraceEvent{Op: OpSelectOne, Statement: step.SelectOne, Params: step.Params}

	row, found, err := h.client.SelectOne(ctx, step.SelectOne, step.Params...)
	if err != nil && isRefusal(ctx, err) {
		return err
	}
	got := normalizeRow(row)
	switch {
	case err != nil:
		ev.Outcome = outcomeError
	case !found:
		ev.Outcome = "not_found"
	default:
		ev.Outcome = fmt.Sprintf("row=%v", got)
	}
	h.result.AddTrace(ev)

	if !h.checkError(where, step.Expect, err) || err != nil || step.Expect == nil {
		return nil
	}

	e := step.Expect
	if e.Found != nil && *e.Found != found {
		h.result.AddError(fmt.Sprintf("%s: expected found=%t, got %t", where, *e.Found, found))
		return nil
	}
	if e.Row != nil {
		if !found {
			h.result.AddError(fmt.Sprintf("%s: expected row %v, got none", where, e.Row))
		} else if !rowsEqual(e.Row, got) {
			h.result.AddError(fmt.Sprintf("%s: expected row %v, got %v", where, e.Row, got))
		}
	}
	return nil
}

func (h *Harness) createTable(ctx context.Context, where string, def *TableDef) error {
	cols := make([]client.Column, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = client.Column{Name: c.Name, Type: c.Type}
	}

	stmt, err := client.CreateTableStatement(def.Name, cols, def.PrimaryKey)
	if err != nil {
		h.result.AddTrace(TraceEvent{Op: OpCreateTable, Outcome: outcomeError})
		h.result.AddError(fmt.Sprintf("%s: %v", where, err))
		return nil
	}
	h.result.AddTrace(TraceEvent{Op: OpCreateTable, Statement: stmt, Outcome: outcomeQueued})
	return h.client.CreateTable(ctx, def.Name, cols, def.PrimaryKey)
}

func (h *Harness) createIndex(ctx context.Context, where string, def *IndexDef) error {
	stmt, err := client.CreateIndexStatement(def.Table, def.Columns)
	if err != nil {
		h.result.AddTrace(TraceEvent{Op: OpCreateIndex, Outcome: outcomeError})
		h.result.AddError(fmt.Sprintf("%s: %v", where, err))
		return nil
	}
	h.result.AddTrace(TraceEvent{Op: OpCreateIndex, Statement: stmt, Outcome: outcomeQueued})
	return h.client.CreateIndex(ctx, def.Table, def.Columns)
}

// checkError compares a statement error against the expect clause and
// records a mismatch. It returns false when a mismatch was recorded.
func (h *Harness) checkError(where string, e *Expect, err error) bool {
	wantErr := e != nil && e.Error
	switch {
	case wantErr && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected an error, got none", where))
		return false
	case !wantErr && err != nil:
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", where, err))
		return false
	}
	return true
}

// isRefusal reports whether err came from the client or the context
// rather than from SQLite.
func isRefusal(ctx context.Context, err error) bool {
	return errors.Is(err, client.ErrClosed) || ctx.Err() != nil
}

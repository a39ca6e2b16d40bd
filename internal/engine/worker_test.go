package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlq/internal/testutil"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// errorSink collects reported failures.
type errorSink struct {
	mu   sync.Mutex
	errs []*ExecError
}

func (s *errorSink) handle(e *ExecError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, e)
}

func (s *errorSink) all() []*ExecError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ExecError(nil), s.errs...)
}

// startWorker starts a worker over a fake handle and stops it on cleanup.
func startWorker(t *testing.T, fake *testutil.FakeHandle, opts ...WorkerOption) (chan Request, *Worker) {
	t.Helper()
	reqs := make(chan Request, 50)
	opts = append([]WorkerOption{WithLogger(quietLogger)}, opts...)
	w := NewWorker(fake.Opener(), reqs, opts...)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		select {
		case <-w.Done():
		default:
			fake.Release()
			reqs <- Close()
			<-w.Done()
		}
	})
	return reqs, w
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_StartSignalsReady(t *testing.T) {
	fake := testutil.NewFakeHandle()
	reqs := make(chan Request, 1)
	w := NewWorker(fake.Opener(), reqs, WithLogger(quietLogger))

	assert.Equal(t, StateUninitialized, w.State())
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, StateReady, w.State())

	reqs <- Close()
	waitDone(t, w)
	assert.Equal(t, StateClosed, w.State())
	assert.True(t, fake.Closed())
}

func TestWorker_StartReportsOpenFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	reqs := make(chan Request)
	w := NewWorker(testutil.FailingOpener(boom), reqs, WithLogger(quietLogger))

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	waitDone(t, w)
	assert.Equal(t, StateClosed, w.State())
}

func TestWorker_ProcessesInOrder(t *testing.T) {
	fake := testutil.NewFakeHandle()
	reqs, w := startWorker(t, fake)

	reqs <- Write("INSERT 1", nil)
	reqs <- Commit()
	reqs <- Write("INSERT 2", nil)
	reqs <- Close()
	waitDone(t, w)

	calls := fake.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op + ":" + c.Statement
	}
	assert.Equal(t, []string{"exec:INSERT 1", "commit:", "exec:INSERT 2", "close:"}, ops)
}

func TestWorker_NothingAfterClose(t *testing.T) {
	fake := testutil.NewFakeHandle()
	reqs, w := startWorker(t, fake)

	reqs <- Write("BEFORE", nil)
	reqs <- Close()
	reqs <- Write("AFTER", nil)
	waitDone(t, w)

	assert.Equal(t, []string{"BEFORE"}, fake.Statements())
}

func TestWorker_FailureDoesNotStopLoop(t *testing.T) {
	fake := testutil.NewFakeHandle()
	boom := errors.New("constraint failed")
	fake.FailOn("BAD", boom)

	sink := &errorSink{}
	reqs, w := startWorker(t, fake, WithErrorHandler(sink.handle))

	reqs <- Write("BAD", []any{1})
	reqs <- Write("GOOD", nil)
	reqs <- Close()
	waitDone(t, w)

	assert.Equal(t, []string{"BAD", "GOOD"}, fake.Statements())

	errs := sink.all()
	require.Len(t, errs, 1)
	assert.Equal(t, KindWrite, errs[0].Kind)
	assert.Equal(t, "BAD", errs[0].Statement)
	assert.Equal(t, []any{1}, errs[0].Params)
	assert.NotEmpty(t, errs[0].RequestID)
	assert.ErrorIs(t, errs[0], boom)
	assert.True(t, IsExecError(errs[0]))
}

func TestWorker_QueryStreamsRows(t *testing.T) {
	fake := testutil.NewFakeHandle()
	fake.SetRows("SELECT id FROM t", [][]any{{int64(1)}, {int64(2)}, {int64(3)}})
	reqs, _ := startWorker(t, fake)

	rows := NewRowStream()
	reqs <- Query("SELECT id FROM t", nil, rows)

	var got []any
	for {
		row, ok, err := rows.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row[0])
	}
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)
}

func TestWorker_QueryFailureStillSendsSentinel(t *testing.T) {
	fake := testutil.NewFakeHandle()
	boom := errors.New("no such table")
	fake.FailOn("SELECT * FROM missing", boom)

	sink := &errorSink{}
	reqs, _ := startWorker(t, fake, WithErrorHandler(sink.handle))

	rows := NewRowStream()
	reqs <- Query("SELECT * FROM missing", nil, rows)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, ok, err := rows.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sink.all(), "query errors go to the reader, not the handler")
}

func TestWorker_AckReturnsOutcome(t *testing.T) {
	fake := testutil.NewFakeHandle()
	boom := errors.New("boom")
	fake.FailOn("BAD", boom)

	sink := &errorSink{}
	reqs, _ := startWorker(t, fake, WithErrorHandler(sink.handle))

	ack := make(chan Ack, 1)
	req := Write("GOOD", nil)
	req.Ack = ack
	reqs <- req
	got := <-ack
	require.NoError(t, got.Err)
	assert.Equal(t, Result{RowsAffected: 1, LastInsertID: 1}, got.Result)

	req = Write("BAD", nil)
	req.Ack = ack
	reqs <- req
	got = <-ack
	assert.ErrorIs(t, got.Err, boom)
	assert.Empty(t, sink.all(), "acknowledged failures are not reported twice")
}

func TestWorker_AutocommitAfterWrite(t *testing.T) {
	fake := testutil.NewFakeHandle()
	reqs, w := startWorker(t, fake, WithAutocommit(true))

	reqs <- Write("INSERT 1", nil)
	reqs <- Close()
	waitDone(t, w)

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "exec", calls[0].Op)
	assert.Equal(t, "commit", calls[1].Op)
	assert.Equal(t, "close", calls[2].Op)
}

func TestWorker_NoAutocommitAfterFailedWrite(t *testing.T) {
	fake := testutil.NewFakeHandle()
	fake.FailOn("BAD", errors.New("boom"))
	reqs, w := startWorker(t, fake, WithAutocommit(true), WithErrorHandler(func(*ExecError) {}))

	reqs <- Write("BAD", nil)
	reqs <- Close()
	waitDone(t, w)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "exec", calls[0].Op)
	assert.Equal(t, "close", calls[1].Op)
}

func TestWorker_ChannelClosedReleasesHandle(t *testing.T) {
	fake := testutil.NewFakeHandle()
	reqs := make(chan Request)
	w := NewWorker(fake.Opener(), reqs, WithLogger(quietLogger))
	require.NoError(t, w.Start(context.Background()))

	close(reqs)
	waitDone(t, w)
	assert.True(t, fake.Closed())
	assert.Equal(t, StateClosed, w.State())
}

func TestWorker_StateWhileProcessing(t *testing.T) {
	fake := testutil.NewFakeHandle()
	entered := fake.Block()
	reqs, w := startWorker(t, fake)

	reqs <- Write("SLOW", nil)
	<-entered
	assert.Equal(t, StateProcessing, w.State())

	fake.Release()
	reqs <- Close()
	waitDone(t, w)
	assert.Equal(t, StateClosed, w.State())
}

func TestRequestKind_String(t *testing.T) {
	assert.Equal(t, "write", KindWrite.String())
	assert.Equal(t, "query", KindQuery.String())
	assert.Equal(t, "commit", KindCommit.String())
	assert.Equal(t, "close", KindClose.String())
	assert.Equal(t, "kind(99)", RequestKind(99).String())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "state(42)", State(42).String())
}

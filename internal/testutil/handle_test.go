package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeHandle_RecordsCalls(t *testing.T) {
	f := NewFakeHandle()
	ctx := context.Background()

	_, err := f.Exec(ctx, "INSERT INTO t VALUES (?)", []any{1})
	require.NoError(t, err)
	require.NoError(t, f.Commit(ctx))
	require.NoError(t, f.Close())

	calls := f.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Op: "exec", Statement: "INSERT INTO t VALUES (?)", Params: []any{1}}, calls[0])
	assert.Equal(t, "commit", calls[1].Op)
	assert.Equal(t, "close", calls[2].Op)
	assert.Equal(t, []string{"INSERT INTO t VALUES (?)"}, f.Statements())
	assert.True(t, f.Closed())
}

func TestFakeHandle_CannedRows(t *testing.T) {
	f := NewFakeHandle()
	f.SetRows("SELECT a FROM t", [][]any{{"x"}, {"y"}})

	cur, err := f.Query(context.Background(), "SELECT a FROM t", nil)
	require.NoError(t, err)

	var got []any
	for cur.Next() {
		vals, err := cur.Values()
		require.NoError(t, err)
		got = append(got, vals[0])
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())
	assert.Equal(t, []any{"x", "y"}, got)

	_, err = cur.Values()
	assert.Error(t, err, "no current row after exhaustion")
}

func TestFakeHandle_FailOn(t *testing.T) {
	f := NewFakeHandle()
	boom := errors.New("boom")
	f.FailOn("BAD", boom)
	f.FailOn("", boom)

	_, err := f.Exec(context.Background(), "BAD", nil)
	assert.ErrorIs(t, err, boom)

	_, err = f.Query(context.Background(), "BAD", nil)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, f.Commit(context.Background()), boom)

	_, err = f.Exec(context.Background(), "GOOD", nil)
	assert.NoError(t, err)
}

func TestFakeHandle_CloseTwice(t *testing.T) {
	f := NewFakeHandle()
	require.NoError(t, f.Close())
	assert.Error(t, f.Close())
}

func TestFakeHandle_BlockRelease(t *testing.T) {
	f := NewFakeHandle()
	entered := f.Block()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.Exec(context.Background(), "SLOW", nil)
	}()

	assert.Equal(t, "SLOW", <-entered)
	select {
	case <-done:
		t.Fatal("Exec returned before Release")
	default:
	}

	f.Release()
	<-done
}

func TestFailingOpener(t *testing.T) {
	boom := errors.New("cannot open")
	h, err := FailingOpener(boom)(context.Background())
	assert.Nil(t, h)
	assert.ErrorIs(t, err, boom)
}

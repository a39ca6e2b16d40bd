package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowStream_PushNext(t *testing.T) {
	s := NewRowStream()

	ok := s.Push(Row{int64(1), "alice"})
	require.True(t, ok, "push should succeed")

	row, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Row{int64(1), "alice"}, row)
}

func TestRowStream_FIFO(t *testing.T) {
	s := NewRowStream()

	for i := 1; i <= 3; i++ {
		s.Push(Row{int64(i)})
	}
	s.Finish(nil)

	var got []int64
	for {
		row, ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row[0].(int64))
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestRowStream_FinishWithError(t *testing.T) {
	s := NewRowStream()
	boom := errors.New("boom")

	s.Push(Row{"first"})
	s.Finish(boom)

	// Rows before the error are still delivered
	row, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Row{"first"}, row)

	_, ok, err = s.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestRowStream_Next_BlocksUntilAvailable(t *testing.T) {
	s := NewRowStream()

	done := make(chan Row)
	go func() {
		row, ok, _ := s.Next(context.Background())
		if ok {
			done <- row
		}
	}()

	// Give goroutine time to block
	time.Sleep(10 * time.Millisecond)

	s.Push(Row{"late"})

	select {
	case row := <-done:
		assert.Equal(t, Row{"late"}, row)
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock")
	}
}

func TestRowStream_Finish_UnblocksNext(t *testing.T) {
	s := NewRowStream()

	done := make(chan bool)
	go func() {
		_, ok, _ := s.Next(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	s.Finish(nil)

	select {
	case ok := <-done:
		assert.False(t, ok, "Next after sentinel should return false")
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Finish")
	}
}

func TestRowStream_Next_ContextCancelled(t *testing.T) {
	s := NewRowStream()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := s.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRowStream_Abandon(t *testing.T) {
	s := NewRowStream()

	require.True(t, s.Push(Row{1}))
	s.Abandon()

	assert.True(t, s.Abandoned())
	assert.False(t, s.Push(Row{2}), "push after abandon should return false")
	assert.Equal(t, 0, s.Len(), "abandon drops buffered rows")

	_, ok, err := s.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestRowStream_FinishTwice(t *testing.T) {
	s := NewRowStream()

	s.Finish(nil)
	assert.NotPanics(t, func() { s.Finish(errors.New("late")) })
	assert.False(t, s.Push(Row{1}), "push after sentinel should return false")

	_, _, err := s.Next(context.Background())
	assert.NoError(t, err, "first Finish wins")
}

func TestRowStream_Len(t *testing.T) {
	s := NewRowStream()

	assert.Equal(t, 0, s.Len())
	s.Push(Row{1})
	s.Push(Row{2})
	assert.Equal(t, 2, s.Len())

	s.Next(context.Background())
	assert.Equal(t, 1, s.Len())
}

func TestRowStream_ConcurrentProducerConsumer(t *testing.T) {
	s := NewRowStream()
	const total = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			s.Push(Row{int64(i)})
		}
		s.Finish(nil)
	}()

	var got []int64
	for {
		row, ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row[0].(int64))
	}
	wg.Wait()

	require.Len(t, got, total)
	for i, v := range got {
		assert.Equal(t, int64(i), v, "rows must arrive in push order")
	}
}

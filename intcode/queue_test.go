package intcode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFunctional(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, 2)
	assert.Equal(t, 2, q.Len())

	assert.NoError(t, q.Send(3))
	for _, want := range []int64{1, 2, 3} {
		got, err := q.Recv(ctx)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryRecv()
	assert.False(t, ok)

	// close lets the consumer drain what is left
	assert.NoError(t, q.Send(4))
	q.Close()
	got, err := q.Recv(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), got)
	_, err = q.Recv(ctx)
	assert.ErrorIs(t, err, ErrInputClosed)
	assert.ErrorIs(t, q.Send(5), ErrDisconnected)
}

func TestQueue_Disconnect(t *testing.T) {
	q := NewQueue(1)
	q.Disconnect()
	assert.Equal(t, 0, q.Len())
	assert.ErrorIs(t, q.Send(2), ErrDisconnected)
}

func TestQueue_RecvBlocks(t *testing.T) {
	q := NewQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan int64)
	go func() {
		v, err := q.Recv(context.Background())
		assert.NoError(t, err)
		done <- v
	}()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, q.Send(42))
	assert.Equal(t, int64(42), <-done)
}

func TestQueue_FanInOrder(t *testing.T) {
	q := NewQueue()
	producers := 4
	per := 200

	for p := 0; p < producers; p++ {
		q.attach()
	}
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer q.detach()
			for i := 0; i < per; i++ {
				assert.NoError(t, q.Send(int64(p*per+i)))
			}
		}(p)
	}

	// values from each producer arrive in the order it sent them
	last := make([]int64, producers)
	for i := range last {
		last[i] = -1
	}
	count := 0
	for {
		v, err := q.Recv(context.Background())
		if err != nil {
			assert.ErrorIs(t, err, ErrInputClosed)
			break
		}
		p := v / int64(per)
		assert.Greater(t, v, last[p])
		last[p] = v
		count++
	}
	wg.Wait()
	assert.Equal(t, producers*per, count)
}

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverflowDropsOldest(t *testing.T) {
	var dropped []int
	q := New[int](2, func(item int) { dropped = append(dropped, item) })

	require.NoError(t, q.TryPush(1))
	require.NoError(t, q.TryPush(2))
	require.NoError(t, q.TryPush(3)) // drops 1
	require.NoError(t, q.TryPush(4)) // drops 2

	assert.Equal(t, []int{1, 2}, dropped)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := q.Recv(ctx)
	require.NoError(t, err)
	second, err := q.Recv(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, first)
	assert.Equal(t, 4, second)
}

func TestRecvBlocksUntilPush(t *testing.T) {
	q := New[int](4, nil)
	done := make(chan int, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := q.Recv(ctx)
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.TryPush(42))

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after push")
	}
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	q := New[int](4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

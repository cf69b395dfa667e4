package worker

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesWork(t *testing.T) {
	var processed int64
	pool := NewPool(2, 10, func(_ context.Context, _ int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	assert.Equal(t, int64(5), atomic.LoadInt64(&processed))
	stats := pool.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Processed)
	assert.Zero(t, stats.Failed)
}

func TestPoolCountsFailures(t *testing.T) {
	pool := NewPool(1, 10, func(_ context.Context, fail bool) error {
		if fail {
			return stderrors.New("boom")
		}
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(true))
	require.NoError(t, pool.Submit(false))
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPoolLifecycleErrors(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, int) error { return nil })

	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)

	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	// Stop is idempotent.
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the worker, second fills the queue.
	require.NoError(t, pool.Submit(1))
	var dropped bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(i); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			dropped = true
			break
		}
	}
	assert.True(t, dropped)
	assert.Positive(t, pool.Stats().Dropped)

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPoolDefaults(t *testing.T) {
	pool := NewPool(0, 0, func(context.Context, int) error { return nil })
	assert.Equal(t, 4, pool.workers)
	assert.Equal(t, 256, pool.queueSize)

	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}

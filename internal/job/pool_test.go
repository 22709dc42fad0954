package job

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mu    sync.Mutex
	ran   []int64
	count atomic.Int64
	block chan struct{}
}

func (m *mockRunner) Run(_ context.Context, id int64) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.ran = append(m.ran, id)
	m.mu.Unlock()
	m.count.Add(1)
	return nil
}

func startPool(t *testing.T, p *Pool) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestPool_RunsDispatchedJobs(t *testing.T) {
	runner := &mockRunner{}
	pool := NewPool(runner, 3)
	cancel, done := startPool(t, pool)

	for id := int64(1); id <= 10; id++ {
		require.NoError(t, pool.Dispatch(context.Background(), id))
	}
	waitFor(t, func() bool { return runner.count.Load() == 10 })

	cancel()
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, runner.ran)
}

func TestPool_DispatchBeforeRun(t *testing.T) {
	runner := &mockRunner{}
	pool := NewPool(runner, 1)
	require.NoError(t, pool.Dispatch(context.Background(), 7))

	cancel, done := startPool(t, pool)
	waitFor(t, func() bool { return runner.count.Load() == 1 })
	cancel()
	<-done
}

func TestPool_DispatchDoesNotBlock(t *testing.T) {
	runner := &mockRunner{block: make(chan struct{})}
	pool := NewPool(runner, 1)
	cancel, done := startPool(t, pool)

	finished := make(chan struct{})
	go func() {
		for id := int64(1); id <= 100; id++ {
			_ = pool.Dispatch(context.Background(), id)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked while the worker was busy")
	}

	close(runner.block)
	waitFor(t, func() bool { return runner.count.Load() == 100 })
	cancel()
	<-done
}

func TestPool_GracefulShutdown(t *testing.T) {
	runner := &mockRunner{block: make(chan struct{})}
	pool := NewPool(runner, 1)
	cancel, done := startPool(t, pool)

	require.NoError(t, pool.Dispatch(context.Background(), 1))
	require.NoError(t, pool.Dispatch(context.Background(), 2))
	waitFor(t, func() bool { return len(pool.Pending()) == 1 })

	cancel()

	select {
	case <-done:
		t.Fatal("pool stopped before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for graceful shutdown")
	}

	assert.Equal(t, int64(1), runner.count.Load())
	assert.Equal(t, []int64{2}, pool.Pending())
	assert.ErrorIs(t, pool.Dispatch(context.Background(), 3), ErrPoolClosed)
}

func TestPool_HoldsQueuedAndRunningJobs(t *testing.T) {
	runner := &mockRunner{block: make(chan struct{})}
	pool := NewPool(runner, 1)
	ctx := context.Background()

	require.NoError(t, pool.Dispatch(ctx, 1))
	require.NoError(t, pool.Dispatch(ctx, 2))
	assert.True(t, pool.Holds(1))
	assert.True(t, pool.Holds(2))
	assert.False(t, pool.Holds(3))

	cancel, done := startPool(t, pool)
	waitFor(t, func() bool { return len(pool.Pending()) == 1 })
	assert.True(t, pool.Holds(1), "running")
	assert.True(t, pool.Holds(2), "queued")

	close(runner.block)
	waitFor(t, func() bool { return runner.count.Load() == 2 })
	waitFor(t, func() bool { return !pool.Holds(1) && !pool.Holds(2) })

	cancel()
	<-done
}

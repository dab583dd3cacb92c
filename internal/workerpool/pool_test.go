package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(5 * time.Second) })
	return p
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MinWorkers: 0, MaxWorkers: 1}.Validate())
	assert.Error(t, Config{MinWorkers: 3, MaxWorkers: 2}.Validate())
	assert.Error(t, Config{MinWorkers: 1, MaxWorkers: 1, Backlog: -1}.Validate())
}

func TestSubmit_RunsJobs(t *testing.T) {
	p := newTestPool(t, Config{MinWorkers: 2, MaxWorkers: 4, Backlog: 10})

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int64(10), ran.Load())
	assert.Eventually(t, func() bool { return p.Outstanding() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSubmit_ReturnsImmediately(t *testing.T) {
	p := newTestPool(t, Config{MinWorkers: 1, MaxWorkers: 1, Backlog: 1})

	gate := make(chan struct{})
	defer close(gate)

	start := time.Now()
	require.NoError(t, p.Submit(func() { <-gate }))
	require.NoError(t, p.Submit(func() { <-gate }))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubmit_FailsFastWhenSaturated(t *testing.T) {
	p := newTestPool(t, Config{MinWorkers: 1, MaxWorkers: 2, Backlog: 3})

	gate := make(chan struct{})
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func() { <-gate }), "job %d within workers+backlog", i)
	}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, p.Submit(func() {}), ErrSaturated)
	}
	assert.Equal(t, 5, p.Outstanding())

	close(gate)
	assert.Eventually(t, func() bool { return p.Outstanding() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Capacity is available again once jobs drain.
	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	<-done
}

func TestPool_GrowsToMaxWorkers(t *testing.T) {
	p := newTestPool(t, Config{MinWorkers: 1, MaxWorkers: 3, Backlog: 5})

	gate := make(chan struct{})
	var started atomic.Int64
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func() {
			started.Add(1)
			<-gate
		}))
	}

	assert.Eventually(t, func() bool { return started.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, p.Workers())
	close(gate)
}

func TestPool_ShrinksToMinWorkersWhenIdle(t *testing.T) {
	p := newTestPool(t, Config{MinWorkers: 1, MaxWorkers: 3, Backlog: 5})

	gate := make(chan struct{})
	var started atomic.Int64
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func() {
			started.Add(1)
			<-gate
		}))
	}
	require.Eventually(t, func() bool { return started.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 3, p.Workers())

	close(gate)
	assert.Eventually(t, func() bool { return p.Outstanding() == 0 && p.Workers() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Grows again under the next burst.
	next := make(chan struct{})
	started.Store(0)
	for i := 0; i < 2; i++ {
		require.NoError(t, p.Submit(func() {
			started.Add(1)
			<-next
		}))
	}
	assert.Eventually(t, func() bool { return started.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, p.Workers())
	close(next)
}

func TestPool_SurvivesPanickingJob(t *testing.T) {
	p := newTestPool(t, Config{MinWorkers: 1, MaxWorkers: 1, Backlog: 1})

	require.NoError(t, p.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped running jobs after a panic")
	}
	assert.Eventually(t, func() bool { return p.Outstanding() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClose_RejectsNewJobs(t *testing.T) {
	p, err := New(Config{MinWorkers: 1, MaxWorkers: 1, Backlog: 0}, nil)
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() { ran.Store(true) }))
	require.NoError(t, p.Close(2*time.Second))

	assert.True(t, ran.Load(), "queued job runs before Close returns")
	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
	assert.NoError(t, p.Close(time.Second), "Close is idempotent")
}

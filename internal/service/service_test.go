package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queryexec/internal/executor"
	"github.com/roach88/queryexec/internal/model"
	"github.com/roach88/queryexec/internal/store"
	"github.com/roach88/queryexec/internal/testutil"
	"github.com/roach88/queryexec/internal/workerpool"
)

type fixture struct {
	svc   *Service
	store *store.Store
	exec  *testutil.CountingExecutor
}

// newFixture wires a Service over a temp query store, the sample dataset
// and a counting executor. wrap, when non-nil, decorates the real executor.
func newFixture(t *testing.T, poolCfg workerpool.Config, wrap func(executor.Executor) executor.Executor) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "queries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var exec executor.Executor = executor.New(testutil.OpenDataset(t), nil)
	if wrap != nil {
		exec = wrap(exec)
	}
	counting := &testutil.CountingExecutor{Inner: exec}

	pool, err := workerpool.New(poolCfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(5 * time.Second) })

	svc := New(st, counting, pool, WithIDGenerator(testutil.NewSequenceGenerator("exec")))
	return &fixture{svc: svc, store: st, exec: counting}
}

func (f *fixture) register(t *testing.T, text string) int64 {
	t.Helper()
	id, err := f.svc.CreateQuery(context.Background(), text)
	require.NoError(t, err)
	return id
}

func waitTerminal(t *testing.T, svc *Service, executionID string) model.Execution {
	t.Helper()
	var status model.Execution
	require.Eventually(t, func() bool {
		s, err := svc.GetAsyncStatus(executionID)
		if err != nil {
			return false
		}
		status = s
		return s.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestExecuteSync_CachesPerQueryID(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	id := f.register(t, "SELECT * FROM passengers WHERE Age > 30")

	first, err := f.svc.ExecuteSync(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := f.svc.ExecuteSync(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.exec.Calls(), "second call is a cache hit")
	assert.Equal(t, 1, f.svc.CachedResults())

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExecuteSync_ConcurrentFirstCallersExecuteOnce(t *testing.T) {
	const callers = 16
	var gated *testutil.GatedExecutor
	f := newFixture(t, workerpool.DefaultConfig(), func(inner executor.Executor) executor.Executor {
		gated = testutil.NewGatedExecutor(inner)
		return gated
	})
	id := f.register(t, "SELECT PassengerId FROM passengers ORDER BY PassengerId")

	var wg sync.WaitGroup
	results := make([]model.Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.ExecuteSync(context.Background(), id)
		}(i)
	}

	<-gated.Started
	time.Sleep(50 * time.Millisecond)
	gated.Release()
	wg.Wait()

	assert.Equal(t, int64(1), f.exec.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 20)
	}
}

func TestExecuteSync_CancelledCallerDoesNotFailSharedExecution(t *testing.T) {
	var gated *testutil.GatedExecutor
	f := newFixture(t, workerpool.DefaultConfig(), func(inner executor.Executor) executor.Executor {
		gated = testutil.NewGatedExecutor(inner)
		return gated
	})
	id := f.register(t, "SELECT PassengerId FROM passengers ORDER BY PassengerId")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	var wg sync.WaitGroup
	var firstRows, otherRows model.Result
	var firstErr, otherErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstRows, firstErr = f.svc.ExecuteSync(firstCtx, id)
	}()
	<-gated.Started

	wg.Add(1)
	go func() {
		defer wg.Done()
		otherRows, otherErr = f.svc.ExecuteSync(context.Background(), id)
	}()
	// Let the second caller join the in-flight execution.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	gated.Release()
	wg.Wait()

	require.NoError(t, otherErr)
	assert.Len(t, otherRows, 20)
	require.NoError(t, firstErr)
	assert.Len(t, firstRows, 20)
	assert.Equal(t, int64(1), f.exec.Calls())
	assert.Equal(t, 1, f.svc.CachedResults())
}

func TestExecuteSync_RejectsDrop(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	id := f.register(t, "DROP TABLE passengers")

	_, err := f.svc.ExecuteSync(context.Background(), id)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "not a SELECT")
	assert.Contains(t, err.Error(), "DROP")
	assert.Equal(t, int64(0), f.exec.Calls())
}

func TestExecuteSync_RejectsForbiddenKeyword(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	id := f.register(t, "SELECT * FROM passengers; DROP TABLE passengers")

	_, err := f.svc.ExecuteSync(context.Background(), id)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "DROP")
	assert.Equal(t, int64(0), f.exec.Calls())
}

func TestExecuteSync_UnknownQuery(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)

	_, err := f.svc.ExecuteSync(context.Background(), 99999)
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
	assert.False(t, model.IsExecution(err))
}

func TestExecuteSync_ExecutionErrorNotCached(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	id := f.register(t, "SELECT * FROM crew")

	for i := 0; i < 2; i++ {
		_, err := f.svc.ExecuteSync(context.Background(), id)
		require.Error(t, err)
		assert.True(t, model.IsExecution(err))
		assert.Contains(t, err.Error(), "no such table")
	}
	assert.Equal(t, int64(2), f.exec.Calls())
	assert.Equal(t, 0, f.svc.CachedResults())
}

func TestExecuteSync_FailureDoesNotAffectOtherQueries(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	bad := f.register(t, "SELECT * FROM crew")
	good := f.register(t, "SELECT COUNT(*) FROM passengers")

	_, err := f.svc.ExecuteSync(context.Background(), bad)
	require.Error(t, err)

	result, err := f.svc.ExecuteSync(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, model.Result{{int64(20)}}, result)
}

func TestExecuteAsync_Lifecycle(t *testing.T) {
	var gated *testutil.GatedExecutor
	f := newFixture(t, workerpool.DefaultConfig(), func(inner executor.Executor) executor.Executor {
		gated = testutil.NewGatedExecutor(inner)
		return gated
	})
	id := f.register(t, "SELECT PassengerId, Name FROM passengers WHERE Survived = 1 ORDER BY PassengerId")

	executionID, err := f.svc.ExecuteAsync(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "exec-1", executionID)

	status, err := f.svc.GetAsyncStatus(executionID)
	require.NoError(t, err)
	assert.Contains(t, []model.ExecutionStatus{model.StatusPending, model.StatusRunning}, status.Status)

	<-gated.Started
	status, err = f.svc.GetAsyncStatus(executionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, status.Status)

	gated.Release()
	final := waitTerminal(t, f.svc, executionID)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Nil(t, final.ErrorMessage)

	syncResult, err := f.svc.ExecuteSync(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, syncResult, final.Result)
	assert.Equal(t, int64(1), f.exec.Calls(), "sync call after async reuses the cached result")

	again, err := f.svc.GetAsyncStatus(executionID)
	require.NoError(t, err)
	assert.Equal(t, final, again)
}

func TestExecuteAsync_ValidationFailureRecorded(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	id := f.register(t, "UPDATE passengers SET Name = 'Hacked' WHERE PassengerId = 1")

	executionID, err := f.svc.ExecuteAsync(context.Background(), id)
	require.NoError(t, err)

	final := waitTerminal(t, f.svc, executionID)
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.Nil(t, final.Result)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "only SELECT queries are allowed")
}

func TestExecuteAsync_ExecutionFailureRecorded(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	id := f.register(t, "SELECT * FROM crew")

	executionID, err := f.svc.ExecuteAsync(context.Background(), id)
	require.NoError(t, err)

	final := waitTerminal(t, f.svc, executionID)
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.Contains(t, *final.ErrorMessage, "no such table")
}

func TestExecuteAsync_UnknownQuery(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)

	executionID, err := f.svc.ExecuteAsync(context.Background(), 424242)
	require.Error(t, err)
	assert.Empty(t, executionID)
	assert.True(t, model.IsNotFound(err))
}

func TestExecuteAsync_PoolSaturated(t *testing.T) {
	var gated *testutil.GatedExecutor
	f := newFixture(t, workerpool.Config{MinWorkers: 1, MaxWorkers: 1, Backlog: 1},
		func(inner executor.Executor) executor.Executor {
			gated = testutil.NewGatedExecutor(inner)
			return gated
		})

	q1 := f.register(t, "SELECT 1")
	q2 := f.register(t, "SELECT 2")
	q3 := f.register(t, "SELECT 3")

	running, err := f.svc.ExecuteAsync(context.Background(), q1)
	require.NoError(t, err)
	queued, err := f.svc.ExecuteAsync(context.Background(), q2)
	require.NoError(t, err)

	rejected, err := f.svc.ExecuteAsync(context.Background(), q3)
	require.Error(t, err)
	assert.Empty(t, rejected)
	assert.True(t, model.IsPoolSaturated(err))

	gated.Release()
	assert.Equal(t, model.StatusCompleted, waitTerminal(t, f.svc, running).Status)
	assert.Equal(t, model.StatusCompleted, waitTerminal(t, f.svc, queued).Status)

	// Capacity frees up once the backlog drains.
	retry, err := f.svc.ExecuteAsync(context.Background(), q3)
	require.NoError(t, err)
	final := waitTerminal(t, f.svc, retry)
	assert.Equal(t, model.Result{{int64(3)}}, final.Result)
}

func TestGetAsyncStatus_NeverIssued(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)

	_, err := f.svc.GetAsyncStatus("exec-999")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestCreateQuery_Blank(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)

	_, err := f.svc.CreateQuery(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestListQueries(t *testing.T) {
	f := newFixture(t, workerpool.DefaultConfig(), nil)
	f.register(t, "SELECT 1")
	f.register(t, "DROP TABLE passengers")

	queries, err := f.svc.ListQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "DROP TABLE passengers", queries[1].Text)
}

func TestServices_HaveIsolatedState(t *testing.T) {
	a := newFixture(t, workerpool.DefaultConfig(), nil)
	b := newFixture(t, workerpool.DefaultConfig(), nil)

	id := a.register(t, "SELECT 1")
	_, err := a.svc.ExecuteSync(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 1, a.svc.CachedResults())
	assert.Equal(t, 0, b.svc.CachedResults())
}

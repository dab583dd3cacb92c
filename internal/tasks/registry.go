// Package tasks tracks async query executions and drives their lifecycle:
//
//	PENDING --(job starts)--> RUNNING
//	RUNNING --(run succeeds)--> COMPLETED(result)
//	RUNNING --(run fails)-----> FAILED(message)
//
// Each execution id has exactly one background job, which performs both
// transitions; no retries. Entries are never removed once their id has been
// handed to a caller, so the registry grows for the life of the process.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/queryexec/internal/metrics"
	"github.com/roach88/queryexec/internal/model"
)

// RunFunc executes a query synchronously. The registry calls it from the
// background job.
type RunFunc func(ctx context.Context, queryID int64) (model.Result, error)

// Scheduler runs a job in the background. Submit must not block on the job.
type Scheduler interface {
	Submit(task func()) error
}

// IDGenerator mints execution identifiers. Implementations must never
// return the same id twice.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 execution ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Registry stores async executions and schedules their jobs.
// Safe for concurrent use without external locking.
type Registry struct {
	executions sync.Map // string -> model.Execution

	scheduler Scheduler
	run       RunFunc
	ids       IDGenerator
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator overrides the default UUIDv7 generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) { r.ids = g }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry whose jobs call run on scheduler.
func NewRegistry(scheduler Scheduler, run RunFunc, opts ...Option) *Registry {
	r := &Registry{
		scheduler: scheduler,
		run:       run,
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit registers a PENDING execution for queryID, schedules its job and
// returns the execution id without waiting for the job.
//
// If the scheduler rejects the job the slot is discarded and a
// POOL_SATURATED error is returned; the id is never issued.
func (r *Registry) Submit(queryID int64) (string, error) {
	id := r.ids.Generate()
	if _, dup := r.executions.LoadOrStore(id, model.Pending(id, queryID)); dup {
		return "", fmt.Errorf("execution id %q generated twice", id)
	}

	if err := r.scheduler.Submit(func() { r.execute(id, queryID) }); err != nil {
		r.executions.Delete(id)
		metrics.AsyncSubmissions.WithLabelValues("saturated").Inc()
		r.logger.Warn("async execution rejected", "query_id", queryID, "error", err)
		return "", model.NewPoolSaturated(err)
	}

	metrics.AsyncSubmissions.WithLabelValues("accepted").Inc()
	r.logger.Info("async execution submitted", "execution_id", id, "query_id", queryID)
	return id, nil
}

// GetStatus returns a snapshot of the execution, or NOT_FOUND if id was
// never issued by this registry.
func (r *Registry) GetStatus(id string) (model.Execution, error) {
	v, ok := r.executions.Load(id)
	if !ok {
		return model.Execution{}, model.NewExecutionNotFound(id)
	}
	return v.(model.Execution), nil
}

// Len returns the number of executions held.
func (r *Registry) Len() int {
	n := 0
	r.executions.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// execute is the background job for one execution id.
func (r *Registry) execute(id string, queryID int64) {
	current, _ := r.GetStatus(id)
	current = current.Running()
	r.executions.Store(id, current)

	result, err := r.runSafely(queryID)
	if err != nil {
		r.executions.Store(id, current.Failed(err.Error()))
		metrics.AsyncFinished.WithLabelValues(string(model.StatusFailed)).Inc()
		r.logger.Error("async execution failed", "execution_id", id, "query_id", queryID, "error", err)
		return
	}

	r.executions.Store(id, current.Completed(result))
	metrics.AsyncFinished.WithLabelValues(string(model.StatusCompleted)).Inc()
	r.logger.Info("async execution completed", "execution_id", id, "query_id", queryID, "rows", len(result))
}

// runSafely turns a panic in run into an error so the execution still
// reaches a terminal state.
func (r *Registry) runSafely(queryID int64) (result model.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = errors.New(fmt.Sprint("async execution panicked: ", p))
		}
	}()
	return r.run(context.Background(), queryID)
}

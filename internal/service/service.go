// Package service is the execution façade: the only entry point the
// presentation layer uses to register, list and execute queries.
//
// Synchronous execution runs on the caller's goroutine:
//
//	store lookup -> validate -> cache.GetOrCompute(executor)
//
// Asynchronous execution registers a PENDING execution in the task
// registry and schedules a job on the worker pool; the job runs the same
// synchronous path and records COMPLETED or FAILED.
//
// The cache and the registry belong to one Service instance. Tests build a
// fresh Service per case to get isolated state.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/queryexec/internal/cache"
	"github.com/roach88/queryexec/internal/executor"
	"github.com/roach88/queryexec/internal/model"
	"github.com/roach88/queryexec/internal/tasks"
	"github.com/roach88/queryexec/internal/validate"
)

// QueryStore is the query persistence the façade depends on.
// GetQueryText must return a NOT_FOUND *model.Error for unknown ids.
type QueryStore interface {
	CreateQuery(ctx context.Context, text string) (int64, error)
	ListQueries(ctx context.Context) ([]model.Query, error)
	GetQueryText(ctx context.Context, id int64) (string, error)
}

// Service composes validator, executor, result cache and task registry.
type Service struct {
	store    QueryStore
	executor executor.Executor
	cache    *cache.ResultCache
	registry *tasks.Registry
	logger   *slog.Logger
}

type options struct {
	cache  *cache.ResultCache
	ids    tasks.IDGenerator
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*options)

// WithCache injects the result cache. Defaults to a fresh cache.
func WithCache(c *cache.ResultCache) Option {
	return func(o *options) { o.cache = c }
}

// WithIDGenerator injects the execution id generator. Defaults to UUIDv7.
func WithIDGenerator(g tasks.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Service. Async jobs are submitted to scheduler, normally a
// *workerpool.Pool.
func New(store QueryStore, exec executor.Executor, scheduler tasks.Scheduler, opts ...Option) *Service {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = cache.New()
	}

	s := &Service{
		store:    store,
		executor: exec,
		cache:    o.cache,
		logger:   o.logger,
	}

	regOpts := []tasks.Option{tasks.WithLogger(o.logger)}
	if o.ids != nil {
		regOpts = append(regOpts, tasks.WithIDGenerator(o.ids))
	}
	s.registry = tasks.NewRegistry(scheduler, s.ExecuteSync, regOpts...)

	return s
}

// CreateQuery registers a query and returns its id. The read-only policy
// is applied at execution time, not here.
func (s *Service) CreateQuery(ctx context.Context, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &model.Error{
			Code:    model.ErrCodeValidation,
			Message: "query text cannot be blank",
			Details: map[string]string{"reason": "blank"},
		}
	}

	id, err := s.store.CreateQuery(ctx, text)
	if err != nil {
		return 0, err
	}
	s.logger.Info("query registered", "query_id", id)
	return id, nil
}

// ListQueries returns every registered query.
func (s *Service) ListQueries(ctx context.Context) ([]model.Query, error) {
	return s.store.ListQueries(ctx)
}

// ExecuteSync runs a stored query and returns its rows. Repeated calls for
// the same id return the cached result; the executor runs at most once per
// id even under concurrent first-time callers.
//
// Errors: NOT_FOUND, VALIDATION_FAILED, EXECUTION_FAILED.
func (s *Service) ExecuteSync(ctx context.Context, queryID int64) (model.Result, error) {
	text, err := s.store.GetQueryText(ctx, queryID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("executing query", "query_id", queryID, "sql", text)

	if err := validate.Validate(text); err != nil {
		s.logger.Warn("query rejected", "query_id", queryID, "error", err)
		return nil, err
	}

	// The flight's outcome is shared with every concurrent caller, so it
	// must not be cut short by the first caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	return s.cache.GetOrCompute(queryID, func() (model.Result, error) {
		return s.executor.Execute(flightCtx, text)
	})
}

// ExecuteAsync schedules a stored query and returns its execution id
// immediately. Unknown query ids fail here with NOT_FOUND; a full backlog
// fails with POOL_SATURATED. All other failures are recorded on the
// execution as FAILED.
func (s *Service) ExecuteAsync(ctx context.Context, queryID int64) (string, error) {
	if _, err := s.store.GetQueryText(ctx, queryID); err != nil {
		return "", err
	}
	return s.registry.Submit(queryID)
}

// GetAsyncStatus returns the current status of an async execution.
//
// Errors: NOT_FOUND.
func (s *Service) GetAsyncStatus(executionID string) (model.Execution, error) {
	return s.registry.GetStatus(executionID)
}

// CachedResults returns the number of cached query results.
func (s *Service) CachedResults() int {
	return s.cache.Len()
}

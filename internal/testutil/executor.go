package testutil

import (
	"context"
	"sync/atomic"

	"github.com/roach88/queryexec/internal/model"
)

// Runner matches executor.Executor without importing it.
type Runner interface {
	Execute(ctx context.Context, sqlText string) (model.Result, error)
}

// CountingExecutor records how many times the wrapped executor was invoked.
//
// Thread-safety: safe for concurrent use.
type CountingExecutor struct {
	Inner Runner
	calls atomic.Int64
}

// Execute counts the call and delegates.
func (c *CountingExecutor) Execute(ctx context.Context, sqlText string) (model.Result, error) {
	c.calls.Add(1)
	return c.Inner.Execute(ctx, sqlText)
}

// Calls returns the number of Execute calls so far.
func (c *CountingExecutor) Calls() int64 {
	return c.calls.Load()
}

// StaticExecutor returns the same result or error for every statement.
type StaticExecutor struct {
	Result model.Result
	Err    error
}

// Execute returns the configured outcome.
func (s StaticExecutor) Execute(context.Context, string) (model.Result, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}

// GatedExecutor blocks every Execute call until Release is called, which
// makes "slow query" scenarios deterministic.
//
// Started receives one value per call that has entered Execute; it is
// buffered so callers that don't read it never block.
type GatedExecutor struct {
	Inner   Runner
	Started chan struct{}
	gate    chan struct{}
}

// NewGatedExecutor wraps inner behind a closed-until-released gate.
func NewGatedExecutor(inner Runner) *GatedExecutor {
	return &GatedExecutor{
		Inner:   inner,
		Started: make(chan struct{}, 64),
		gate:    make(chan struct{}),
	}
}

// Execute waits for Release, then delegates.
func (g *GatedExecutor) Execute(ctx context.Context, sqlText string) (model.Result, error) {
	select {
	case g.Started <- struct{}{}:
	default:
	}
	<-g.gate
	return g.Inner.Execute(ctx, sqlText)
}

// Release unblocks all current and future Execute calls. Call once.
func (g *GatedExecutor) Release() {
	close(g.gate)
}

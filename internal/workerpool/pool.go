// Package workerpool runs async jobs on a bounded set of goroutines with a
// bounded backlog.
//
// Workers come from an ants pool that starts at MinWorkers and grows one
// worker at a time, up to MaxWorkers, whenever a queued job finds every
// worker busy. Once no job is outstanding the capacity is tuned back to
// MinWorkers and ants reaps the idle goroutines. At most MaxWorkers+Backlog jobs are outstanding (queued or
// running); Submit beyond that fails immediately with ErrSaturated instead
// of blocking the caller or growing the queue.
package workerpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/queryexec/internal/metrics"
)

var (
	// ErrSaturated is returned by Submit when the backlog is full.
	ErrSaturated = errors.New("worker pool saturated")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("worker pool closed")
)

// Config sizes the pool.
type Config struct {
	MinWorkers int
	MaxWorkers int
	Backlog    int
}

// DefaultConfig returns the default sizing: 5-10 workers, 100 queued jobs.
func DefaultConfig() Config {
	return Config{MinWorkers: 5, MaxWorkers: 10, Backlog: 100}
}

// Validate checks the sizing is usable.
func (c Config) Validate() error {
	if c.MinWorkers < 1 {
		return fmt.Errorf("min workers must be >= 1, got %d", c.MinWorkers)
	}
	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("max workers (%d) must be >= min workers (%d)", c.MaxWorkers, c.MinWorkers)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("backlog must be >= 0, got %d", c.Backlog)
	}
	return nil
}

// Pool is a bounded job runner. Safe for concurrent use.
type Pool struct {
	cfg      Config
	workers  *ants.Pool
	queue    chan func()
	capacity int64

	outstanding atomic.Int64
	active      atomic.Int64 // handed to ants, not yet finished

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool

	tuneMu sync.Mutex // serializes capacity changes

	dispatched chan struct{}
	logger     *slog.Logger
}

// New starts a pool with the given sizing.
func New(cfg Config, logger *slog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	workers, err := ants.NewPool(cfg.MinWorkers,
		ants.WithExpiryDuration(time.Minute),
		ants.WithPanicHandler(func(v any) {
			logger.Error("async job panic", "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	capacity := cfg.MaxWorkers + cfg.Backlog
	p := &Pool{
		cfg:        cfg,
		workers:    workers,
		queue:      make(chan func(), capacity),
		capacity:   int64(capacity),
		dispatched: make(chan struct{}),
		logger:     logger,
	}

	go p.dispatch()
	return p, nil
}

// Submit schedules task and returns without waiting for it to run.
// Returns ErrSaturated if MaxWorkers+Backlog jobs are already outstanding.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	for {
		n := p.outstanding.Load()
		if n >= p.capacity {
			return ErrSaturated
		}
		if p.outstanding.CompareAndSwap(n, n+1) {
			break
		}
	}
	metrics.PoolOutstanding.Inc()

	// Never blocks: the buffer holds every admitted job.
	p.queue <- task
	return nil
}

// dispatch hands queued jobs to ants, growing the worker count while every
// worker is busy. Submit on the ants pool blocks until a worker frees up.
func (p *Pool) dispatch() {
	defer close(p.dispatched)

	for task := range p.queue {
		p.grow()

		task := task
		p.active.Add(1)
		err := p.workers.Submit(func() {
			defer p.done()
			task()
		})
		if err != nil {
			p.done()
			p.logger.Error("failed to hand job to worker", "error", err)
		}
	}
}

func (p *Pool) done() {
	p.active.Add(-1)
	if p.outstanding.Add(-1) == 0 {
		p.shrink()
	}
	metrics.PoolOutstanding.Dec()
}

// grow adds one worker when every current worker is busy.
func (p *Pool) grow() {
	p.tuneMu.Lock()
	defer p.tuneMu.Unlock()

	if size := p.workers.Cap(); p.active.Load() >= int64(size) && size < p.cfg.MaxWorkers {
		p.workers.Tune(size + 1)
		p.logger.Debug("worker pool grown", "workers", size+1)
	}
}

// shrink returns the capacity to MinWorkers if the pool is idle.
func (p *Pool) shrink() {
	p.tuneMu.Lock()
	defer p.tuneMu.Unlock()

	if p.outstanding.Load() != 0 {
		return
	}
	if size := p.workers.Cap(); size > p.cfg.MinWorkers {
		p.workers.Tune(p.cfg.MinWorkers)
		p.logger.Debug("worker pool shrunk", "workers", p.cfg.MinWorkers)
	}
}

// Outstanding returns the number of jobs queued or running.
func (p *Pool) Outstanding() int {
	return int(p.outstanding.Load())
}

// Workers returns the current worker capacity.
func (p *Pool) Workers() int {
	return p.workers.Cap()
}

// Close stops admission, lets queued jobs start, and waits up to timeout
// for running jobs to finish. Jobs still running after timeout keep their
// goroutines; Close returns the ants timeout error.
func (p *Pool) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.dispatched

	if err := p.workers.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	p.logger.Info("worker pool stopped")
	return nil
}

// Package cache memoizes execution results per query identifier.
//
// Entries are never evicted and are keyed by query id, not by query text.
// This is only sound because query text is immutable once stored and ids
// are never reused; reusing an id for different text would return stale
// rows.
//
// Concurrent first-time callers for the same id share one computation:
// exactly one of them runs compute, the rest wait for and receive its
// outcome. Failed computations are not stored, so a later call retries.
package cache

import (
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/queryexec/internal/metrics"
	"github.com/roach88/queryexec/internal/model"
)

// ResultCache is a concurrency-safe get-or-compute store of results.
// The zero value is not usable; call New.
type ResultCache struct {
	entries sync.Map // int64 -> model.Result
	group   singleflight.Group
	size    atomic.Int64

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty cache.
func New() *ResultCache {
	return &ResultCache{}
}

// Get returns the cached result for queryID, if any.
func (c *ResultCache) Get(queryID int64) (model.Result, bool) {
	v, ok := c.entries.Load(queryID)
	if !ok {
		return nil, false
	}
	return v.(model.Result), true
}

// GetOrCompute returns the cached result for queryID, or runs compute,
// stores its result and returns it. compute runs at most once per id at a
// time; callers arriving while it runs receive the same result or error.
func (c *ResultCache) GetOrCompute(queryID int64, compute func() (model.Result, error)) (model.Result, error) {
	if result, ok := c.Get(queryID); ok {
		c.recordHit()
		return result, nil
	}

	v, err, shared := c.group.Do(strconv.FormatInt(queryID, 10), func() (any, error) {
		// A flight for this id may have completed between Get and Do.
		if result, ok := c.Get(queryID); ok {
			c.recordHit()
			return result, nil
		}

		c.misses.Add(1)
		metrics.CacheLookups.WithLabelValues("miss").Inc()

		result, err := compute()
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = model.Result{}
		}

		// Store before the flight ends so late arrivals hit the map.
		if _, loaded := c.entries.LoadOrStore(queryID, result); !loaded {
			c.size.Add(1)
		}
		return result, nil
	})

	if shared {
		metrics.CacheLookups.WithLabelValues("shared").Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(model.Result), nil
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	return int(c.size.Load())
}

// Stats returns hit and miss counts since creation. A caller that joined
// an in-flight computation is counted by neither.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) recordHit() {
	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues("hit").Inc()
}

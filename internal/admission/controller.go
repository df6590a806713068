// Package admission implements coredoc's write-rate limiting and
// query-concurrency shedding: the node-local load-protection layer that sits
// in front of Insert/Update/Delete and Find, rejecting (never queuing) work
// the node has been configured not to accept right now.
package admission

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config bounds how much write throughput and query concurrency a node
// accepts, and how big/long a single query may be. Zero values mean
// unlimited, except MaxResultSetDocs and QueryTimeout, whose zero value
// falls back to DefaultConfig's bound rather than "no limit" — an
// accidentally-unbounded result set or hung query is never the safe
// default.
type Config struct {
	// MaxWritesPerSecond caps Insert/Update/Delete throughput. 0 means
	// unlimited.
	MaxWritesPerSecond int

	// MaxConcurrentQueries caps how many Find calls may run at once. 0
	// means unlimited.
	MaxConcurrentQueries int64

	// MaxResultSetDocs caps how many documents a single Find may return,
	// regardless of the caller's requested limit. 0 falls back to
	// DefaultConfig's bound.
	MaxResultSetDocs int

	// QueryTimeout bounds how long a single Find may run. 0 falls back to
	// DefaultConfig's bound.
	QueryTimeout time.Duration
}

// DefaultConfig matches the conservative defaults a freshly-configured node
// ships with: unlimited write throughput, a 100-query concurrency ceiling,
// a 10,000-document result cap, and a 30 second query timeout.
func DefaultConfig() Config {
	return Config{
		MaxWritesPerSecond:   0,
		MaxConcurrentQueries: 100,
		MaxResultSetDocs:     10000,
		QueryTimeout:         30 * time.Second,
	}
}

// Controller is the admission gate an Engine consults on every write and
// read. It is safe for concurrent use.
type Controller struct {
	writeLimiter *rate.Limiter      // nil => unlimited
	querySem     *semaphore.Weighted // nil => unlimited
	maxResultSetDocs int
	queryTimeout     time.Duration
}

// New builds a Controller from cfg, substituting DefaultConfig's bounds for
// any zero MaxResultSetDocs/QueryTimeout.
func New(cfg Config) *Controller {
	c := &Controller{
		maxResultSetDocs: cfg.MaxResultSetDocs,
		queryTimeout:     cfg.QueryTimeout,
	}
	if cfg.MaxWritesPerSecond > 0 {
		// Burst equals one second's worth of writes, matching the token
		// bucket's own replenishment rate.
		c.writeLimiter = rate.NewLimiter(rate.Limit(cfg.MaxWritesPerSecond), cfg.MaxWritesPerSecond)
	}
	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}
	if c.maxResultSetDocs <= 0 {
		c.maxResultSetDocs = DefaultConfig().MaxResultSetDocs
	}
	if c.queryTimeout <= 0 {
		c.queryTimeout = DefaultConfig().QueryTimeout
	}
	return c
}

// AllowWrite reports whether a write may proceed right now. It never
// blocks: a write that cannot be admitted is rejected outright, not queued,
// matching the "no silent degradation" rule load shedding is for.
func (c *Controller) AllowWrite() bool {
	if c.writeLimiter == nil {
		return true
	}
	return c.writeLimiter.Allow()
}

// AcquireQuery attempts to reserve one of the node's concurrent-query slots.
// On success it returns a release func the caller must call exactly once
// when the query finishes; on failure it returns ok=false and a nil
// release.
func (c *Controller) AcquireQuery() (release func(), ok bool) {
	if c.querySem == nil {
		return func() {}, true
	}
	if !c.querySem.TryAcquire(1) {
		return nil, false
	}
	return func() { c.querySem.Release(1) }, true
}

// ClampLimit lowers an explicit limit to MaxResultSetDocs when the caller
// asked for more, and leaves it alone otherwise. A nil limit (no limit
// requested) is returned unchanged: fabricating one here would quietly
// defeat the planner's unbounded-query refusal instead of enforcing a
// result-set cap on a query that was already going to run bounded.
func (c *Controller) ClampLimit(limit *int) *int {
	if limit == nil || *limit <= c.maxResultSetDocs {
		return limit
	}
	bound := c.maxResultSetDocs
	return &bound
}

// QueryContext derives a context from parent bounded by the configured
// query timeout. The caller must call the returned cancel func.
func (c *Controller) QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.queryTimeout)
}

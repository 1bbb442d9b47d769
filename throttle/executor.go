/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/acronis/go-crptapi/log"
)

// DefaultExhaustedLogInterval is the minimal interval between two "permits exhausted" log messages of one Executor.
const DefaultExhaustedLogInterval = time.Second

// WorkFunc is a unit of work gated by Executor.
type WorkFunc func(ctx context.Context) error

// ExecutorOpts represents options for Executor.
type ExecutorOpts struct {
	// Name identifies the executor in logs and metrics (e.g. the remote API endpoint).
	Name string

	// WaitTimeout limits how long Execute may wait for a permit. Zero means waiting is bounded only by the context.
	WaitTimeout time.Duration

	// Logger is used for logging. Disabled logger is used by default.
	Logger log.FieldLogger

	// Collector is a metrics collector. Metrics are not collected if it's nil.
	Collector MetricsCollector

	// ExhaustedLogInterval is the minimal interval between "permits exhausted" messages.
	// By default, DefaultExhaustedLogInterval const is used.
	ExhaustedLogInterval time.Duration
}

// Executor runs units of work under the permits of a PermitPool.
// Every unit of work takes one permit before it starts and returns it right after it finishes,
// no matter whether it succeeded, failed or panicked.
type Executor struct {
	pool        *PermitPool
	name        string
	waitTimeout time.Duration
	logger      log.FieldLogger
	collector   MetricsCollector

	exhaustedLog *rate.Sometimes
	inFlight     atomic.Int32
}

// NewExecutor creates a new Executor bound to the pool.
func NewExecutor(pool *PermitPool) *Executor {
	return NewExecutorWithOpts(pool, ExecutorOpts{})
}

// NewExecutorWithOpts creates a new Executor bound to the pool with options.
func NewExecutorWithOpts(pool *PermitPool, opts ExecutorOpts) *Executor {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.ExhaustedLogInterval == 0 {
		opts.ExhaustedLogInterval = DefaultExhaustedLogInterval
	}
	return &Executor{
		pool:         pool,
		name:         opts.Name,
		waitTimeout:  opts.WaitTimeout,
		logger:       opts.Logger,
		collector:    opts.Collector,
		exhaustedLog: &rate.Sometimes{Interval: opts.ExhaustedLogInterval},
	}
}

// Pool returns the PermitPool the executor is bound to.
func (e *Executor) Pool() *PermitPool {
	return e.pool
}

// InFlight returns the number of units of work that hold a permit right now.
func (e *Executor) InFlight() int {
	return int(e.inFlight.Load())
}

// Execute acquires a permit, runs work and releases the permit.
// The error returned by work is passed to the caller as is.
// If the permit cannot be acquired, the error matches ErrCancelled and work is not called.
func (e *Executor) Execute(ctx context.Context, work WorkFunc) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	return work(ctx)
}

// Do is like Executor.Execute but for units of work that return a result.
func Do[T any](ctx context.Context, e *Executor, work func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := e.Execute(ctx, func(ctx context.Context) error {
		var workErr error
		res, workErr = work(ctx)
		return workErr
	})
	return res, err
}

func (e *Executor) acquire(ctx context.Context) error {
	startTime := time.Now()

	if !e.pool.TryAcquire() {
		e.exhaustedLog.Do(func() {
			e.logger.Debug("throttle permits exhausted, waiting for release or window reset",
				log.String("executor", e.name),
				log.Int("capacity", e.pool.Capacity()),
				log.Duration("window", e.pool.Window()),
				log.Int("waiting", e.pool.Waiting()),
			)
		})

		waitCtx := ctx
		if e.waitTimeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, e.waitTimeout)
			defer cancel()
		}

		if err := e.pool.Acquire(waitCtx); err != nil {
			if e.collector != nil {
				e.collector.IncAcquireCancellations(e.name)
			}
			e.logger.Warn("waiting for throttle permit failed",
				log.String("executor", e.name), log.Duration("waited", time.Since(startTime)), log.Error(err))
			return err
		}
	}

	e.inFlight.Inc()
	if e.collector != nil {
		e.collector.ObserveAcquire(e.name, time.Since(startTime))
		e.collector.SetInFlight(e.name, int(e.inFlight.Load()))
	}
	return nil
}

func (e *Executor) release() {
	e.pool.Release()
	e.inFlight.Dec()
	if e.collector != nil {
		e.collector.SetInFlight(e.name, int(e.inFlight.Load()))
	}
}

/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ErrConfigurationInvalid is returned when the pool is constructed with non-positive capacity or window.
var ErrConfigurationInvalid = errors.New("invalid throttle configuration")

// ErrCancelled is returned when waiting for a permit is interrupted by the context.
var ErrCancelled = errors.New("waiting for permit cancelled")

// PermitPool is a fixed-window pool of permits.
// At most Capacity permits may be outstanding at once, and every Window the pool
// is reset to full capacity regardless of how many permits are still held.
type PermitPool struct {
	capacity int
	window   time.Duration

	mu        sync.Mutex
	available int
	waiters   list.List // of chan struct{}

	onReplenish func()

	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// PermitPoolOpts represents options for PermitPool.
type PermitPoolOpts struct {
	// OnReplenish is called (outside the pool lock) after every window reset made by the ticker.
	OnReplenish func()
}

// NewPermitPool creates a new PermitPool and starts its replenishment ticker.
// Close must be called to stop the ticker when the pool is no longer needed.
func NewPermitPool(capacity int, window time.Duration) (*PermitPool, error) {
	return NewPermitPoolWithOpts(capacity, window, PermitPoolOpts{})
}

// NewPermitPoolWithOpts creates a new PermitPool with options and starts its replenishment ticker.
func NewPermitPoolWithOpts(capacity int, window time.Duration, opts PermitPoolOpts) (*PermitPool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrConfigurationInvalid, capacity)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %s", ErrConfigurationInvalid, window)
	}
	p := &PermitPool{
		capacity:    capacity,
		window:      window,
		available:   capacity,
		onReplenish: opts.OnReplenish,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.replenishLoop()
	return p, nil
}

// MustPermitPool creates a new PermitPool and panics if the configuration is invalid.
func MustPermitPool(capacity int, window time.Duration) *PermitPool {
	p, err := NewPermitPool(capacity, window)
	if err != nil {
		panic(err)
	}
	return p
}

// Capacity returns the maximum number of permits per window.
func (p *PermitPool) Capacity() int {
	return p.capacity
}

// Window returns the replenishment period.
func (p *PermitPool) Window() time.Duration {
	return p.window
}

// Available returns the number of permits that may be acquired without waiting.
func (p *PermitPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Waiting returns the number of callers blocked in Acquire.
func (p *PermitPool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiters.Len()
}

// TryAcquire takes a permit if one is available right now.
func (p *PermitPool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.available > 0 && p.waiters.Len() == 0 {
		p.available--
		return true
	}
	return false
}

// Acquire blocks until a permit is available or ctx is done.
// On cancellation it returns an error matching both ErrCancelled and ctx.Err(), and no permit is consumed.
func (p *PermitPool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	p.mu.Lock()
	if p.available > 0 && p.waiters.Len() == 0 {
		p.available--
		p.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := p.waiters.PushBack(ready)
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		select {
		case <-ready:
			// The permit was handed over while we were being cancelled. Give it back.
			p.releaseLocked()
		default:
			p.waiters.Remove(elem)
		}
		p.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// Release returns a permit to the pool.
// The number of available permits never exceeds the capacity, so extra releases are ignored.
func (p *PermitPool) Release() {
	p.mu.Lock()
	p.releaseLocked()
	p.mu.Unlock()
}

// Replenish resets the pool to full capacity and wakes queued callers.
// It is called by the ticker every window.
func (p *PermitPool) Replenish() {
	p.mu.Lock()
	p.available = p.capacity
	p.notifyWaitersLocked()
	p.mu.Unlock()
}

// Close stops the replenishment ticker. Outstanding Acquire calls are not interrupted.
func (p *PermitPool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.stop)
	}
	<-p.done
}

func (p *PermitPool) releaseLocked() {
	if front := p.waiters.Front(); front != nil {
		// available is 0 whenever somebody waits, so the permit goes straight to the first waiter.
		p.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	if p.available < p.capacity {
		p.available++
	}
}

func (p *PermitPool) notifyWaitersLocked() {
	for p.available > 0 {
		front := p.waiters.Front()
		if front == nil {
			return
		}
		p.available--
		p.waiters.Remove(front)
		close(front.Value.(chan struct{}))
	}
}

func (p *PermitPool) replenishLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.window)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.Replenish()
			if p.onReplenish != nil {
				p.onReplenish()
			}
		}
	}
}

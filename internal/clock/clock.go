package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidInterval = errors.New("clock interval must be positive")

// Func is the work run on each tick. The context is cancelled when the
// clock is stopped or restarted.
type Func func(ctx context.Context) error

// Clock is a cancellable repeating timer with a reentrancy guard.
// A tick that fires while the previous callback is still running is
// skipped, never queued.
type Clock struct {
	name    string
	onError func(error)

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	trigger  chan struct{}
	interval time.Duration

	busy    atomic.Bool
	skipped atomic.Int64
}

// New creates a stopped clock. onError receives callback errors and
// recovered panics; it may be nil.
func New(name string, onError func(error)) *Clock {
	return &Clock{name: name, onError: onError}
}

// Start begins invoking fn every interval. Starting a running clock
// replaces its configuration.
func (c *Clock) Start(interval time.Duration, fn Func) error {
	if interval <= 0 {
		return fmt.Errorf("%s: %w", c.name, ErrInvalidInterval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.trigger = make(chan struct{}, 1)
	c.interval = interval

	go c.run(ctx, interval, fn, c.trigger, c.done)
	return nil
}

// Restart is Stop followed by Start. No tick scheduled under the old
// configuration fires after Restart returns.
func (c *Clock) Restart(interval time.Duration, fn Func) error {
	return c.Start(interval, fn)
}

// Stop cancels pending ticks and waits for the tick loop to exit.
// A callback that is already running sees its context cancelled.
// Stopping a stopped clock is a no-op.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Clock) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.trigger = nil
	c.interval = 0
}

// Trigger requests an immediate tick. It is dropped if the clock is
// stopped, a trigger is already pending, or the callback is busy.
func (c *Clock) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trigger == nil {
		return
	}
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Running reports whether the tick loop is active
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Interval returns the current tick interval, or zero when stopped
func (c *Clock) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Busy reports whether a callback is currently running
func (c *Clock) Busy() bool {
	return c.busy.Load()
}

// Skipped returns how many ticks were dropped by the reentrancy guard
func (c *Clock) Skipped() int64 {
	return c.skipped.Load()
}

func (c *Clock) run(ctx context.Context, interval time.Duration, fn Func, trigger <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-trigger:
		}
		if ctx.Err() != nil {
			return
		}
		c.fire(ctx, fn)
	}
}

func (c *Clock) fire(ctx context.Context, fn Func) {
	if !c.busy.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		return
	}

	go func() {
		defer c.busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				c.report(fmt.Errorf("%s: panic in tick: %v", c.name, r))
			}
		}()

		if err := fn(ctx); err != nil && ctx.Err() == nil {
			c.report(fmt.Errorf("%s: %w", c.name, err))
		}
	}()
}

func (c *Clock) report(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

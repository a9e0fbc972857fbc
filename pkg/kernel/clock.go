package kernel

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Clock is the scheduler timebase. Now reports the time elapsed since the
// scheduler started.
type Clock interface {
	Now() time.Duration
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct {
	start time.Time
}

func NewClock() Clock {
	return &realClock{start: time.Now()}
}

func (c *realClock) Now() time.Duration {
	return time.Since(c.start)
}

func (c *realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type waiter struct {
	deadline time.Duration
	ch       chan struct{}
}

// ManualClock only moves when Advance is called. Sleepers are released in
// deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	waiters []waiter
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	c.mu.Lock()
	w := waiter{deadline: c.now + d, ch: make(chan struct{})}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.remove(w.ch)

		return ctx.Err()
	case <-w.ch:
		return nil
	}
}

// Advance moves the clock forward and wakes every sleeper whose deadline
// has been reached.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	sort.Slice(c.waiters, func(i, j int) bool { return c.waiters[i].deadline < c.waiters[j].deadline })

	var due []waiter
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline <= c.now {
			due = append(due, w)

			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
	c.mu.Unlock()

	for _, w := range due {
		close(w.ch)
	}
}

// Sleepers reports how many goroutines are blocked in Sleep.
func (c *ManualClock) Sleepers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}

func (c *ManualClock) remove(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w.ch == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)

			return
		}
	}
}

// DelayUntil blocks until last+period and then advances last by exactly one
// period, so jitter in the caller does not accumulate. When the deadline has
// already passed it returns immediately.
func DelayUntil(ctx context.Context, clock Clock, last *time.Duration, period time.Duration) error {
	next := *last + period
	*last = next

	return clock.Sleep(ctx, next-clock.Now())
}

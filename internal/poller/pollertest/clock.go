// Package pollertest provides deterministic clocks for driving poll loops in tests.
package pollertest

import (
	"sync"
	"time"

	"studio/internal/poller"
)

// InstantClock fires every timer immediately and records the requested delays.
type InstantClock struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
}

func NewInstantClock(start time.Time) *InstantClock {
	return &InstantClock{now: start}
}

func (c *InstantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *InstantClock) NewTimer(d time.Duration) poller.Timer {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.delays = append(c.delays, d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return &firedTimer{c: ch}
}

// Delays returns every interval the poller waited for, in order.
func (c *InstantClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

type firedTimer struct {
	c chan time.Time
}

func (t *firedTimer) C() <-chan time.Time { return t.c }

func (t *firedTimer) Stop() bool { return false }

// ManualClock only fires timers when Advance moves time past their deadline.
type ManualClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	pending map[*manualTimer]struct{}
}

func NewManualClock(start time.Time) *ManualClock {
	c := &ManualClock{now: start, pending: make(map[*manualTimer]struct{})}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTimer(d time.Duration) poller.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, deadline: c.now.Add(d), c: make(chan time.Time, 1)}
	c.pending[t] = struct{}{}
	c.cond.Broadcast()
	return t
}

// Advance moves time forward and fires every timer whose deadline passed.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for t := range c.pending {
		if !t.deadline.After(c.now) {
			delete(c.pending, t)
			t.c <- c.now
		}
	}
	c.cond.Broadcast()
}

// Pending returns the number of scheduled, unfired, unstopped timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// BlockUntil waits until exactly n timers are pending or the timeout elapses.
// It reports whether the condition was met.
func (c *ManualClock) BlockUntil(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
		case <-time.After(timeout):
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		}
	}()
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) != n {
		if time.Now().After(deadline) {
			return false
		}
		c.cond.Wait()
	}
	return true
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	c        chan time.Time
}

func (t *manualTimer) C() <-chan time.Time { return t.c }

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.pending[t]; !ok {
		return false
	}
	delete(t.clock.pending, t)
	t.clock.cond.Broadcast()
	return true
}

var (
	_ poller.Clock = (*InstantClock)(nil)
	_ poller.Clock = (*ManualClock)(nil)
)

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. AfterFunc callbacks run
// synchronously in the goroutine calling Advance, in deadline order.
// Callbacks may schedule new timers but must not call Advance.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeTimer
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	callback func()
	done     bool
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a FakeClock set to initial.
func NewFake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	if d <= 0 {
		f()
		return &fakeTimer{clock: c, done: true}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{
		clock:    c,
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, t)
	return t
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.done {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and fires every timer whose
// deadline has been reached, including timers scheduled by callbacks
// fired during this call.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		expired := c.collect(target)
		if len(expired) == 0 {
			return
		}
		for _, t := range expired {
			t.callback()
		}
	}
}

func (c *FakeClock) collect(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []*fakeTimer
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		switch {
		case w.done:
		case !w.deadline.After(target):
			w.done = true
			expired = append(expired, w)
		default:
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining

	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].deadline.Before(expired[j].deadline)
	})
	return expired
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

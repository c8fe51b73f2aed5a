package monitor

import (
	"slices"
	"sync"
	"time"
)

// Ticker is a running periodic callback.
type Ticker interface {
	// Stop cancels future calls. It does not wait for a call in progress.
	Stop()
}

// Scheduler runs periodic callbacks and tells the time.
type Scheduler interface {
	Every(period time.Duration, fn func()) Ticker
	Now() time.Time
}

// WallClock schedules on real time.
type WallClock struct{}

// Every calls fn every period on its own goroutine until stopped.
func (WallClock) Every(period time.Duration, fn func()) Ticker {
	t := &wallTicker{stop: make(chan struct{})}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

// Now returns the current UTC time.
func (WallClock) Now() time.Time {
	return time.Now().UTC()
}

type wallTicker struct {
	once sync.Once
	stop chan struct{}
}

func (t *wallTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// ManualClock is a Scheduler driven by Advance. Callbacks run on the
// goroutine calling Advance.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManualClock returns a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

type manualTicker struct {
	clock   *ManualClock
	period  time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

// Every registers fn to fire each time simulated time crosses a multiple of
// period from now.
func (c *ManualClock) Every(period time.Duration, fn func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{clock: c, period: period, next: c.now.Add(period), fn: fn}
	c.tickers = append(c.tickers, t)
	return t
}

// Now returns the simulated time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves simulated time forward by d, firing due callbacks in time
// order. Callbacks due at the same instant fire in registration order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var due *manualTicker
		for _, t := range c.tickers {
			if t.stopped || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			break
		}
		c.now = due.next
		due.next = due.next.Add(due.period)
		c.mu.Unlock()
		due.fn()
		c.mu.Lock()
	}
	c.now = target
	c.tickers = slices.DeleteFunc(c.tickers, func(t *manualTicker) bool { return t.stopped })
	c.mu.Unlock()
}

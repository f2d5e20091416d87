// Package timeutil abstracts wall-clock time so tickers can be driven by tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the current time and tickers
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// RealClock uses the time package
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time   { return t.ticker.C }
func (t *realTicker) Stop()                 { t.ticker.Stop() }
func (t *realTicker) Reset(d time.Duration) { t.ticker.Reset(d) }

// MockClock only moves when Advance or Set is called
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*MockTicker
}

// NewMockClock returns a MockClock starting at t
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps to t and fires due tickers
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	tickers := append([]*MockTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, tk := range tickers {
		tk.checkAndFire(t)
	}
}

// Advance moves time forward by d and fires due tickers once each
func (c *MockClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// NewTicker returns a ticker fired by Advance
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// ActiveTickers counts tickers that have not been stopped
func (c *MockClock) ActiveTickers() int {
	c.mu.Lock()
	tickers := append([]*MockTicker(nil), c.tickers...)
	c.mu.Unlock()
	n := 0
	for _, t := range tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// MockTicker is the Ticker handed out by MockClock
type MockTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *MockTicker) C() <-chan time.Time { return t.ch }

func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *MockTicker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = t.next.Add(d - t.interval)
	t.interval = d
	t.stopped = false
}

// Interval returns the tick period
func (t *MockTicker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *MockTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *MockTicker) checkAndFire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || now.Before(t.next) {
		return
	}
	t.next = now.Add(t.interval)
	// drop the tick if the reader is behind, like time.Ticker
	select {
	case t.ch <- now:
	default:
	}
}

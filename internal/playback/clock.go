package playback

import (
	"sync"
	"time"
)

// Ticker is a cancellable repeating timer
type Ticker interface {
	Stop()
}

// Clock creates repeating timers
type Clock interface {
	// Every calls fn every d until the returned Ticker is stopped
	Every(d time.Duration, fn func()) Ticker
}

// SystemClock runs timers on time.Ticker
type SystemClock struct{}

type systemTicker struct {
	done chan struct{}
	once sync.Once
}

// Every starts a goroutine that calls fn on each tick
func (SystemClock) Every(d time.Duration, fn func()) Ticker {
	st := &systemTicker{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-st.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return st
}

func (st *systemTicker) Stop() {
	st.once.Do(func() { close(st.done) })
}

// ManualClock is a Clock driven by explicit Fire calls
type ManualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	clock   *ManualClock
	period  time.Duration
	fn      func()
	stopped bool
}

// NewManualClock returns a clock whose timers fire only through Fire
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Every registers a timer that fires on the next Fire calls
func (c *ManualClock) Every(d time.Duration, fn func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{clock: c, period: d, fn: fn}
	c.tickers = append(c.tickers, t)
	return t
}

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// Fire triggers every active timer once
func (c *ManualClock) Fire() {
	for _, t := range c.active() {
		t.fn()
	}
}

// FireStale triggers timers that were already stopped, the way a tick
// that raced with Stop would arrive
func (c *ManualClock) FireStale() {
	c.mu.Lock()
	var stale []*manualTicker
	for _, t := range c.tickers {
		if t.stopped {
			stale = append(stale, t)
		}
	}
	c.mu.Unlock()
	for _, t := range stale {
		t.fn()
	}
}

// Active returns the number of timers not yet stopped
func (c *ManualClock) Active() int {
	return len(c.active())
}

// Periods returns the periods of the active timers
func (c *ManualClock) Periods() []time.Duration {
	var out []time.Duration
	for _, t := range c.active() {
		out = append(out, t.period)
	}
	return out
}

func (c *ManualClock) active() []*manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*manualTicker
	for _, t := range c.tickers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

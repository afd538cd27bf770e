// Package ledtest provides a manually driven led.Ticker.
package ledtest

import (
	"sync"
	"time"

	"github.com/mlsorensen/goblink/pkg/led"
)

// Ticker fires only when Tick is called. One Ticker can back several
// start/stop cycles of a controller.
type Ticker struct {
	mu        sync.Mutex
	c         chan time.Time
	intervals []time.Duration
	resets    []time.Duration
	stopped   bool
}

var _ led.Ticker = (*Ticker)(nil)

func New() *Ticker {
	return &Ticker{c: make(chan time.Time)}
}

// Func returns a led.TickerFunc handing out this Ticker.
func (t *Ticker) Func() led.TickerFunc {
	return func(d time.Duration) led.Ticker {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.intervals = append(t.intervals, d)
		t.stopped = false
		return t
	}
}

func (t *Ticker) C() <-chan time.Time { return t.c }

func (t *Ticker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets = append(t.resets, d)
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Tick delivers one tick, waiting up to a second for the receiver. It
// reports whether the tick was taken.
func (t *Ticker) Tick() bool {
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

// Intervals lists the period of every start, in order.
func (t *Ticker) Intervals() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.intervals...)
}

// Resets lists every Reset period, in order.
func (t *Ticker) Resets() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.resets...)
}

func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

package led

import "time"

// Ticker is the subset of time.Ticker the controller depends on.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// TickerFunc starts a new Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time   { return t.t.C }
func (t *timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t *timeTicker) Stop()                 { t.t.Stop() }

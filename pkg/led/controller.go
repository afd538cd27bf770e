// Package led drives an LED over a goblink.Link: switching it on and off and
// blinking it on a timer.
package led

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mlsorensen/goblink"
)

const (
	MinInterval     = 50 * time.Millisecond
	MaxInterval     = 1200 * time.Millisecond
	DefaultInterval = 800 * time.Millisecond

	MinCount     = 1
	MaxCount     = 20
	DefaultCount = 5
)

var (
	ErrIntervalRange = fmt.Errorf("blink interval must be between %s and %s", MinInterval, MaxInterval)
	ErrCountRange    = fmt.Errorf("blink count must be between %d and %d", MinCount, MaxCount)
	ErrBlinking      = errors.New("already blinking")
)

// Sender is anything that can deliver a command byte, usually a goblink.Link.
type Sender interface {
	Send(cmd goblink.Command) error
}

// State is a snapshot of the controller.
type State struct {
	On       bool
	Blinking bool
	Interval time.Duration
	Count    int
}

// Status is the label shown for the LED: "ON" or "OFF".
func (s State) Status() string {
	if s.On {
		return goblink.CommandOn.String()
	}
	return goblink.CommandOff.String()
}

// Controller owns the LED flag and the blink timer. All writes to the link
// go through it, so UI handlers and timer ticks never interleave.
type Controller struct {
	mu        sync.Mutex
	link      Sender
	newTicker TickerFunc
	onChange  func(State)

	on       bool
	blinking bool
	interval time.Duration
	count    int

	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the initial blink interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if err := validateInterval(d); err != nil {
			log.Warnf("ignoring blink interval %s: %v", d, err)
			return
		}
		c.interval = d
	}
}

// WithCount sets the initial blink count.
func WithCount(n int) Option {
	return func(c *Controller) {
		if err := validateCount(n); err != nil {
			log.Warnf("ignoring blink count %d: %v", n, err)
			return
		}
		c.count = n
	}
}

// WithTicker replaces the timer implementation, mostly for tests.
func WithTicker(f TickerFunc) Option {
	return func(c *Controller) { c.newTicker = f }
}

// WithOnChange registers fn as the state observer.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// New creates a Controller writing to link. The LED is assumed off.
func New(link Sender, opts ...Option) *Controller {
	c := &Controller{
		link:      link,
		newTicker: NewTicker,
		interval:  DefaultInterval,
		count:     DefaultCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange replaces the state observer. fn is called after every change,
// outside the controller lock, from whichever goroutine made the change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// TurnOn writes CommandOn. It is ignored while blinking.
func (c *Controller) TurnOn() error {
	return c.update(func() (bool, error) {
		if c.blinking {
			log.Debugln("turn on ignored while blinking")
			return false, nil
		}
		return true, c.apply(goblink.CommandOn)
	})
}

// TurnOff writes CommandOff whether or not the LED is blinking. A running
// blink timer keeps running.
func (c *Controller) TurnOff() error {
	return c.update(func() (bool, error) {
		return true, c.apply(goblink.CommandOff)
	})
}

// SetBlink starts or stops blinking.
func (c *Controller) SetBlink(enabled bool) error {
	if enabled {
		return c.StartBlink()
	}
	return c.StopBlink()
}

// StartBlink starts toggling the LED every interval. Calling it while
// already blinking does nothing.
func (c *Controller) StartBlink() error {
	c.mu.Lock()
	if c.blinking {
		c.mu.Unlock()
		return nil
	}
	t, stop, done := c.startLocked()
	st, fn := c.snapshot(), c.onChange
	c.mu.Unlock()

	log.Debugf("blinking every %s", st.Interval)
	go c.run(t, stop, done)
	notify(fn, st)
	return nil
}

// StopBlink stops the timer and switches the LED off. The off command is
// always the last byte written.
func (c *Controller) StopBlink() error {
	if c.halt() {
		log.Debugln("blinking stopped")
	}
	return c.TurnOff()
}

// SetInterval changes the blink interval. A running timer picks up the new
// period without changing the on/off phase.
func (c *Controller) SetInterval(d time.Duration) error {
	if err := validateInterval(d); err != nil {
		return err
	}
	return c.update(func() (bool, error) {
		if d == c.interval {
			return false, nil
		}
		c.interval = d
		if c.ticker != nil {
			c.ticker.Reset(d)
		}
		return true, nil
	})
}

// SetCount changes the number of blink cycles used by Blink.
func (c *Controller) SetCount(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	return c.update(func() (bool, error) {
		if n == c.count {
			return false, nil
		}
		c.count = n
		return true, nil
	})
}

// Blink toggles the LED for the given number of on/off cycles at the
// current interval and blocks until done. The LED is left off. Cancelling
// ctx stops early and returns ctx.Err().
func (c *Controller) Blink(ctx context.Context, cycles int) error {
	if cycles < 1 {
		return fmt.Errorf("blink cycles %d: %w", cycles, ErrCountRange)
	}

	c.mu.Lock()
	if c.blinking {
		c.mu.Unlock()
		return ErrBlinking
	}
	t, stop, done := c.startLocked()
	st, fn := c.snapshot(), c.onChange
	c.mu.Unlock()
	notify(fn, st)

	var err error
loop:
	for n := 0; n < 2*cycles; {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case <-stop:
			break loop
		case <-t.C():
			if tickErr := c.tick(); tickErr != nil {
				err = tickErr
				break loop
			}
			n++
		}
	}
	close(done)
	c.halt()

	if c.State().On {
		if offErr := c.TurnOff(); err == nil {
			err = offErr
		}
	}
	return err
}

// Close stops the blink timer without writing anything.
func (c *Controller) Close() {
	c.halt()
}

func (c *Controller) startLocked() (Ticker, chan struct{}, chan struct{}) {
	c.ticker = c.newTicker(c.interval)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.blinking = true
	return c.ticker, c.stop, c.done
}

func (c *Controller) run(t Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if err := c.tick(); err != nil {
				log.Errorf("blink write failed: %v", err)
			}
		}
	}
}

// tick inverts the LED. It does nothing once blinking has been halted.
func (c *Controller) tick() error {
	return c.update(func() (bool, error) {
		if !c.blinking {
			return false, nil
		}
		next := goblink.CommandOn
		if c.on {
			next = goblink.CommandOff
		}
		return true, c.apply(next)
	})
}

// halt stops the timer and waits for its goroutine. It reports whether a
// timer was running.
func (c *Controller) halt() bool {
	c.mu.Lock()
	if !c.blinking {
		c.mu.Unlock()
		return false
	}
	c.blinking = false
	c.ticker.Stop()
	close(c.stop)
	done := c.done
	c.ticker, c.stop, c.done = nil, nil, nil
	st, fn := c.snapshot(), c.onChange
	c.mu.Unlock()

	<-done
	notify(fn, st)
	return true
}

// update runs fn under the lock and notifies the observer when fn reports
// a change without error.
func (c *Controller) update(fn func() (bool, error)) error {
	c.mu.Lock()
	changed, err := fn()
	st, obs := c.snapshot(), c.onChange
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		notify(obs, st)
	}
	return nil
}

// apply writes cmd and records the LED state. Must hold c.mu.
func (c *Controller) apply(cmd goblink.Command) error {
	if err := c.link.Send(cmd); err != nil {
		return fmt.Errorf("sending %s: %w", cmd, err)
	}
	c.on = cmd == goblink.CommandOn
	log.Debugf("LED %s", cmd)
	return nil
}

func (c *Controller) snapshot() State {
	return State{
		On:       c.on,
		Blinking: c.blinking,
		Interval: c.interval,
		Count:    c.count,
	}
}

func notify(fn func(State), st State) {
	if fn != nil {
		fn(st)
	}
}

func validateInterval(d time.Duration) error {
	if d < MinInterval || d > MaxInterval {
		return fmt.Errorf("interval %s: %w", d, ErrIntervalRange)
	}
	return nil
}

func validateCount(n int) error {
	if n < MinCount || n > MaxCount {
		return fmt.Errorf("count %d: %w", n, ErrCountRange)
	}
	return nil
}

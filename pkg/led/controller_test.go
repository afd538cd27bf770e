package led_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsorensen/goblink"
	"github.com/mlsorensen/goblink/pkg/led"
	"github.com/mlsorensen/goblink/pkg/led/ledtest"
	"github.com/mlsorensen/goblink/pkg/links/mock"
)

type env struct {
	t      *testing.T
	link   *mock.Link
	ticker *ledtest.Ticker
	ctrl   *led.Controller

	mu     sync.Mutex
	states []led.State
}

func newEnv(t *testing.T, opts ...led.Option) *env {
	e := &env{
		t:      t,
		link:   mock.New(nil),
		ticker: ledtest.New(),
	}
	require.NoError(t, e.link.Connect(context.Background()))
	opts = append([]led.Option{
		led.WithTicker(e.ticker.Func()),
		led.WithOnChange(e.record),
	}, opts...)
	e.ctrl = led.New(e.link, opts...)
	t.Cleanup(e.ctrl.Close)
	return e
}

func (e *env) record(st led.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, st)
}

func (e *env) lastState() led.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(e.t, e.states)
	return e.states[len(e.states)-1]
}

// tick fires the ticker and waits for the write it causes.
func (e *env) tick() {
	want := len(e.link.Commands()) + 1
	require.True(e.t, e.ticker.Tick(), "tick not received")
	require.Eventually(e.t, func() bool {
		return len(e.link.Commands()) == want
	}, time.Second, time.Millisecond)
}

func TestDefaults(t *testing.T) {
	e := newEnv(t)
	st := e.ctrl.State()
	assert.False(t, st.On)
	assert.False(t, st.Blinking)
	assert.Equal(t, 800*time.Millisecond, st.Interval)
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, "OFF", st.Status())
}

func TestOptionsOutOfRangeIgnored(t *testing.T) {
	e := newEnv(t, led.WithInterval(10*time.Millisecond), led.WithCount(99))
	st := e.ctrl.State()
	assert.Equal(t, led.DefaultInterval, st.Interval)
	assert.Equal(t, led.DefaultCount, st.Count)

	e = newEnv(t, led.WithInterval(300*time.Millisecond), led.WithCount(12))
	st = e.ctrl.State()
	assert.Equal(t, 300*time.Millisecond, st.Interval)
	assert.Equal(t, 12, st.Count)
}

func TestTurnOnOff(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.ctrl.TurnOn())
	assert.Equal(t, "ON", e.lastState().Status())
	require.NoError(t, e.ctrl.TurnOff())
	assert.Equal(t, "OFF", e.lastState().Status())
	require.NoError(t, e.ctrl.TurnOff())

	assert.Equal(t, []byte("oxx"), e.link.Bytes())
}

func TestTurnOnIgnoredWhileBlinking(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StartBlink())

	require.NoError(t, e.ctrl.TurnOn())
	assert.Empty(t, e.link.Commands())
	assert.False(t, e.ctrl.State().On)
}

func TestTurnOffWhileBlinking(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StartBlink())
	e.tick()
	require.True(t, e.ctrl.State().On)

	require.NoError(t, e.ctrl.TurnOff())
	st := e.ctrl.State()
	assert.False(t, st.On)
	assert.True(t, st.Blinking, "timer keeps running")

	e.tick()
	assert.Equal(t, []byte("oxo"), e.link.Bytes())
}

func TestBlinkAlternates(t *testing.T) {
	e := newEnv(t, led.WithInterval(250*time.Millisecond))
	require.NoError(t, e.ctrl.SetBlink(true))
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, e.ticker.Intervals())
	assert.True(t, e.lastState().Blinking)

	for i := 0; i < 4; i++ {
		e.tick()
	}
	assert.Equal(t, []byte("oxox"), e.link.Bytes())

	e.tick()
	require.NoError(t, e.ctrl.SetBlink(false))
	assert.True(t, e.ticker.Stopped())
	assert.Equal(t, []byte("oxoxox"), e.link.Bytes())

	st := e.lastState()
	assert.False(t, st.On)
	assert.False(t, st.Blinking)
}

func TestStartBlinkTwice(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StartBlink())
	require.NoError(t, e.ctrl.StartBlink())
	assert.Len(t, e.ticker.Intervals(), 1)
}

func TestStopBlinkWhenIdleWritesOff(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StopBlink())
	assert.Equal(t, []byte("x"), e.link.Bytes())
}

func TestSetIntervalKeepsPhase(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StartBlink())
	e.tick()
	require.True(t, e.ctrl.State().On)

	require.NoError(t, e.ctrl.SetInterval(100*time.Millisecond))
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, e.ticker.Resets())
	assert.Len(t, e.ticker.Intervals(), 1, "timer is not restarted")
	assert.True(t, e.ctrl.State().On)

	e.tick()
	assert.Equal(t, []byte("ox"), e.link.Bytes())
}

func TestSetIntervalWhileIdle(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.SetInterval(1200*time.Millisecond))
	assert.Empty(t, e.ticker.Resets())
	assert.Empty(t, e.link.Commands())

	require.NoError(t, e.ctrl.StartBlink())
	assert.Equal(t, []time.Duration{1200 * time.Millisecond}, e.ticker.Intervals())
}

func TestSetIntervalRange(t *testing.T) {
	e := newEnv(t)
	require.ErrorIs(t, e.ctrl.SetInterval(49*time.Millisecond), led.ErrIntervalRange)
	require.ErrorIs(t, e.ctrl.SetInterval(1201*time.Millisecond), led.ErrIntervalRange)
	require.NoError(t, e.ctrl.SetInterval(50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, e.ctrl.State().Interval)
}

func TestSetCount(t *testing.T) {
	e := newEnv(t)
	require.ErrorIs(t, e.ctrl.SetCount(0), led.ErrCountRange)
	require.ErrorIs(t, e.ctrl.SetCount(21), led.ErrCountRange)
	require.NoError(t, e.ctrl.SetCount(20))
	assert.Equal(t, 20, e.lastState().Count)
	assert.Empty(t, e.link.Commands(), "count never writes")
}

func TestWriteFailureKeepsState(t *testing.T) {
	e := newEnv(t)
	boom := errors.New("unplugged")
	e.link.FailNext(boom)

	err := e.ctrl.TurnOn()
	require.ErrorIs(t, err, boom)
	assert.False(t, e.ctrl.State().On)
	assert.Empty(t, e.link.Commands())
}

func TestBlinkCycles(t *testing.T) {
	e := newEnv(t)
	done := make(chan error, 1)
	go func() { done <- e.ctrl.Blink(context.Background(), 2) }()

	for i := 0; i < 4; i++ {
		e.tick()
	}
	require.NoError(t, <-done)
	assert.Equal(t, []byte("oxox"), e.link.Bytes())

	st := e.ctrl.State()
	assert.False(t, st.On)
	assert.False(t, st.Blinking)
	assert.True(t, e.ticker.Stopped())
}

func TestBlinkCancelTurnsOff(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.ctrl.Blink(ctx, 5) }()

	e.tick()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []byte("ox"), e.link.Bytes())
	assert.False(t, e.ctrl.State().On)
}

func TestBlinkRejectsWhileBlinking(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StartBlink())
	require.ErrorIs(t, e.ctrl.Blink(context.Background(), 1), led.ErrBlinking)
	require.ErrorIs(t, e.ctrl.Blink(context.Background(), 0), led.ErrCountRange)
}

func TestCloseDoesNotWrite(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.StartBlink())
	e.ctrl.Close()
	assert.False(t, e.ctrl.State().Blinking)
	assert.Empty(t, e.link.Commands())
}

func TestRealTicker(t *testing.T) {
	link := mock.New(nil)
	require.NoError(t, link.Connect(context.Background()))
	ctrl := led.New(link, led.WithInterval(led.MinInterval))
	require.NoError(t, ctrl.StartBlink())

	require.Eventually(t, func() bool {
		return len(link.Commands()) >= 3
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ctrl.StopBlink())

	got := link.Bytes()
	require.Equal(t, byte(goblink.CommandOff), got[len(got)-1])
	for i := 0; i+1 < len(got)-1; i++ {
		assert.NotEqual(t, got[i], got[i+1], "ticks alternate")
	}
}

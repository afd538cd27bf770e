// Package ui is the Fyne front-end for an led.Controller.
package ui

import (
	"fmt"
	"image/color"
	"strconv"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	log "github.com/sirupsen/logrus"

	"github.com/mlsorensen/goblink/pkg/led"
)

var (
	colorOn  = color.NRGBA{R: 0x2e, G: 0x9d, B: 0x32, A: 0xff}
	colorOff = color.NRGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
)

// ConfirmFunc asks a yes/no question and reports the answer to callback.
type ConfirmFunc func(title, message string, callback func(bool))

// Window binds the widgets of the blink window to a controller.
type Window struct {
	win  fyne.Window
	ctrl *led.Controller

	confirm ConfirmFunc
	quit    func()

	mu         sync.Mutex // guards status text and color
	status     *canvas.Text
	onButton   *widget.Button
	offButton  *widget.Button
	blinkCheck *widget.Check
	speedLabel *widget.Label
	speed      *widget.Slider
	count      *widget.Select
	statusBar  *widget.Label
	connected  string
}

// Option configures a Window.
type Option func(*Window)

// WithConfirm replaces the exit confirmation dialog.
func WithConfirm(f ConfirmFunc) Option {
	return func(w *Window) { w.confirm = f }
}

// WithQuit replaces what happens once exit is confirmed (closing the window).
func WithQuit(f func()) Option {
	return func(w *Window) { w.quit = f }
}

// WithDeviceName shows name in the status bar.
func WithDeviceName(name string) Option {
	return func(w *Window) { w.connected = "Status: Connected to " + name }
}

// New builds the window content and menu on win and subscribes to ctrl.
func New(win fyne.Window, ctrl *led.Controller, opts ...Option) *Window {
	w := &Window{
		win:       win,
		ctrl:      ctrl,
		connected: "Status: Connected",
	}
	w.confirm = func(title, message string, callback func(bool)) {
		dialog.ShowConfirm(title, message, callback, w.win)
	}
	w.quit = win.Close
	for _, opt := range opts {
		opt(w)
	}

	st := ctrl.State()

	w.status = canvas.NewText("", colorOff)
	w.status.Alignment = fyne.TextAlignCenter
	w.status.TextSize = 20
	w.status.TextStyle = fyne.TextStyle{Bold: true}

	w.onButton = widget.NewButton("Turn On", func() { w.report(w.ctrl.TurnOn()) })
	w.offButton = widget.NewButton("Turn Off", func() { w.report(w.ctrl.TurnOff()) })
	w.blinkCheck = widget.NewCheck("Blink", func(checked bool) { w.report(w.ctrl.SetBlink(checked)) })

	w.speedLabel = widget.NewLabel(speedText(st.Interval))
	w.speed = widget.NewSlider(float64(led.MinInterval/time.Millisecond), float64(led.MaxInterval/time.Millisecond))
	w.speed.Step = 50
	w.speed.Value = float64(st.Interval / time.Millisecond)
	w.speed.OnChanged = w.speedChanged

	options := make([]string, 0, led.MaxCount)
	for i := led.MinCount; i <= led.MaxCount; i++ {
		options = append(options, strconv.Itoa(i))
	}
	w.count = widget.NewSelect(options, nil)
	w.count.SetSelected(strconv.Itoa(st.Count))
	w.count.OnChanged = w.countChanged

	w.statusBar = widget.NewLabel(w.connected)

	body := container.NewVBox(
		w.status,
		container.NewHBox(w.onButton, w.offButton, w.blinkCheck),
		w.speedLabel,
		w.speed,
		container.NewHBox(widget.NewLabel("Num Blinks:"), w.count),
	)
	win.SetContent(container.NewBorder(nil, w.statusBar, nil, nil, body))
	win.SetMainMenu(w.menu())
	win.Resize(fyne.NewSize(400, 300))

	w.render(st)
	ctrl.OnChange(func(st led.State) {
		fyne.Do(func() { w.render(st) })
	})
	return w
}

func (w *Window) menu() *fyne.MainMenu {
	save := fyne.NewMenuItem("Save", func() {
		log.Infoln("save requested; there is nothing to save")
	})
	exit := fyne.NewMenuItem("Exit", w.confirmExit)
	exit.IsQuit = true
	return fyne.NewMainMenu(fyne.NewMenu("File", save, exit))
}

func (w *Window) confirmExit() {
	w.confirm("Exit", "Are you sure you want to exit?", func(ok bool) {
		if ok {
			w.quit()
		}
	})
}

func (w *Window) speedChanged(v float64) {
	d := time.Duration(v) * time.Millisecond
	w.speedLabel.SetText(speedText(d))
	w.report(w.ctrl.SetInterval(d))
}

func (w *Window) countChanged(s string) {
	n, err := strconv.Atoi(s)
	if err != nil {
		w.report(fmt.Errorf("blink count %q: %w", s, err))
		return
	}
	w.report(w.ctrl.SetCount(n))
}

func (w *Window) render(st led.State) {
	w.mu.Lock()
	w.status.Text = "LED Status: " + st.Status()
	if st.On {
		w.status.Color = colorOn
	} else {
		w.status.Color = colorOff
	}
	w.mu.Unlock()
	w.status.Refresh()
}

// statusView returns what the LED status line currently shows.
func (w *Window) statusView() (string, color.Color) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.Text, w.status.Color
}

// report puts err in the status bar, or restores the connected message.
func (w *Window) report(err error) {
	if err == nil {
		w.statusBar.SetText(w.connected)
		return
	}
	log.Errorf("LED command failed: %v", err)
	w.statusBar.SetText("Status: " + err.Error())
}

func speedText(d time.Duration) string {
	return fmt.Sprintf("Blink Speed: %d ms", d/time.Millisecond)
}

// ShowConnectError replaces the window content with a connection error
// dialog. Dismissing the dialog calls onClosed, which normally quits the app.
func ShowConnectError(win fyne.Window, err error, onClosed func()) dialog.Dialog {
	msg := widget.NewLabel(fmt.Sprintf("Unable to connect to the device.\n%v", err))
	msg.Wrapping = fyne.TextWrapWord
	win.SetContent(widget.NewLabel("Connection Error"))
	win.Resize(fyne.NewSize(400, 200))

	d := dialog.NewCustom("Connection Error", "Quit", msg, win)
	if onClosed != nil {
		d.SetOnClosed(onClosed)
	}
	d.Show()
	return d
}

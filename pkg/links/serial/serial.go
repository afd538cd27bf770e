// Package serial implements goblink.Link over a serial port.
package serial

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/mlsorensen/goblink"
)

func init() {
	goblink.Register(goblink.KindSerial, func(device *goblink.FoundDevice, opts goblink.Options) goblink.Link {
		return New(device.Name, opts)
	})
}

var _ goblink.Link = (*Link)(nil)

// Port is the subset of serial.Port used by the link.
type Port interface {
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Opener opens a port; serial.Open by default.
type Opener func(name string, mode *serial.Mode) (Port, error)

func openPort(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Link writes command bytes to a serial port.
type Link struct {
	name string
	opts goblink.Options
	open Opener

	mu   sync.Mutex
	port Port
}

// New creates an unconnected link for the named port, e.g. "/dev/ttyUSB0".
func New(name string, opts goblink.Options) *Link {
	def := goblink.DefaultOptions()
	if opts.BaudRate <= 0 {
		opts.BaudRate = def.BaudRate
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	return &Link{name: name, opts: opts, open: openPort}
}

// WithOpener replaces the function used to open the port.
func (l *Link) WithOpener(open Opener) *Link {
	l.open = open
	return l
}

// Mode is the 8N1 line setting used for the port.
func (l *Link) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: l.opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Connect opens the port. The open is abandoned after the connect timeout
// or when ctx is done, whichever comes first; a port that opens late is
// closed in the background.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port != nil {
		return fmt.Errorf("serial port %s is already connected", l.name)
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	type result struct {
		port Port
		err  error
	}
	opened := make(chan result, 1)
	go func() {
		p, err := l.open(l.name, l.Mode())
		opened <- result{port: p, err: err}
	}()

	var r result
	select {
	case r = <-opened:
	case <-ctx.Done():
		go func() {
			if late := <-opened; late.port != nil {
				_ = late.port.Close()
			}
		}()
		return fmt.Errorf("failed to open port %s: %w", l.name, ctx.Err())
	}
	if r.err != nil {
		return fmt.Errorf("failed to open port %s: %w", l.name, r.err)
	}

	if err := r.port.SetReadTimeout(l.opts.ConnectTimeout); err != nil {
		_ = r.port.Close()
		return fmt.Errorf("setting read timeout on %s: %w", l.name, err)
	}

	l.port = r.port
	log.Printf("connected to %s at %d baud", l.name, l.opts.BaudRate)
	return nil
}

func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", l.name, err)
	}
	return nil
}

// Send writes the command as a single byte.
func (l *Link) Send(cmd goblink.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return goblink.ErrNotConnected
	}
	n, err := l.port.Write([]byte{byte(cmd)})
	if err != nil {
		return fmt.Errorf("writing to %s: %w", l.name, err)
	}
	if n != 1 {
		return fmt.Errorf("writing to %s: short write", l.name)
	}
	return nil
}

func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

func (l *Link) DisplayName() string {
	return l.name
}

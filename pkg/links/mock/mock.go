// Package mock provides an in-memory implementation of the goblink.Link interface.
// It is intended for development and testing purposes when no board is attached.
package mock

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mlsorensen/goblink"
)

// This init function registers the mock link with the central registry.
func init() {
	goblink.Register(goblink.KindMock, func(device *goblink.FoundDevice, _ goblink.Options) goblink.Link {
		return New(device)
	})
}

var _ goblink.Link = (*Link)(nil)

// Link records every command it is sent.
type Link struct {
	name string

	mu         sync.Mutex
	connected  bool
	commands   []goblink.Command
	failNext   error
	connectErr error
}

// New creates a new, unconnected mock link.
func New(device *goblink.FoundDevice) *Link {
	name := "mock"
	if device != nil && device.Name != "" {
		name = device.Name
	}
	return &Link{name: name}
}

// Connect marks the link connected, or returns the error set by FailConnect.
func (l *Link) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connectErr != nil {
		return l.connectErr
	}
	log.Debugln("MOCK: Connected.")
	l.connected = true
	return nil
}

func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return nil
	}
	l.connected = false
	log.Debugln("MOCK: Disconnected.")
	return nil
}

func (l *Link) Send(cmd goblink.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return goblink.ErrNotConnected
	}
	if err := l.failNext; err != nil {
		l.failNext = nil
		return err
	}
	l.commands = append(l.commands, cmd)
	log.Debugf("MOCK: wrote %q", byte(cmd))
	return nil
}

func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Link) DisplayName() string {
	return "Mock LED (" + l.name + ")"
}

// Commands returns a copy of everything sent so far.
func (l *Link) Commands() []goblink.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]goblink.Command(nil), l.commands...)
}

// Bytes returns everything sent so far as raw bytes.
func (l *Link) Bytes() []byte {
	cmds := l.Commands()
	out := make([]byte, len(cmds))
	for i, c := range cmds {
		out[i] = byte(c)
	}
	return out
}

// FailNext makes the next Send return err.
func (l *Link) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// FailConnect makes every Connect return err.
func (l *Link) FailConnect(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connectErr = err
}

package goblink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Command is a single byte instruction understood by the LED firmware.
type Command byte

const (
	// CommandOn switches the LED on ('o').
	CommandOn Command = 'o'
	// CommandOff switches the LED off ('x').
	CommandOff Command = 'x'
)

func (c Command) String() string {
	switch c {
	case CommandOn:
		return "ON"
	case CommandOff:
		return "OFF"
	default:
		return fmt.Sprintf("Command(0x%02X)", byte(c))
	}
}

// Kind names a transport implementation, e.g. "serial".
type Kind string

const (
	KindSerial Kind = "serial"
	KindBLE    Kind = "ble"
	KindMock   Kind = "mock"
)

// ErrNotConnected is returned by Send when the link has not been connected.
var ErrNotConnected = errors.New("link is not connected")

// Options are the connection parameters handed to every link factory.
type Options struct {
	BaudRate       int
	ConnectTimeout time.Duration
}

// DefaultOptions matches what the LED firmware expects: 9600 baud and a one
// second connect timeout.
func DefaultOptions() Options {
	return Options{
		BaudRate:       9600,
		ConnectTimeout: time.Second,
	}
}

// Link is the generic interface for something that can carry LED commands
// to the microcontroller.
type Link interface {
	// Connect opens the underlying transport. The context bounds how long
	// the open may take.
	Connect(ctx context.Context) error

	// Disconnect releases the transport. Calling it on a closed link is a no-op.
	Disconnect() error

	// Send writes a single command. No reply is expected.
	Send(cmd Command) error

	IsConnected() bool

	// DisplayName is a human readable label for status lines.
	DisplayName() string
}

// --- Implementation Registry ---

// Factory is a function that creates a new, unconnected Link.
type Factory func(device *FoundDevice, opts Options) Link

var (
	registry = make(map[Kind]Factory)
	regLock  = sync.RWMutex{}
)

// Register makes a link implementation available by its kind.
// This function should be called from the init() function of the implementation's package.
func Register(kind Kind, factory Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	if _, found := registry[kind]; found {
		log.Warnf("link implementation for kind '%s' is being overwritten", kind)
	}
	registry[kind] = factory
}

// NewLinkForDevice finds the registered factory for the device kind and
// creates a new Link instance.
func NewLinkForDevice(device *FoundDevice, opts Options) (Link, error) {
	if device == nil {
		return nil, errors.New("no device given")
	}
	regLock.RLock()
	factory, ok := registry[device.Kind]
	regLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no implementation found for link kind '%s'", device.Kind)
	}
	return factory(device, opts), nil
}

// Kinds returns the registered link kinds, sorted.
func Kinds() []Kind {
	regLock.RLock()
	defer regLock.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

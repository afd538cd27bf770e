package goblink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLink struct {
	device *FoundDevice
	opts   Options
}

func (s *stubLink) Connect(ctx context.Context) error { return nil }
func (s *stubLink) Disconnect() error                 { return nil }
func (s *stubLink) Send(cmd Command) error            { return nil }
func (s *stubLink) IsConnected() bool                 { return false }
func (s *stubLink) DisplayName() string               { return "stub" }

func TestCommandBytes(t *testing.T) {
	assert.Equal(t, byte(0x6F), byte(CommandOn))
	assert.Equal(t, byte(0x78), byte(CommandOff))
	assert.Equal(t, "ON", CommandOn.String())
	assert.Equal(t, "OFF", CommandOff.String())
	assert.Equal(t, "Command(0x41)", Command('A').String())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 9600, opts.BaudRate)
	assert.Equal(t, "1s", opts.ConnectTimeout.String())
}

func TestRegistry(t *testing.T) {
	const kind Kind = "stub-registry"
	Register(kind, func(device *FoundDevice, opts Options) Link {
		return &stubLink{device: device, opts: opts}
	})

	dev := &FoundDevice{Name: "dev0", Kind: kind}
	opts := Options{BaudRate: 115200}
	link, err := NewLinkForDevice(dev, opts)
	require.NoError(t, err)

	stub, ok := link.(*stubLink)
	require.True(t, ok)
	assert.Same(t, dev, stub.device)
	assert.Equal(t, 115200, stub.opts.BaudRate)
	assert.Contains(t, Kinds(), kind)
}

func TestNewLinkForDeviceErrors(t *testing.T) {
	_, err := NewLinkForDevice(nil, DefaultOptions())
	require.Error(t, err)

	_, err = NewLinkForDevice(&FoundDevice{Name: "x", Kind: "nope"}, DefaultOptions())
	require.ErrorContains(t, err, "no implementation found for link kind 'nope'")
}

func TestPrefixes(t *testing.T) {
	assert.Equal(t, BLEPrefixes, getPrefixes())
	assert.Equal(t, []string{"HC"}, getPrefixes("HC"))

	assert.True(t, hasAnyPrefix("HMSoft", BLEPrefixes))
	assert.True(t, hasAnyPrefix("anything", []string{""}))
	assert.False(t, hasAnyPrefix("Lunar", BLEPrefixes))
}

func TestFoundDeviceString(t *testing.T) {
	assert.Equal(t, "serial:/dev/ttyUSB0", FoundDevice{Name: "/dev/ttyUSB0", ID: "/dev/ttyUSB0", Kind: KindSerial}.String())
	assert.Equal(t, "ble:HMSoft (AA:BB)", FoundDevice{Name: "HMSoft", ID: "AA:BB", Kind: KindBLE}.String())
}

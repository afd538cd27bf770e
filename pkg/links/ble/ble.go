// Package ble implements goblink.Link over an HM-10 style BLE UART module.
package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/mlsorensen/goblink"
)

var (
	UARTServiceUUID = bluetooth.New16BitUUID(0xFFE0)
	UARTCharUUID    = bluetooth.New16BitUUID(0xFFE1)
)

// resolveTimeout bounds the scan used to find a device known only by id.
const resolveTimeout = 10 * time.Second

func init() {
	goblink.Register(goblink.KindBLE, New)
}

var _ goblink.Link = (*Link)(nil)

// Link writes command bytes to the UART characteristic of a BLE module.
type Link struct {
	device goblink.FoundDevice

	mu        sync.Mutex
	connected bool
	btDevice  bluetooth.Device
	writeChar bluetooth.DeviceCharacteristic
}

func New(device *goblink.FoundDevice, _ goblink.Options) goblink.Link {
	return &Link{device: *device}
}

// Connect enables the adapter, resolves the device address if it did not
// come from a scan, and finds the UART characteristic.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return errors.New("BLE link is already connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := goblink.TryEnableAdapter(); err != nil {
		return fmt.Errorf("enabling bluetooth: %w", err)
	}

	if !l.device.Resolved {
		id := l.device.ID
		if id == "" {
			id = l.device.Name
		}
		timeout := resolveTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if timeout <= 0 {
			return fmt.Errorf("resolving %s: %w", id, context.DeadlineExceeded)
		}
		found, err := goblink.FindBLE(timeout, id)
		if err != nil {
			return err
		}
		l.device = *found
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	l.btDevice, err = goblink.BTAdapter.Connect(l.device.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", l.device.ID, err)
	}

	if err := l.setupCharacteristic(); err != nil {
		_ = l.btDevice.Disconnect()
		return err
	}

	l.connected = true
	log.Printf("connected to %s", l.device)
	return nil
}

func (l *Link) setupCharacteristic() error {
	log.Debugln("Discovering services...")
	services, err := l.btDevice.DiscoverServices([]bluetooth.UUID{UARTServiceUUID})
	if err != nil {
		return fmt.Errorf("could not discover services: %w", err)
	}
	if len(services) == 0 {
		return errors.New("could not find the BLE UART service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{UARTCharUUID})
	if err != nil {
		return fmt.Errorf("could not discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return errors.New("could not find the BLE UART characteristic")
	}
	l.writeChar = chars[0]
	return nil
}

func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return nil
	}
	l.connected = false
	return l.btDevice.Disconnect()
}

func (l *Link) Send(cmd goblink.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return goblink.ErrNotConnected
	}
	if _, err := l.writeChar.WriteWithoutResponse([]byte{byte(cmd)}); err != nil {
		return fmt.Errorf("writing to %s: %w", l.device.Name, err)
	}
	return nil
}

func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Link) DisplayName() string {
	return l.device.Name
}

package goblink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"
	"tinygo.org/x/bluetooth"
)

// FoundDevice describes a device a Link can be created for. For serial
// links Name is the port path; for BLE links ID is the address string.
type FoundDevice struct {
	Name        string
	ID          string
	Kind        Kind
	RSSI        int
	Description string

	// Address is only meaningful for BLE devices returned by a scan.
	Address  bluetooth.Address
	Resolved bool
}

func (d FoundDevice) String() string {
	if d.ID != "" && d.ID != d.Name {
		return fmt.Sprintf("%s:%s (%s)", d.Kind, d.Name, d.ID)
	}
	return fmt.Sprintf("%s:%s", d.Kind, d.Name)
}

// BLEPrefixes are the advertised names of common BLE UART modules wired to
// hobby boards (HM-10 and clones).
var BLEPrefixes = []string{"HMSoft", "DSD TECH", "BT05", "MLT-BT05", "JDY-"}

// BTAdapter is the adapter used by the scanner and by BLE links.
var BTAdapter = bluetooth.DefaultAdapter

var (
	enableOnce sync.Once
	enableErr  error
)

// stopScan is replaced in tests.
var stopScan = func() error { return BTAdapter.StopScan() }

// stopRetry is how often stopScanWhenStarted retries a refused StopScan.
const stopRetry = 10 * time.Millisecond

// stopScanWhenStarted stops the running scan. StopScan fails while the
// adapter is not scanning yet, so it is retried until it succeeds or the scan
// has returned on its own.
func stopScanWhenStarted(scanDone <-chan struct{}) {
	for {
		err := stopScan()
		if err == nil {
			return
		}
		log.Debugf("Stopping scan: %v, retrying", err)
		select {
		case <-scanDone:
			return
		case <-time.After(stopRetry):
		}
	}
}

// TryEnableAdapter enables the Bluetooth adapter once per process.
func TryEnableAdapter() error {
	enableOnce.Do(func() {
		log.Println("Enabling Bluetooth adapter...")
		enableErr = BTAdapter.Enable()
	})
	return enableErr
}

// ScanPorts lists the serial ports present on the system.
func ScanPorts() ([]FoundDevice, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}

	results := make([]FoundDevice, 0, len(ports))
	for _, p := range ports {
		dev := FoundDevice{Name: p.Name, ID: p.Name, Kind: KindSerial}
		if p.IsUSB {
			dev.Description = fmt.Sprintf("USB %s:%s %s", p.VID, p.PID, p.Product)
			if p.SerialNumber != "" {
				dev.Description += " sn=" + p.SerialNumber
			}
		}
		results = append(results, dev)
	}
	return results, nil
}

// ScanBLEStream returns a channel that streams BLE UART modules as they are
// discovered and stops scanning when the context is canceled.
func ScanBLEStream(ctx context.Context, customPrefixes ...string) (<-chan FoundDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}
	prefixesToScan := getPrefixes(customPrefixes...)
	deviceChan := make(chan FoundDevice)

	go func() {
		defer close(deviceChan)

		mu := sync.Mutex{}
		seen := make(map[string]bool)

		log.Printf("Starting BLE scan for devices with prefixes: %v...", prefixesToScan)

		handler := func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			dev, ok := matchResult(result, prefixesToScan)
			if !ok {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if seen[dev.ID] {
				return
			}
			seen[dev.ID] = true

			select {
			case deviceChan <- dev:
			case <-ctx.Done():
			}
		}

		scanDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				stopScanWhenStarted(scanDone)
			case <-scanDone:
			}
		}()

		// Scan blocks until StopScan is called.
		if err := BTAdapter.Scan(handler); err != nil {
			log.Printf("Error starting scan: %v", err)
		}
		close(scanDone)
	}()

	return deviceChan, nil
}

// ScanBLE finds BLE devices with the given name prefixes, blocking for duration.
func ScanBLE(duration time.Duration, customPrefixes ...string) ([]FoundDevice, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("scan duration must be positive, got %s", duration)
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}

	prefixesToScan := getPrefixes(customPrefixes...)
	if len(prefixesToScan) == 0 {
		return nil, errors.New("no BLE name prefixes to scan for")
	}
	log.Printf("Scanning for devices with prefixes: %v.", prefixesToScan)

	mu := sync.Mutex{}
	foundDevices := make(map[string]FoundDevice)

	handler := func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		dev, ok := matchResult(result, prefixesToScan)
		if !ok {
			return
		}
		log.Debugf("    --> Found a match! Device: %s", dev.Name)
		mu.Lock()
		foundDevices[dev.ID] = dev
		mu.Unlock()
	}

	scanDone := make(chan struct{})
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(scanDone)
		if err := BTAdapter.Scan(handler); err != nil {
			scanErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Debugln("Timeout reached. Stopping scan...")
		stopScanWhenStarted(scanDone)
	case <-scanDone:
	}

	<-scanDone
	close(scanErrChan)

	if scanErr := <-scanErrChan; scanErr != nil {
		return nil, scanErr
	}

	results := make([]FoundDevice, 0, len(foundDevices))
	for _, device := range foundDevices {
		results = append(results, device)
	}

	log.Printf("Scan finished. Found %d matching device(s).", len(results))
	return results, nil
}

// FindBLE scans until a device whose address or name equals id shows up, or
// the duration runs out.
func FindBLE(duration time.Duration, id string) (*FoundDevice, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("BLE device %q: search time must be positive, got %s", id, duration)
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	// an exact id is matched below, so any advertised name can qualify
	devices, err := ScanBLEStream(ctx, "")
	if err != nil {
		return nil, err
	}
	for dev := range devices {
		if strings.EqualFold(dev.ID, id) || dev.Name == id {
			cancel()
			found := dev
			// drain so the scan goroutine can exit
			for range devices {
			}
			return &found, nil
		}
	}
	return nil, fmt.Errorf("BLE device %q not found within %s", id, duration)
}

func matchResult(result bluetooth.ScanResult, prefixes []string) (FoundDevice, bool) {
	name := result.LocalName()
	if name == "" {
		return FoundDevice{}, false
	}
	if !hasAnyPrefix(name, prefixes) {
		return FoundDevice{}, false
	}
	return FoundDevice{
		Name:     name,
		ID:       result.Address.String(),
		Kind:     KindBLE,
		RSSI:     int(result.RSSI),
		Address:  result.Address,
		Resolved: true,
	}, true
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// getPrefixes returns the custom prefixes if any were given, BLEPrefixes otherwise.
func getPrefixes(customPrefixes ...string) []string {
	if len(customPrefixes) > 0 {
		return customPrefixes
	}
	return BLEPrefixes
}

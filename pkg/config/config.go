// Package config loads goblink settings from a TOML file.
//
// A missing file is not an error: every field has a default, and command
// line flags override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mlsorensen/goblink"
	"github.com/mlsorensen/goblink/pkg/led"
)

// Duration is a time.Duration written as a string ("800ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds everything needed to open a link and seed the controller.
type Config struct {
	Title          string   `toml:"title"`
	Transport      string   `toml:"transport"`
	Port           string   `toml:"port"`
	BaudRate       int      `toml:"baud_rate"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	BlinkInterval  Duration `toml:"blink_interval"`
	BlinkCount     int      `toml:"blink_count"`
	LogLevel       string   `toml:"log_level"`
}

// Default returns a Config with the values the firmware expects.
func Default() *Config {
	opts := goblink.DefaultOptions()
	return &Config{
		Title:          "Blink GUI",
		Transport:      string(goblink.KindSerial),
		Port:           defaultPort(),
		BaudRate:       opts.BaudRate,
		ConnectTimeout: Duration{opts.ConnectTimeout},
		BlinkInterval:  Duration{led.DefaultInterval},
		BlinkCount:     led.DefaultCount,
		LogLevel:       "info",
	}
}

// DefaultPath is ~/.config/goblink/config.toml (or the OS equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "goblink.toml"
	}
	return filepath.Join(dir, "goblink", "config.toml")
}

// Load reads path over the defaults. A path that does not exist yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch goblink.Kind(c.Transport) {
	case goblink.KindSerial, goblink.KindBLE, goblink.KindMock:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Port == "" && goblink.Kind(c.Transport) != goblink.KindMock {
		return errors.New("port is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if c.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if d := c.BlinkInterval.Duration; d < led.MinInterval || d > led.MaxInterval {
		return fmt.Errorf("blink_interval %s: %w", d, led.ErrIntervalRange)
	}
	if c.BlinkCount < led.MinCount || c.BlinkCount > led.MaxCount {
		return fmt.Errorf("blink_count %d: %w", c.BlinkCount, led.ErrCountRange)
	}
	return nil
}

// Device describes the configured target for goblink.NewLinkForDevice.
func (c *Config) Device() *goblink.FoundDevice {
	return &goblink.FoundDevice{
		Name: c.Port,
		ID:   c.Port,
		Kind: goblink.Kind(c.Transport),
	}
}

// LinkOptions returns the connection parameters.
func (c *Config) LinkOptions() goblink.Options {
	return goblink.Options{
		BaudRate:       c.BaudRate,
		ConnectTimeout: c.ConnectTimeout.Duration,
	}
}

// ControllerOptions seeds an led.Controller with the configured interval and count.
func (c *Config) ControllerOptions() []led.Option {
	return []led.Option{
		led.WithInterval(c.BlinkInterval.Duration),
		led.WithCount(c.BlinkCount),
	}
}

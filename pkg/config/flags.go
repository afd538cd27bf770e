package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Flags are the command line overrides shared by the goblink commands.
type Flags struct {
	Path           string
	Transport      string
	Port           string
	BaudRate       int
	ConnectTimeout time.Duration
	LogLevel       string
}

// Register adds the flags to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	def := Default()
	fs.StringVarP(&f.Path, "config", "c", DefaultPath(), "path to a TOML config file")
	fs.StringVarP(&f.Transport, "transport", "t", def.Transport, "link kind: serial, ble or mock")
	fs.StringVarP(&f.Port, "port", "p", def.Port, "serial device path, or BLE name/address")
	fs.IntVarP(&f.BaudRate, "baud", "b", def.BaudRate, "serial baud rate")
	fs.DurationVar(&f.ConnectTimeout, "connect-timeout", def.ConnectTimeout.Duration, "how long to wait for the link to open")
	fs.StringVar(&f.LogLevel, "log-level", def.LogLevel, "log level: debug, info, warn or error")
}

// Resolve loads the config file and applies any flag the user set
// explicitly, then validates the result and applies the log level.
func (f *Flags) Resolve(fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Load(f.Path)
	if err != nil {
		return nil, err
	}
	if fs.Changed("transport") {
		cfg.Transport = f.Transport
	}
	if fs.Changed("port") {
		cfg.Port = f.Port
	}
	if fs.Changed("baud") {
		cfg.BaudRate = f.BaudRate
	}
	if fs.Changed("connect-timeout") {
		cfg.ConnectTimeout = Duration{f.ConnectTimeout}
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ConfigureLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigureLogging sets the global logrus level.
func ConfigureLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

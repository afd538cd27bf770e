package config

import (
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*Flags, *pflag.FlagSet) {
	t.Helper()
	var f Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Register(fs)
	require.NoError(t, fs.Parse(args))
	return &f, fs
}

func TestResolveFlagsOverFile(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })
	path := writeConfig(t, `
port = "/dev/ttyACM1"
baud_rate = 19200
blink_interval = "400ms"
`)
	f, fs := parseFlags(t, "--config", path, "--baud", "57600", "--log-level", "debug")
	cfg, err := f.Resolve(fs)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM1", cfg.Port, "file value kept when flag unset")
	assert.Equal(t, 57600, cfg.BaudRate, "flag wins over file")
	assert.Equal(t, 400*time.Millisecond, cfg.BlinkInterval.Duration)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestResolveMockTransport(t *testing.T) {
	f, fs := parseFlags(t,
		"--config", filepath.Join(t.TempDir(), "absent.toml"),
		"-t", "mock", "-p", "", "--connect-timeout", "3s")
	cfg, err := f.Resolve(fs)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Transport)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout.Duration)
}

func TestResolveInvalid(t *testing.T) {
	f, fs := parseFlags(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "--transport", "carrier-pigeon")
	_, err := f.Resolve(fs)
	require.ErrorContains(t, err, "unknown transport")

	f, fs = parseFlags(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "--log-level", "loud")
	_, err = f.Resolve(fs)
	require.ErrorContains(t, err, "log level")
}

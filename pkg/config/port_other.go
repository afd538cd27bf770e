//go:build !darwin && !windows

package config

func defaultPort() string { return "/dev/ttyUSB0" }

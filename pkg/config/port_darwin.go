package config

func defaultPort() string { return "/dev/cu.usbserial-1110" }

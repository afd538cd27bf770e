package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mlsorensen/goblink"
	"github.com/mlsorensen/goblink/pkg/config"
	"github.com/mlsorensen/goblink/pkg/led"
)

// newLink is replaced in tests.
var newLink = goblink.NewLinkForDevice

// withController connects the configured link, hands a controller to fn and
// disconnects afterwards.
func withController(ctx context.Context, cfg *config.Config, fn func(*led.Controller) error) error {
	link, err := newLink(cfg.Device(), cfg.LinkOptions())
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout.Duration)
	err = link.Connect(cctx)
	cancel()
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", cfg.Device(), err)
	}
	defer func() {
		if err := link.Disconnect(); err != nil {
			log.Printf("Error disconnecting from %s: %v", link.DisplayName(), err)
		}
	}()

	ctrl := led.New(link, cfg.ControllerOptions()...)
	defer ctrl.Close()
	return fn(ctrl)
}

func newSwitchCmd(name, short string) *cobra.Command {
	var flags config.Flags
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return withController(cmd.Context(), cfg, func(ctrl *led.Controller) error {
				if name == "on" {
					err = ctrl.TurnOn()
				} else {
					err = ctrl.TurnOff()
				}
				if err != nil {
					return err
				}
				printOK(cmd, "LED %s", ctrl.State().Status())
				return nil
			})
		},
	}
	flags.Register(cmd.Flags())
	return cmd
}

func newBlinkCmd() *cobra.Command {
	var (
		flags    config.Flags
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "blink",
		Short: "Blink the LED a number of times, then switch it off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Resolve(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.BlinkInterval = config.Duration{Duration: interval}
			}
			if cmd.Flags().Changed("count") {
				cfg.BlinkCount = count
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return withController(cmd.Context(), cfg, func(ctrl *led.Controller) error {
				printMuted(cmd, "blinking %d time(s) every %s", cfg.BlinkCount, cfg.BlinkInterval)
				if err := ctrl.Blink(cmd.Context(), cfg.BlinkCount); err != nil {
					return err
				}
				printOK(cmd, "blinked %d time(s)", cfg.BlinkCount)
				return nil
			})
		},
	}
	flags.Register(cmd.Flags())
	cmd.Flags().DurationVarP(&interval, "interval", "i", led.DefaultInterval, "time between toggles (50ms to 1.2s)")
	cmd.Flags().IntVarP(&count, "count", "n", led.DefaultCount, "number of on/off cycles (1 to 20)")
	return cmd
}

// scanPorts is replaced in tests.
var scanPorts = goblink.ScanPorts

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := scanPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				printMuted(cmd, "no serial ports found")
				return nil
			}
			for i, p := range ports {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %s", i+1, p.Name)
				if p.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s", p.Description)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func newScanCmd() *cobra.Command {
	var (
		duration time.Duration
		prefixes []string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE UART modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printMuted(cmd, "scanning for %s, turn your module on now", duration)
			devices, err := goblink.ScanBLE(duration, prefixes...)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			if len(devices) == 0 {
				printMuted(cmd, "no BLE UART modules found")
				return nil
			}
			for i, d := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: Name: %s\n", i+1, d.Name)
				fmt.Fprintf(cmd.OutOrStdout(), "   ID:   %s\n", d.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "   RSSI: %d\n", d.RSSI)
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "how long to scan")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "device name prefixes (default: known HM-10 style names)")
	return cmd
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mlsorensen/goblink"
	"github.com/mlsorensen/goblink/pkg/config"
	"github.com/mlsorensen/goblink/pkg/led"
	"github.com/mlsorensen/goblink/pkg/ui"

	// This tells the Go compiler to include the packages, which run their
	// init() function and register every link kind.
	_ "github.com/mlsorensen/goblink/pkg/links/all"
)

// errConnect marks a run that ended at the connection error dialog.
type errConnect struct{ error }

func main() {
	var flags config.Flags
	cmd := &cobra.Command{
		Use:           "blinkgui",
		Short:         "Toggle and blink an LED on a microcontroller",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	flags.Register(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		var connErr errConnect
		if !errors.As(err, &connErr) {
			log.Errorf("blinkgui: %v", err)
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	a := app.NewWithID("com.github.mlsorensen.goblink")
	w := a.NewWindow(cfg.Title)
	w.SetMaster()

	link, err := goblink.NewLinkForDevice(cfg.Device(), cfg.LinkOptions())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout.Duration)
	err = link.Connect(ctx)
	cancel()
	if err != nil {
		log.Errorf("Unable to connect to the device: %v", err)
		ui.ShowConnectError(w, err, a.Quit)
		w.ShowAndRun()
		return errConnect{err}
	}
	log.Printf("Connected to %s", link.DisplayName())

	ctrl := led.New(link, cfg.ControllerOptions()...)
	ui.New(w, ctrl, ui.WithDeviceName(link.DisplayName()))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig, ok := <-shutdown
		if !ok {
			return
		}
		log.Println("Shutdown signal received:", sig)
		fyne.Do(a.Quit)
	}()

	w.ShowAndRun()

	signal.Stop(shutdown)
	close(shutdown)
	ctrl.Close()
	if err := link.Disconnect(); err != nil {
		log.Printf("Error disconnecting from %s: %v", link.DisplayName(), err)
	}
	return nil
}

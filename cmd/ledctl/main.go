package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/mlsorensen/goblink/pkg/links/all"
)

var (
	okLine   = color.New(color.FgHiGreen, color.Bold)
	failLine = color.New(color.FgHiRed, color.Bold)
	muted    = color.New(color.FgHiBlack)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		failLine.Fprintf(os.Stderr, "✖ %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledctl",
		Short:         "Send LED commands to a microcontroller without the GUI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var noColor bool
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	}

	root.AddCommand(
		newSwitchCmd("on", "Turn the LED on"),
		newSwitchCmd("off", "Turn the LED off"),
		newBlinkCmd(),
		newPortsCmd(),
		newScanCmd(),
	)
	return root
}

func printOK(cmd *cobra.Command, format string, args ...any) {
	okLine.Fprintf(cmd.OutOrStdout(), "✔ "+format+"\n", args...)
}

func printMuted(cmd *cobra.Command, format string, args ...any) {
	muted.Fprintln(cmd.OutOrStdout(), fmt.Sprintf(format, args...))
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// For testing
var osExit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "telemetryd",
	Short: "Usage telemetry buffering and delivery daemon",
	Long: `telemetryd collects usage events for downloaded documents, buffers them
in memory and periodically forwards them in batches to the configured
analytics destination.`,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tempora/internal/monitor"
)

var monitorFlags struct {
	server   string
	interval time.Duration
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of a running tempora server",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if monitorFlags.interval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", monitorFlags.interval)
		}
		return monitor.Run(monitorFlags.server, monitorFlags.interval)
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorFlags.server, "server", "http://127.0.0.1:9191", "base URL of tempora serve")
	monitorCmd.Flags().DurationVar(&monitorFlags.interval, "interval", 2*time.Second, "refresh interval")
}

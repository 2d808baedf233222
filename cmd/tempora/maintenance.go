package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var maintenanceJSON bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired chunks now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{logStderr: true, events: true})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		if maintenanceJSON {
			return printJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d expired chunks\n", successStyle.Render("Removed"), n)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{logStderr: true})
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.svc.Statistics(ctx)
		if err != nil {
			return err
		}
		if maintenanceJSON {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printStatistics(cmd.OutOrStdout(), st)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&maintenanceJSON, "json", false, "print JSON")
	statsCmd.Flags().BoolVar(&maintenanceJSON, "json", false, "print JSON")
}

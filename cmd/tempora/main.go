// Command tempora indexes versioned, expiring documents for semantic search.
//
// Usage:
//
//	# Ingest a directory, then search it
//	tempora ingest ./docs --expiry-days 30
//	tempora search "refund policy"
//
//	# Run the HTTP API with the in-process expiry sweeper
//	tempora serve
//
// Configuration is read from ~/.config/tempora/config.yaml (or --config) and
// TEMPORA_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tempora",
	Short: "Versioned, expiring document index for semantic search",
	Long: `tempora keeps one latest version per document source, expires chunks
after a per-document lifetime and serves semantic search over what is current.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/tempora/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("tempora by Fyrsmith Labs"))
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Version:   "), version)
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Commit:    "), gitCommit)
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Build Date:"), buildDate)
	},
}

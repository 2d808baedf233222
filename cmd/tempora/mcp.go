package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tempora/internal/mcp"
)

var mcpAllowedRoot string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index to MCP clients over stdio",
	Long: `mcp speaks the Model Context Protocol on stdin and stdout. Logs go to
stderr. Directory ingestion is limited to --allowed-root when set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{logStderr: true, events: true})
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := mcp.DefaultConfig()
		cfg.Version = version
		cfg.Logger = a.logger
		cfg.Batch = a.batch()
		cfg.Locks = a.locks
		cfg.AllowedRoot = mcpAllowedRoot
		cfg.Meter = a.tel.Meter("github.com/fyrsmithlabs/tempora/internal/mcp")

		srv, err := mcp.NewServer(cfg, a.svc)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAllowedRoot, "allowed-root", "", "directory that document_ingest_directory is confined to")
}

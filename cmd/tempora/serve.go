package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	temporahttp "github.com/fyrsmithlabs/tempora/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expiry sweeper",
	Long: `serve exposes the document index over HTTP under /api/v1 and removes
expired chunks every lifecycle.sweep_interval. Prometheus metrics are served
at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := temporahttp.NewServer(a.svc, a.logger, &temporahttp.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		RequestTimeout: a.cfg.Server.RequestTimeout.Duration(),
		BodyLimit:      a.cfg.Server.BodyLimit,
	},
		temporahttp.WithLocks(a.locks),
		temporahttp.WithMetrics(temporahttp.NewHTTPMetrics(a.tel.Meter("github.com/fyrsmithlabs/tempora/internal/http"), a.logger)),
	)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docindex.NewSweeper(a.svc, a.cfg.Lifecycle.SweepInterval.Duration()).Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info(gctx, "http server listening",
			zap.String("host", a.cfg.Server.Host),
			zap.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		a.logger.Info(shutdownCtx, "shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

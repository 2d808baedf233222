package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/workflows"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker that owns the scheduled expiry sweep",
	Long: `worker connects to Temporal, makes sure the expiry sweep schedule
exists and executes sweep workflows from temporal.task_queue until
interrupted. Use it instead of the in-process sweeper of serve when several
processes share one index.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	tc := a.cfg.Temporal
	c, err := client.Dial(client.Options{
		HostPort:  tc.HostPort,
		Namespace: tc.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connecting to temporal at %s: %w", tc.HostPort, err)
	}
	defer c.Close()

	every := tc.SweepSchedule.Duration()
	if every <= 0 {
		every = a.cfg.Lifecycle.SweepInterval.Duration()
	}
	if err := workflows.EnsureSweepSchedule(ctx, c, tc.TaskQueue, every); err != nil {
		return err
	}

	w := worker.New(c, tc.TaskQueue, worker.Options{})
	workflows.Register(w, &workflows.Activities{Index: a.svc})

	a.logger.Info(ctx, "temporal worker started",
		zap.String("host_port", tc.HostPort),
		zap.String("namespace", tc.Namespace),
		zap.String("task_queue", tc.TaskQueue),
		zap.Duration("sweep_every", every),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("temporal worker: %w", err)
	}
	return nil
}

// Package workflows provides Temporal workflow definitions for scheduled
// index maintenance.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
)

// SweepInput configures one expiry sweep.
type SweepInput struct {
	// SkipStatistics skips the statistics activity after cleanup.
	SkipStatistics bool
}

// SweepResult is the outcome of an expiry sweep.
type SweepResult struct {
	Removed    int                  // Chunks deleted
	Statistics *docindex.Statistics // Counts after cleanup, nil when skipped or failed
	Errors     []string
}

// ExpirySweepWorkflow removes expired chunks and then records index
// statistics.
//
// Cleanup is retried by Temporal; a statistics failure is reported in the
// result without failing the sweep.
func ExpirySweepWorkflow(ctx workflow.Context, input SweepInput) (*SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)
	logger.Info("Starting expiry sweep")

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var acts *Activities
	result := &SweepResult{}

	if err := workflow.ExecuteActivity(ctx, acts.CleanupExpiredActivity).Get(ctx, &result.Removed); err != nil {
		logger.Error("Expiry cleanup failed", "error", err)
		recordSweep(ctx, "error", workflow.Now(ctx).Sub(startTime), 0)
		return nil, NewWorkflowError("cleanup_expired", ErrorSeverityCritical, err, "")
	}
	logger.Info("Expired chunks removed", "removed", result.Removed)

	if !input.SkipStatistics {
		var stats docindex.Statistics
		if err := workflow.ExecuteActivity(ctx, acts.StatisticsActivity).Get(ctx, &stats); err != nil {
			logger.Warn("Statistics failed", "error", err)
			result.Errors = append(result.Errors, NewWorkflowError("statistics", ErrorSeverityLow, err, "").Error())
		} else {
			result.Statistics = &stats
		}
	}

	recordSweep(ctx, "success", workflow.Now(ctx).Sub(startTime), result.Removed)
	logger.Info("Expiry sweep completed", "removed", result.Removed)
	return result, nil
}

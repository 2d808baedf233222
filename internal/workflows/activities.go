package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
)

// Lifecycle is the part of docindex.Service the activities call.
type Lifecycle interface {
	CleanupExpired(ctx context.Context) (int, error)
	Statistics(ctx context.Context) (*docindex.Statistics, error)
}

// Activities bind maintenance activities to a document index.
type Activities struct {
	Index Lifecycle
}

// CleanupExpiredActivity deletes expired chunks and returns how many.
func (a *Activities) CleanupExpiredActivity(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := a.Index.CleanupExpired(ctx)
	recordActivity(ctx, "cleanup_expired", time.Since(start), err)
	if err != nil {
		return 0, activityError("cleanup_expired", err)
	}
	activity.GetLogger(ctx).Info("Cleanup finished", "removed", n)
	return n, nil
}

// StatisticsActivity returns index chunk counts.
func (a *Activities) StatisticsActivity(ctx context.Context) (*docindex.Statistics, error) {
	start := time.Now()
	st, err := a.Index.Statistics(ctx)
	recordActivity(ctx, "statistics", time.Since(start), err)
	if err != nil {
		return nil, activityError("statistics", err)
	}
	return st, nil
}

// Register adds the sweep workflow and its activities to r.
func Register(r worker.Registry, acts *Activities) {
	r.RegisterWorkflow(ExpirySweepWorkflow)
	r.RegisterActivity(acts)
}

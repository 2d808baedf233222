package workflows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/workflow"
)

const instrumentationName = "github.com/fyrsmithlabs/tempora/internal/workflows"

var (
	metricsOnce          sync.Once
	sweepCounter         metric.Int64Counter
	sweepRemovedCounter  metric.Int64Counter
	sweepDuration        metric.Float64Histogram
	activityDuration     metric.Float64Histogram
	activityErrorCounter metric.Int64Counter
)

// initMetrics creates the instruments on first use, so a meter provider
// installed at startup is picked up.
func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		var err error

		sweepCounter, err = meter.Int64Counter(
			"tempora.workflows.expiry_sweep.executions",
			metric.WithDescription("Total number of expiry sweep workflow executions"),
			metric.WithUnit("{execution}"),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create sweep counter: %v", err))
		}

		sweepRemovedCounter, err = meter.Int64Counter(
			"tempora.workflows.expiry_sweep.removed",
			metric.WithDescription("Chunks removed by expiry sweeps"),
			metric.WithUnit("{chunk}"),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create removed counter: %v", err))
		}

		sweepDuration, err = meter.Float64Histogram(
			"tempora.workflows.expiry_sweep.duration",
			metric.WithDescription("Duration of expiry sweep workflows"),
			metric.WithUnit("s"),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create sweep duration: %v", err))
		}

		activityDuration, err = meter.Float64Histogram(
			"tempora.workflows.activity.duration",
			metric.WithDescription("Duration of workflow activity executions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create activity duration: %v", err))
		}

		activityErrorCounter, err = meter.Int64Counter(
			"tempora.workflows.activity.errors",
			metric.WithDescription("Number of activity execution errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create activity error counter: %v", err))
		}
	})
}

// recordSweep is a no-op during replay.
func recordSweep(ctx workflow.Context, result string, d time.Duration, removed int) {
	if workflow.IsReplaying(ctx) {
		return
	}
	initMetrics()
	attrs := metric.WithAttributes(attribute.String("result", result))
	sweepCounter.Add(context.Background(), 1, attrs)
	sweepDuration.Record(context.Background(), d.Seconds(), attrs)
	if removed > 0 {
		sweepRemovedCounter.Add(context.Background(), int64(removed))
	}
}

func recordActivity(ctx context.Context, name string, d time.Duration, err error) {
	initMetrics()
	attrs := metric.WithAttributes(attribute.String("activity", name))
	activityDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		activityErrorCounter.Add(ctx, 1, attrs)
	}
}

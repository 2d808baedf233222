package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

// SweepScheduleID identifies the recurring expiry sweep.
const SweepScheduleID = "tempora-expiry-sweep"

// SweepScheduleOptions builds the schedule that starts ExpirySweepWorkflow
// every interval on taskQueue.
func SweepScheduleOptions(taskQueue string, every time.Duration) client.ScheduleOptions {
	return client.ScheduleOptions{
		ID: SweepScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: every}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        SweepScheduleID + "-run",
			Workflow:  ExpirySweepWorkflow,
			Args:      []interface{}{SweepInput{}},
			TaskQueue: taskQueue,
		},
	}
}

// EnsureSweepSchedule creates the sweep schedule unless it already exists.
func EnsureSweepSchedule(ctx context.Context, c client.Client, taskQueue string, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", every)
	}
	_, err := c.ScheduleClient().Create(ctx, SweepScheduleOptions(taskQueue, every))
	if err != nil && !errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		return fmt.Errorf("creating schedule %s: %w", SweepScheduleID, err)
	}
	return nil
}

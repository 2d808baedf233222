package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/testsuite"

	"github.com/fyrsmithlabs/tempora/internal/chunking"
	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/embeddings"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

type stubLifecycle struct {
	removed     int
	cleanupErr  error
	stats       *docindex.Statistics
	statsErr    error
	cleanups    int
	statsCalled int
}

func (s *stubLifecycle) CleanupExpired(context.Context) (int, error) {
	s.cleanups++
	return s.removed, s.cleanupErr
}

func (s *stubLifecycle) Statistics(context.Context) (*docindex.Statistics, error) {
	s.statsCalled++
	return s.stats, s.statsErr
}

func runSweep(t *testing.T, lc Lifecycle, input SweepInput) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ExpirySweepWorkflow)
	env.RegisterActivity(&Activities{Index: lc})
	env.ExecuteWorkflow(ExpirySweepWorkflow, input)
	require.True(t, env.IsWorkflowCompleted())
	return env
}

func TestExpirySweepWorkflow(t *testing.T) {
	t.Run("cleans up then reports statistics", func(t *testing.T) {
		lc := &stubLifecycle{
			removed: 4,
			stats:   &docindex.Statistics{TotalChunks: 10, LatestVersionChunks: 6},
		}
		env := runSweep(t, lc, SweepInput{})
		require.NoError(t, env.GetWorkflowError())

		var result SweepResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 4, result.Removed)
		require.NotNil(t, result.Statistics)
		assert.Equal(t, 10, result.Statistics.TotalChunks)
		assert.Equal(t, 6, result.Statistics.LatestVersionChunks)
		assert.Empty(t, result.Errors)
	})

	t.Run("skips statistics when asked", func(t *testing.T) {
		lc := &stubLifecycle{removed: 1}
		env := runSweep(t, lc, SweepInput{SkipStatistics: true})
		require.NoError(t, env.GetWorkflowError())

		var result SweepResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 1, result.Removed)
		assert.Nil(t, result.Statistics)
		assert.Zero(t, lc.statsCalled)
	})

	t.Run("cleanup failure fails the workflow after retries", func(t *testing.T) {
		lc := &stubLifecycle{cleanupErr: errors.New("store unavailable")}
		env := runSweep(t, lc, SweepInput{})

		err := env.GetWorkflowError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store unavailable")
		assert.Equal(t, 3, lc.cleanups)
		assert.Zero(t, lc.statsCalled)
	})

	t.Run("latest-less failure is not retried", func(t *testing.T) {
		lc := &stubLifecycle{cleanupErr: docindex.ErrLatestless}
		env := runSweep(t, lc, SweepInput{})

		require.Error(t, env.GetWorkflowError())
		assert.Equal(t, 1, lc.cleanups)
	})

	t.Run("statistics failure is recorded", func(t *testing.T) {
		lc := &stubLifecycle{removed: 2, statsErr: errors.New("count failed")}
		env := runSweep(t, lc, SweepInput{})
		require.NoError(t, env.GetWorkflowError())

		var result SweepResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 2, result.Removed)
		assert.Nil(t, result.Statistics)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "statistics failed")
	})

	t.Run("mocked activities", func(t *testing.T) {
		testSuite := &testsuite.WorkflowTestSuite{}
		env := testSuite.NewTestWorkflowEnvironment()
		env.RegisterWorkflow(ExpirySweepWorkflow)
		acts := &Activities{Index: &stubLifecycle{}}
		env.RegisterActivity(acts)

		env.OnActivity(acts.CleanupExpiredActivity, mock.Anything).Return(7, nil).Once()
		env.OnActivity(acts.StatisticsActivity, mock.Anything).
			Return(&docindex.Statistics{TotalChunks: 3, ExpiredChunks: 0}, nil).Once()

		env.ExecuteWorkflow(ExpirySweepWorkflow, SweepInput{})
		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result SweepResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, 7, result.Removed)
		require.NotNil(t, result.Statistics)
		assert.Equal(t, 3, result.Statistics.TotalChunks)
		env.AssertExpectations(t)
	})
}

func TestCleanupExpiredActivity_RealIndex(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }

	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Collection: "sweep_test"}, nil)
	require.NoError(t, err)
	svc, err := docindex.New(ctx, idx, embeddings.NewFakeProvider(32), chunking.New(), docindex.WithClock(clock))
	require.NoError(t, err)

	one := 1
	_, err = svc.AddOrUpdate(ctx, docindex.AddRequest{Source: "short.txt", Content: []byte("expires tomorrow"), ExpiryDays: &one})
	require.NoError(t, err)
	_, err = svc.AddOrUpdate(ctx, docindex.AddRequest{Source: "long.txt", Content: []byte("kept forever")})
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	acts := &Activities{Index: svc}
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.CleanupExpiredActivity)
	require.NoError(t, err)
	var removed int
	require.NoError(t, val.Get(&removed))
	assert.Equal(t, 1, removed)

	val, err = env.ExecuteActivity(acts.StatisticsActivity)
	require.NoError(t, err)
	var stats docindex.Statistics
	require.NoError(t, val.Get(&stats))
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.LatestVersionChunks)
	assert.Zero(t, stats.ExpiredChunks)
}

func TestSweepScheduleOptions(t *testing.T) {
	opts := SweepScheduleOptions("maintenance", time.Hour)
	assert.Equal(t, SweepScheduleID, opts.ID)
	require.Len(t, opts.Spec.Intervals, 1)
	assert.Equal(t, time.Hour, opts.Spec.Intervals[0].Every)

	action, ok := opts.Action.(*client.ScheduleWorkflowAction)
	require.True(t, ok)
	assert.Equal(t, "maintenance", action.TaskQueue)
	assert.Equal(t, []interface{}{SweepInput{}}, action.Args)
}

func TestEnsureSweepSchedule_RejectsNonPositiveInterval(t *testing.T) {
	err := EnsureSweepSchedule(context.Background(), nil, "q", 0)
	assert.Error(t, err)
}

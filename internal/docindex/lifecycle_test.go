package docindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tempora/internal/events"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

func TestCleanupExpired_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "keep.txt", "permanent record")
	_, err := f.svc.AddOrUpdate(ctx, AddRequest{
		Source: "gone.txt", Content: []byte("short lived"), ExpiryDays: days(0),
	})
	require.NoError(t, err)

	// Zero days is due at once: no clock tick is needed.
	st, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalChunks)
	assert.Equal(t, 1, st.ExpiredChunks)

	req := DefaultSearchRequest("short lived")
	req.Sources = []string{"gone.txt"}
	hits, err := f.svc.Search(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err = f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Statistics{TotalChunks: 1, LatestVersionChunks: 1, ExpiredChunks: 0}, st)

	expired := f.events.OfType(events.DocumentExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, 1, expired[0].Removed)
}

func TestCleanupExpired_NothingToDo(t *testing.T) {
	f := newFixture(t)
	n, err := f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.add(t, "a.txt", "never expires")
	f.clock.Advance(1000 * 24 * time.Hour)
	n, err = f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.events.OfType(events.DocumentExpired))
}

func TestCleanupExpired_BoundaryIsExclusive(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddOrUpdate(context.Background(), AddRequest{
		Source: "a.txt", Content: []byte("x"), ExpiryDays: days(1),
	})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	n, err := f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "expiry_at == now is not yet removed")

	f.clock.Advance(time.Millisecond)
	n, err = f.svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCleanupExpired_DeleteFailure(t *testing.T) {
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Collection: "cleanup_fail"}, nil)
	require.NoError(t, err)
	f := newFixtureWithIndex(t, &flakyIndex{Index: idx, deleteErr: errors.New("unavailable")})

	_, err = f.svc.CleanupExpired(context.Background())
	assert.Error(t, err)
}

func TestStatistics_CountsVersions(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "a.txt", threeParagraphs)
	b := f.add(t, "b.txt", "one chunk")

	st, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.ChunkCount+b.ChunkCount, st.TotalChunks)
	assert.Equal(t, st.TotalChunks, st.LatestVersionChunks)
	assert.Zero(t, st.ExpiredChunks)
}

func TestSweeper_Disabled(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		NewSweeper(f.svc, 0).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper did not return")
	}
	f.logs.AssertLogged(t, zapcore.InfoLevel, "expiry sweeper disabled")
}

func TestSweeper_RemovesExpired(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddOrUpdate(context.Background(), AddRequest{
		Source: "a.txt", Content: []byte("x"), ExpiryDays: days(0),
	})
	require.NoError(t, err)
	f.clock.Advance(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(f.svc, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		n, err := f.index.Count(context.Background(), nil)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	f.logs.AssertLogged(t, zapcore.InfoLevel, "expiry sweeper stopped")
}

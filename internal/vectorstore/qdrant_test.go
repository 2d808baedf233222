package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/tempora/internal/logging"
)

func TestQdrantConfig_Defaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, DefaultCollection, cfg.Collection)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	require.NoError(t, cfg.Validate())

	cfg.Port = 70000
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Port = 6334
	cfg.Collection = "has space"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidCollectionName)
}

func TestToQdrantFilter(t *testing.T) {
	assert.Nil(t, toQdrantFilter(nil))

	f := toQdrantFilter(And(
		Eq(FieldSource, "a.txt"),
		Eq(FieldIsLatest, true),
		Ne(FieldExpiryAt, NeverExpires),
		Lt(FieldExpiryAt, int64(500)),
		Or(Eq(FieldVersion, 1), Eq(FieldVersion, 2)),
		In(FieldSource, "a.txt", "b.txt"),
	))
	require.Len(t, f.Must, 6)

	assert.Equal(t, "a.txt", f.Must[0].GetField().GetMatch().GetKeyword())
	assert.True(t, f.Must[1].GetField().GetMatch().GetBoolean())

	notFilter := f.Must[2].GetFilter()
	require.NotNil(t, notFilter)
	require.Len(t, notFilter.MustNot, 1)
	assert.Equal(t, int64(-1), notFilter.MustNot[0].GetField().GetMatch().GetInteger())

	rng := f.Must[3].GetField().GetRange()
	require.NotNil(t, rng)
	assert.Equal(t, float64(500), rng.GetLt())
	assert.Nil(t, rng.Gt)

	or := f.Must[4].GetFilter()
	require.NotNil(t, or)
	assert.Len(t, or.Should, 2)

	assert.Equal(t, []string{"a.txt", "b.txt"}, f.Must[5].GetField().GetMatch().GetKeywords().GetStrings())
}

func TestToQdrantFilter_SingleCond(t *testing.T) {
	f := toQdrantFilter(Eq(FieldSource, "x"))
	require.Len(t, f.Must, 1)

	f = toQdrantFilter(Ne(FieldSource, "x"))
	assert.Empty(t, f.Must)
	require.Len(t, f.MustNot, 1)
}

func TestPayloadRoundTrip(t *testing.T) {
	r := Record{
		ID:         "d_v3_abcd1234_2",
		DocID:      "d_v3_abcd1234",
		Text:       "hello",
		Source:     "d.txt",
		ChunkIndex: 2,
		Timestamp:  1234,
		Version:    3,
		ExpiryAt:   5678,
		IsLatest:   true,
		Metadata: map[string]any{
			"file_hash":  "ff",
			"chunk_info": map[string]any{"index": 2},
			"tags":       []string{"x", "y"},
		},
	}
	payload, err := recordPayload(&r)
	require.NoError(t, err)

	got, err := recordFromPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.DocID, got.DocID)
	assert.Equal(t, r.ChunkIndex, got.ChunkIndex)
	assert.Equal(t, r.ExpiryAt, got.ExpiryAt)
	assert.True(t, got.IsLatest)
	assert.Equal(t, "ff", got.Metadata["file_hash"])
	assert.Equal(t, []any{"x", "y"}, got.Metadata["tags"])
	info, ok := got.Metadata["chunk_info"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, info["index"])

	_, err = recordFromPayload(map[string]*qdrant.Value{})
	assert.Error(t, err)
}

func TestPointID_Stable(t *testing.T) {
	assert.Equal(t, pointID("a_0"), pointID("a_0"))
	assert.NotEqual(t, pointID("a_0"), pointID("a_1"))
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("plain")))
	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.False(t, IsTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "gone")))
}

func TestRetrier(t *testing.T) {
	ctx := context.Background()
	log := logging.NewTestLogger()
	r := retrier{backend: "test", maxRetries: 2, backoff: time.Millisecond, logger: log.Logger}

	calls := 0
	err := r.do(ctx, "op", func() error {
		calls++
		if calls < 3 {
			return status.Error(grpccodes.Unavailable, "down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, log.FilterMessage("index operation recovered after retries").Len())

	calls = 0
	err = r.do(ctx, "op", func() error {
		calls++
		return status.Error(grpccodes.InvalidArgument, "bad")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = r.do(ctx, "op", func() error {
		calls++
		return status.Error(grpccodes.Unavailable, "down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 2 retries")
}

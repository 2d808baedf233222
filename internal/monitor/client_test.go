package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
)

func TestStatsClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/stats":
			_, _ = w.Write([]byte(`{"total_chunks":5,"latest_version_chunks":3,"expired_chunks":1}`))
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewStatsClient(srv.URL + "/")
	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &docindex.Statistics{TotalChunks: 5, LatestVersionChunks: 3, ExpiredChunks: 1}, st)
	assert.NoError(t, c.Health(context.Background()))
}

func TestStatsClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewStatsClient(srv.URL)
	_, err := c.Stats(context.Background())
	assert.ErrorContains(t, err, "unexpected status code 500")
	assert.ErrorContains(t, c.Health(context.Background()), "degraded")
}

package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tempora/internal/chunking"
	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/embeddings"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

type stubDocuments struct {
	addReq   docindex.AddRequest
	addErr   error
	search   docindex.SearchRequest
	err      error
	removed  int
	stats    docindex.Statistics
	blockFor time.Duration
}

func (s *stubDocuments) AddOrUpdate(_ context.Context, req docindex.AddRequest) (*docindex.AddResult, error) {
	s.addReq = req
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &docindex.AddResult{DocID: "d", Version: 1, ChunkCount: 1, Action: docindex.ActionCreated}, nil
}

func (s *stubDocuments) Search(ctx context.Context, req docindex.SearchRequest) ([]docindex.SearchResult, error) {
	s.search = req
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.blockFor > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.blockFor):
		}
	}
	return nil, s.err
}

func (s *stubDocuments) CleanupExpired(context.Context) (int, error) {
	return s.removed, s.err
}

func (s *stubDocuments) Statistics(context.Context) (*docindex.Statistics, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.stats, nil
}

func jsonRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func postJSON(t *testing.T, h http.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, target, bytes.NewReader(raw)))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newStubServer(t *testing.T, docs *stubDocuments, cfg *Config) *Server {
	t.Helper()
	s, err := NewServer(docs, logging.Nop(), cfg)
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s := newStubServer(t, &stubDocuments{}, nil)
		assert.Equal(t, "127.0.0.1", s.config.Host)
		assert.Equal(t, 9191, s.config.Port)
		assert.NotNil(t, s.locks)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&stubDocuments{}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when index is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.Nop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	s := newStubServer(t, &stubDocuments{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newStubServer(t, &stubDocuments{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHandleAddDocument(t *testing.T) {
	t.Run("plain content", func(t *testing.T) {
		docs := &stubDocuments{}
		s := newStubServer(t, docs, nil)
		days := 3
		rec := postJSON(t, s.Handler(), "/api/v1/documents", map[string]any{
			"source":      "docs/a.md",
			"content":     "hello",
			"expiry_days": days,
			"metadata":    map[string]any{"team": "core"},
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "docs/a.md", docs.addReq.Source)
		assert.Equal(t, []byte("hello"), docs.addReq.Content)
		require.NotNil(t, docs.addReq.ExpiryDays)
		assert.Equal(t, days, *docs.addReq.ExpiryDays)
		assert.Equal(t, "core", docs.addReq.Metadata["team"])
		assert.Equal(t, docindex.ActionCreated, decode[docindex.AddResult](t, rec).Action)
	})

	t.Run("base64 content", func(t *testing.T) {
		docs := &stubDocuments{}
		s := newStubServer(t, docs, nil)
		raw := []byte{0x25, 0x50, 0x44, 0x46}
		rec := postJSON(t, s.Handler(), "/api/v1/documents", map[string]any{
			"source":         "a.pdf",
			"content_base64": base64.StdEncoding.EncodeToString(raw),
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, raw, docs.addReq.Content)
	})

	t.Run("rejects bad bodies", func(t *testing.T) {
		cases := map[string]any{
			"no content":   map[string]any{"source": "a"},
			"both content": map[string]any{"source": "a", "content": "x", "content_base64": "eA=="},
			"bad base64":   map[string]any{"source": "a", "content_base64": "%%%"},
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				s := newStubServer(t, &stubDocuments{}, nil)
				rec := postJSON(t, s.Handler(), "/api/v1/documents", body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		s := newStubServer(t, &stubDocuments{}, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation error is a bad request", func(t *testing.T) {
		docs := &stubDocuments{addErr: docindex.ErrInvalidSource}
		s := newStubServer(t, docs, nil)
		rec := postJSON(t, s.Handler(), "/api/v1/documents", map[string]any{"source": "", "content": "x"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), docindex.ErrInvalidSource.Error())
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		logger := logging.NewTestLogger()
		s, err := NewServer(&stubDocuments{addErr: errors.New("qdrant: connection refused at 10.0.0.7")}, logger.Logger, nil)
		require.NoError(t, err)
		rec := postJSON(t, s.Handler(), "/api/v1/documents", map[string]any{"source": "a", "content": "x"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.7")
		logger.AssertLogged(t, zapcore.ErrorLevel, "add document failed")
	})
}

func TestHandleSearch(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		docs := &stubDocuments{}
		s := newStubServer(t, docs, nil)
		rec := postJSON(t, s.Handler(), "/api/v1/search", map[string]any{"query": "refunds"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, docindex.DefaultSearchRequest("refunds"), docs.search)
		resp := decode[SearchResponse](t, rec)
		assert.NotNil(t, resp.Results)
		assert.Zero(t, resp.Count)
	})

	t.Run("passes explicit fields", func(t *testing.T) {
		docs := &stubDocuments{}
		s := newStubServer(t, docs, nil)
		rec := postJSON(t, s.Handler(), "/api/v1/search", map[string]any{
			"query":           "refunds",
			"top_k":           2,
			"only_latest":     false,
			"exclude_expired": false,
			"time_range":      map[string]any{"start": 10, "end": 20},
			"exact_version":   1,
			"sources":         []string{"a.txt"},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, docs.search.TopK)
		assert.False(t, docs.search.OnlyLatest)
		assert.False(t, docs.search.ExcludeExpired)
		assert.Equal(t, &docindex.TimeRange{Start: 10, End: 20}, docs.search.TimeRange)
		require.NotNil(t, docs.search.ExactVersion)
		assert.Equal(t, 1, *docs.search.ExactVersion)
		assert.Equal(t, []string{"a.txt"}, docs.search.Sources)
	})

	t.Run("invalid requests", func(t *testing.T) {
		cases := map[string]map[string]any{
			"empty query": {"query": " "},
			"zero top_k":  {"query": "q", "top_k": 0},
			"bad range":   {"query": "q", "time_range": map[string]any{"start": 5, "end": 1}},
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				s := newStubServer(t, &stubDocuments{}, nil)
				rec := postJSON(t, s.Handler(), "/api/v1/search", body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("request timeout", func(t *testing.T) {
		docs := &stubDocuments{blockFor: time.Second}
		s := newStubServer(t, docs, &Config{RequestTimeout: 20 * time.Millisecond})
		rec := postJSON(t, s.Handler(), "/api/v1/search", map[string]any{"query": "q"})
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestHandleMaintenance(t *testing.T) {
	docs := &stubDocuments{removed: 7, stats: docindex.Statistics{TotalChunks: 3, LatestVersionChunks: 2, ExpiredChunks: 1}}
	s := newStubServer(t, docs, nil)

	rec := postJSON(t, s.Handler(), "/api/v1/maintenance/cleanup", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decode[CleanupResponse](t, rec).Removed)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docs.stats, decode[docindex.Statistics](t, rec))

	docs.err = errors.New("down")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_WithDocIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Collection: "http_test"}, nil)
	require.NoError(t, err)
	svc, err := docindex.New(ctx, idx, embeddings.NewFakeProvider(64), chunking.New())
	require.NoError(t, err)

	s, err := NewServer(svc, logging.Nop(), nil)
	require.NoError(t, err)
	h := s.Handler()

	rec := postJSON(t, h, "/api/v1/documents", map[string]any{"source": "policy.txt", "content": "refunds within thirty days"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[docindex.AddResult](t, rec)
	assert.Equal(t, 1, first.Version)

	rec = postJSON(t, h, "/api/v1/documents", map[string]any{"source": "policy.txt", "content": "refunds within thirty days"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docindex.ActionUnchanged, decode[docindex.AddResult](t, rec).Action)

	rec = postJSON(t, h, "/api/v1/documents", map[string]any{"source": "policy.txt", "content": "refunds within sixty days"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, decode[docindex.AddResult](t, rec).Version)

	rec = postJSON(t, h, "/api/v1/search", map[string]any{"query": "refunds"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SearchResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 2, resp.Results[0].Version)
	assert.Equal(t, "refunds within sixty days", resp.Results[0].Text)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[docindex.Statistics](t, rec)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.LatestVersionChunks)
}

package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AddDocumentRequest is the request body for POST /api/v1/documents.
// Exactly one of Content and ContentBase64 is set.
type AddDocumentRequest struct {
	Source          string         `json:"source"`
	Content         *string        `json:"content,omitempty"`
	ContentBase64   string         `json:"content_base64,omitempty"`
	ExpiryDays      *int           `json:"expiry_days,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ForceNewVersion bool           `json:"force_new_version,omitempty"`
}

// SearchRequestBody is the request body for POST /api/v1/search. Omitted
// fields take the defaults of docindex.DefaultSearchRequest.
type SearchRequestBody struct {
	Query          string              `json:"query"`
	TopK           *int                `json:"top_k,omitempty"`
	OnlyLatest     *bool               `json:"only_latest,omitempty"`
	ExcludeExpired *bool               `json:"exclude_expired,omitempty"`
	TimeRange      *docindex.TimeRange `json:"time_range,omitempty"`
	ExactVersion   *int                `json:"exact_version,omitempty"`
	Sources        []string            `json:"sources,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []docindex.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

// CleanupResponse is the response body for POST /api/v1/maintenance/cleanup.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAddDocument(c echo.Context) error {
	var req AddDocumentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid document request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var content []byte
	switch {
	case req.Content != nil && req.ContentBase64 != "":
		return echo.NewHTTPError(http.StatusBadRequest, "content and content_base64 are mutually exclusive")
	case req.Content != nil:
		content = []byte(*req.Content)
	case req.ContentBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "content_base64 is not valid base64")
		}
		content = raw
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "content or content_base64 is required")
	}

	ctx := c.Request().Context()
	s.metrics.recordDocument(ctx, len(content))
	unlock := s.locks.Lock(sanitize.String(req.Source))
	res, err := s.docs.AddOrUpdate(ctx, docindex.AddRequest{
		Source:          req.Source,
		Content:         content,
		ExpiryDays:      req.ExpiryDays,
		Metadata:        req.Metadata,
		ForceNewVersion: req.ForceNewVersion,
	})
	unlock()
	if err != nil {
		return s.apiError(ctx, "add document", err)
	}

	status := http.StatusOK
	if res.Action == docindex.ActionCreated || res.Action == docindex.ActionUpdated {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func (s *Server) handleSearch(c echo.Context) error {
	var body SearchRequestBody
	if err := c.Bind(&body); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req := docindex.DefaultSearchRequest(body.Query)
	if body.TopK != nil {
		req.TopK = *body.TopK
	}
	if body.OnlyLatest != nil {
		req.OnlyLatest = *body.OnlyLatest
	}
	if body.ExcludeExpired != nil {
		req.ExcludeExpired = *body.ExcludeExpired
	}
	req.TimeRange = body.TimeRange
	req.ExactVersion = body.ExactVersion
	req.Sources = body.Sources

	ctx := c.Request().Context()
	results, err := s.docs.Search(ctx, req)
	if err != nil {
		return s.apiError(ctx, "search", err)
	}
	if results == nil {
		results = []docindex.SearchResult{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleCleanup(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := s.docs.CleanupExpired(ctx)
	if err != nil {
		return s.apiError(ctx, "cleanup", err)
	}
	return c.JSON(http.StatusOK, CleanupResponse{Removed: n})
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.docs.Statistics(ctx)
	if err != nil {
		return s.apiError(ctx, "statistics", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// apiError maps index errors to HTTP errors. Only validation messages are
// returned to clients.
func (s *Server) apiError(ctx context.Context, op string, err error) error {
	switch {
	case docindex.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn(ctx, op+" timed out", zap.Error(err))
		return echo.NewHTTPError(http.StatusGatewayTimeout, op+" timed out")
	}
	s.logger.Error(ctx, op+" failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, op+" failed")
}

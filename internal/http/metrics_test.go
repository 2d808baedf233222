package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/tempora/internal/logging"
)

func TestHTTPMetrics_LabelsByOperation(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := NewHTTPMetrics(mp.Meter(httpInstrumentationName), logging.Nop())

	server, err := NewServer(&stubDocuments{}, logging.Nop(), nil, WithMetrics(m))
	require.NoError(t, err)

	for _, r := range []*http.Request{
		jsonRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(`{"source":"a.txt","content":"hello"}`)),
		jsonRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":""}`)),
		httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/nope", nil),
	} {
		server.Handler().ServeHTTP(httptest.NewRecorder(), r)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	requests := map[string]int64{}
	var docBytes metricdata.HistogramDataPoint[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			switch md.Name {
			case "tempora.http.requests_total":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					op, _ := dp.Attributes.Value("operation")
					class, _ := dp.Attributes.Value("status_class")
					requests[op.AsString()+" "+class.AsString()] += dp.Value
				}
			case "tempora.http.document_bytes":
				hist, ok := md.Data.(metricdata.Histogram[int64])
				require.True(t, ok)
				require.Len(t, hist.DataPoints, 1)
				docBytes = hist.DataPoints[0]
			}
		}
	}

	assert.True(t, found["tempora.http.request_duration_seconds"])
	assert.True(t, found["tempora.http.in_flight_requests"])
	assert.Equal(t, map[string]int64{
		"add_or_update 2xx":  1,
		"search 4xx":         1,
		"get_statistics 2xx": 1,
		"health 2xx":         1,
		"unmatched 4xx":      1,
	}, requests)
	assert.Equal(t, uint64(1), docBytes.Count)
	assert.Equal(t, int64(len("hello")), docBytes.Sum)
}

func TestHTTPMetrics_EveryAPIRouteHasAnOperation(t *testing.T) {
	server, err := NewServer(&stubDocuments{}, logging.Nop(), nil)
	require.NoError(t, err)

	for _, r := range server.echo.Routes() {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			continue
		}
		assert.NotEqual(t, opUnmatched, operationFor(r.Path), r.Path)
	}
}

func TestOperationFor(t *testing.T) {
	tests := map[string]string{
		"/api/v1/documents":           opAddOrUpdate,
		"/api/v1/search":              opSearch,
		"/api/v1/maintenance/cleanup": opCleanupExpired,
		"/api/v1/stats":               opStatistics,
		"":                            opUnmatched,
		"/api/v1/*":                   opUnmatched,
	}
	for route, want := range tests {
		assert.Equal(t, want, operationFor(route), route)
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusCreated))
	assert.Equal(t, "4xx", statusClass(http.StatusBadRequest))
	assert.Equal(t, "5xx", statusClass(http.StatusServiceUnavailable))
	assert.Equal(t, "unknown", statusClass(0))
}

func TestHTTPMetrics_NilIsSafe(t *testing.T) {
	var m *HTTPMetrics
	assert.NotPanics(t, func() { m.recordDocument(context.Background(), 10) })
}

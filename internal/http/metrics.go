package http

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/tempora/internal/http"

// Index operations, as used in the operation label.
const (
	opAddOrUpdate    = "add_or_update"
	opSearch         = "search"
	opCleanupExpired = "cleanup_expired"
	opStatistics     = "get_statistics"
	opHealth         = "health"
	opScrape         = "metrics"
	opUnmatched      = "unmatched"
)

// routeOperations maps echo route templates to the operation they serve.
var routeOperations = map[string]string{
	"/api/v1/documents":           opAddOrUpdate,
	"/api/v1/search":              opSearch,
	"/api/v1/maintenance/cleanup": opCleanupExpired,
	"/api/v1/stats":               opStatistics,
	"/health":                     opHealth,
	"/metrics":                    opScrape,
}

// HTTPMetrics records API traffic per index operation.
type HTTPMetrics struct {
	logger        *logging.Logger
	requests      metric.Int64Counter
	duration      metric.Float64Histogram
	inFlight      metric.Int64UpDownCounter
	documentBytes metric.Int64Histogram
}

// NewHTTPMetrics creates instruments on meter. A nil meter uses the global
// provider.
func NewHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	m := &HTTPMetrics{logger: logger}

	var err error
	m.requests, err = meter.Int64Counter(
		"tempora.http.requests_total",
		metric.WithDescription("API requests by index operation and status class (2xx, 4xx, 5xx)."),
		metric.WithUnit("{request}"),
	)
	m.warn("requests counter", err)

	m.duration, err = meter.Float64Histogram(
		"tempora.http.request_duration_seconds",
		metric.WithDescription("API request duration by index operation and status class."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	m.warn("duration histogram", err)

	m.inFlight, err = meter.Int64UpDownCounter(
		"tempora.http.in_flight_requests",
		metric.WithDescription("API requests currently being served, by index operation."),
		metric.WithUnit("{request}"),
	)
	m.warn("in-flight counter", err)

	m.documentBytes, err = meter.Int64Histogram(
		"tempora.http.document_bytes",
		metric.WithDescription("Decoded size of documents submitted for ingestion."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<10, 16<<10, 128<<10, 1<<20, 4<<20, 16<<20, 32<<20),
	)
	m.warn("document size histogram", err)

	return m
}

func (m *HTTPMetrics) warn(instrument string, err error) {
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create "+instrument, zap.Error(err))
	}
}

// MetricsMiddleware returns an Echo middleware that records request metrics
// labeled by the operation behind the matched route.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			op := operationFor(c.Path())
			opAttr := attribute.String("operation", op)

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1, metric.WithAttributes(opAttr))
				defer m.inFlight.Add(ctx, -1, metric.WithAttributes(opAttr))
			}

			err := next(c)

			attrs := metric.WithAttributes(opAttr, attribute.String("status_class", statusClass(c.Response().Status)))
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

// recordDocument records the decoded size of an ingested document.
func (m *HTTPMetrics) recordDocument(ctx context.Context, n int) {
	if m == nil || m.documentBytes == nil {
		return
	}
	m.documentBytes.Record(ctx, int64(n))
}

// operationFor returns the operation served by route, or "unmatched" for
// requests no route accepted.
func operationFor(route string) string {
	if op, ok := routeOperations[route]; ok {
		return op
	}
	return opUnmatched
}

// statusClass buckets an HTTP status code, e.g. 404 -> "4xx".
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

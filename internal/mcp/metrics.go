package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
)

const instrumentationName = "github.com/fyrsmithlabs/tempora/internal/mcp"

// Tool call outcomes, as used in the outcome label.
const (
	outcomeOK         = "ok"
	outcomeInvalid    = "validation_error"
	outcomeCanceled   = "canceled"
	outcomeTimeout    = "timeout"
	outcomeLatestless = "latestless"
	outcomeEmbedding  = "embedding_error"
	outcomeInternal   = "internal_error"
)

// Metrics records tool calls by tool and outcome.
type Metrics struct {
	logger   *logging.Logger
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates instruments on meter. A nil meter uses the global
// provider.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	m := &Metrics{logger: logger}

	var err error
	m.calls, err = meter.Int64Counter(
		"tempora.mcp.tool.calls_total",
		metric.WithDescription("MCP tool calls by tool and outcome."),
		metric.WithUnit("{call}"),
	)
	m.warn("calls counter", err)

	m.duration, err = meter.Float64Histogram(
		"tempora.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call duration by tool and outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120),
	)
	m.warn("duration histogram", err)

	m.inFlight, err = meter.Int64UpDownCounter(
		"tempora.mcp.tool.in_flight",
		metric.WithDescription("MCP tool calls currently running, by tool."),
		metric.WithUnit("{call}"),
	)
	m.warn("in-flight counter", err)

	return m
}

func (m *Metrics) warn(instrument string, err error) {
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create "+instrument, zap.Error(err))
	}
}

// begin marks a call to tool as running. The returned func ends it and
// records its outcome.
func (m *Metrics) begin(ctx context.Context, tool string) func(error) {
	start := time.Now()
	toolAttr := attribute.String("tool", tool)
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}
	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		}
		attrs := metric.WithAttributes(toolAttr, attribute.String("outcome", outcome(err)))
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}

// outcome classifies err by the sentinel errors of the index and its inputs.
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case docindex.IsValidation(err),
		errors.Is(err, sanitize.ErrEmptyPath),
		errors.Is(err, sanitize.ErrPathTraversal):
		return outcomeInvalid
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	case errors.Is(err, docindex.ErrLatestless):
		return outcomeLatestless
	case errors.Is(err, docindex.ErrEmbeddingFailed):
		return outcomeEmbedding
	default:
		return outcomeInternal
	}
}

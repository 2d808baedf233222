package docindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/chunking"
	"github.com/fyrsmithlabs/tempora/internal/embeddings"
	"github.com/fyrsmithlabs/tempora/internal/events"
	"github.com/fyrsmithlabs/tempora/internal/filereader"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/redact"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

var tracer = otel.Tracer("tempora.docindex")

// DefaultEmbedWorkers bounds concurrent embedding calls per ingestion.
const DefaultEmbedWorkers = 4

// Service implements the temporal document index over a vector index.
type Service struct {
	index     vectorstore.Index
	embedder  embeddings.Embedder
	splitter  chunking.Splitter
	reader    *filereader.Reader
	redactor  *redact.Redactor
	publisher events.Publisher
	logger    *logging.Logger
	now       func() time.Time
	workers   int
	dim       int
}

// Option configures a Service.
type Option func(*Service)

// WithReader sets the file reader used to decode content.
func WithReader(r *filereader.Reader) Option {
	return func(s *Service) { s.reader = r }
}

// WithRedactor enables secret redaction of chunk text before embedding.
func WithRedactor(r *redact.Redactor) Option {
	return func(s *Service) { s.redactor = r }
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEmbedWorkers bounds concurrent per-chunk embedding calls.
func WithEmbedWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// New probes the embedding dimension and ensures the collection exists with
// that dimension.
func New(ctx context.Context, index vectorstore.Index, embedder embeddings.Embedder, splitter chunking.Splitter, opts ...Option) (*Service, error) {
	if index == nil {
		return nil, errors.New("docindex: index is required")
	}
	if embedder == nil {
		return nil, errors.New("docindex: embedder is required")
	}
	if splitter == nil {
		return nil, errors.New("docindex: splitter is required")
	}

	s := &Service{
		index:    index,
		embedder: embedder,
		splitter: splitter,
		now:      time.Now,
		workers:  DefaultEmbedWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		s.reader = filereader.New()
	}
	if s.publisher == nil {
		s.publisher = events.Nop()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.workers <= 0 {
		s.workers = DefaultEmbedWorkers
	}

	dim, err := embeddings.ProbeDimension(ctx, embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if err := index.EnsureCollection(ctx, dim); err != nil {
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}
	s.dim = dim

	s.logger.Info(ctx, "document index ready",
		zap.Int("dimension", dim),
		zap.Int("embed_workers", s.workers),
		zap.Bool("redaction", s.redactor != nil),
	)
	return s, nil
}

// Dimension is the embedding dimension probed at startup.
func (s *Service) Dimension() int { return s.dim }

func (s *Service) nowMillis() int64 { return s.now().UnixMilli() }

// publish sends e, logging instead of failing.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "failed to publish event",
			zap.String("type", string(e.Type)),
			zap.String("source", e.Source),
			zap.Error(err),
		)
	}
}

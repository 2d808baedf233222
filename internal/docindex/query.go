package docindex

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/sanitize"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

// Validate checks req without touching the embedder or the index.
func (req SearchRequest) Validate() error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.TopK <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, req.TopK)
	}
	if req.TimeRange != nil && req.TimeRange.Start > req.TimeRange.End {
		return fmt.Errorf("%w: %d > %d", ErrInvalidTimeRange, req.TimeRange.Start, req.TimeRange.End)
	}
	return nil
}

// Search embeds req.Query once and returns up to req.TopK chunks matching
// every active option, best match first.
func (s *Service) Search(ctx context.Context, req SearchRequest) (_ []SearchResult, err error) {
	ctx, span := tracer.Start(ctx, "docindex.Search")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	vec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	filter := searchFilter(req, s.nowMillis())
	span.SetAttributes(
		attribute.Int("top_k", req.TopK),
		attribute.String("filter", vectorstore.FilterString(filter)),
	)

	hits, err := s.index.Search(ctx, vec, req.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			ID:         h.ID,
			Score:      h.Score,
			Text:       h.Text,
			Source:     h.Source,
			DocID:      h.DocID,
			ChunkIndex: h.ChunkIndex,
			Version:    h.Version,
			Timestamp:  h.Timestamp,
			ExpiryAt:   h.ExpiryAt,
			Metadata:   h.Metadata,
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(results)))
	s.logger.Debug(ctx, "search completed",
		zap.Int("top_k", req.TopK),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// searchFilter is the conjunction of the active options in req, evaluated
// at now. It is nil when no option is active.
func searchFilter(req SearchRequest, now int64) vectorstore.Filter {
	var parts []vectorstore.Filter
	if req.OnlyLatest {
		parts = append(parts, vectorstore.Eq(vectorstore.FieldIsLatest, true))
	}
	if req.ExcludeExpired {
		parts = append(parts, notExpired(now))
	}
	if tr := req.TimeRange; tr != nil {
		parts = append(parts,
			vectorstore.Gte(vectorstore.FieldTimestamp, tr.Start),
			vectorstore.Lte(vectorstore.FieldTimestamp, tr.End),
		)
	}
	if req.ExactVersion != nil {
		parts = append(parts, vectorstore.Eq(vectorstore.FieldVersion, *req.ExactVersion))
	}
	if len(req.Sources) > 0 {
		sources := make([]string, len(req.Sources))
		for i, src := range req.Sources {
			sources[i] = sanitize.String(src)
		}
		parts = append(parts, vectorstore.In(vectorstore.FieldSource, sources...))
	}
	return vectorstore.And(parts...)
}

func notExpired(now int64) vectorstore.Filter {
	return vectorstore.Or(
		vectorstore.Eq(vectorstore.FieldExpiryAt, NeverExpires),
		vectorstore.Gt(vectorstore.FieldExpiryAt, now),
	)
}

func expired(now int64) vectorstore.Filter {
	return vectorstore.And(
		vectorstore.Ne(vectorstore.FieldExpiryAt, NeverExpires),
		vectorstore.Lt(vectorstore.FieldExpiryAt, now),
	)
}

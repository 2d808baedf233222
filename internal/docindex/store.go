package docindex

import (
	"context"
	"errors"
	"fmt"
	"encoding/json"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/tempora/internal/events"
	"github.com/fyrsmithlabs/tempora/internal/fingerprint"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

// latest is what the index knows about the current version of a source.
type latest struct {
	version int
	hash    string
	docID   string
	chunks  int
}

// AddOrUpdate ingests req.Content as the newest version of req.Source.
//
// Unchanged content (by SHA-256) is a no-op unless ForceNewVersion is set.
// Empty or undecodable content is reported as ActionSkippedEmpty without
// any write. Otherwise the content is split and every chunk embedded before
// the previous latest version is deleted and the new chunks are inserted in
// one batch.
func (s *Service) AddOrUpdate(ctx context.Context, req AddRequest) (res *AddResult, err error) {
	ctx, span := tracer.Start(ctx, "docindex.AddOrUpdate")
	defer span.End()
	start := time.Now()
	defer func() {
		observeIngest(res, err, start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	source := sanitize.String(req.Source)
	if source == "" {
		return nil, ErrInvalidSource
	}
	if req.ExpiryDays != nil && *req.ExpiryDays < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidExpiry, *req.ExpiryDays)
	}
	if err := validateMetadata(req.Metadata); err != nil {
		return nil, err
	}
	ctx = logging.WithSource(ctx, source)
	span.SetAttributes(attribute.String("source", source), attribute.Int("content_bytes", len(req.Content)))

	hash := fingerprint.ContentHash(req.Content)
	prev, err := s.lookupLatest(ctx, source)
	if err != nil {
		return nil, err
	}
	if prev.version > 0 && prev.hash == hash && !req.ForceNewVersion {
		s.logger.Debug(ctx, "content unchanged", zap.Int("version", prev.version))
		return &AddResult{DocID: prev.docID, Version: prev.version, ChunkCount: prev.chunks, Action: ActionUnchanged}, nil
	}
	version := prev.version + 1

	text, err := s.reader.Decode(req.Content)
	if err != nil {
		s.logger.Info(ctx, "skipping unreadable content", zap.Error(err))
		return &AddResult{Action: ActionSkippedEmpty}, nil
	}
	chunks, err := s.splitter.Split(text)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", source, err)
	}
	if len(chunks) == 0 {
		return &AddResult{Action: ActionSkippedEmpty}, nil
	}

	now := s.nowMillis()
	expiry := NeverExpires
	if req.ExpiryDays != nil {
		expiry = expiryAt(now, *req.ExpiryDays)
	}
	docID := fingerprint.DocID(source, version)
	records := s.buildRecords(source, docID, version, hash, now, expiry, chunks, req.Metadata)

	if err := s.embedRecords(ctx, records); err != nil {
		return nil, err
	}

	// The old latest version goes first so the new one is never hidden
	// behind a second "latest" for the same source.
	if prev.version > 0 {
		if _, err := s.index.Delete(ctx, latestOf(source)); err != nil {
			return nil, fmt.Errorf("retiring version %d of %s: %w", prev.version, source, err)
		}
	}
	if err := s.persist(ctx, records); err != nil {
		if prev.version > 0 {
			latestlessTotal.Inc()
			s.logger.Error(ctx, "source left without a latest version",
				zap.String("source", source),
				zap.Int("retired_version", prev.version),
				zap.Int("version", version),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %s (retired version %d): %w", ErrLatestless, source, prev.version, err)
		}
		return nil, err
	}

	res = &AddResult{DocID: docID, Version: version, ChunkCount: len(records), Action: ActionCreated}
	eventType := events.DocumentCreated
	if prev.version > 0 {
		res.Action = ActionUpdated
		eventType = events.DocumentUpdated
	}
	span.SetAttributes(
		attribute.String("action", string(res.Action)),
		attribute.Int("version", version),
		attribute.Int("chunk_count", len(records)),
	)
	s.logger.Info(ctx, "document indexed",
		zap.String("doc_id", docID),
		zap.Int("version", version),
		zap.Int("chunks", len(records)),
		zap.String("action", string(res.Action)),
	)

	e := events.NewEvent(eventType, time.UnixMilli(now))
	e.Source = source
	e.DocID = docID
	e.Version = version
	e.ChunkCount = len(records)
	s.publish(ctx, e)
	return res, nil
}

// AddFile reads path and ingests it with path as the source. A file that
// cannot be read is skipped, not an error.
func (s *Service) AddFile(ctx context.Context, path string, opts AddOptions) (*AddResult, error) {
	if path == "" {
		return nil, ErrInvalidSource
	}
	raw, err := s.reader.ReadFile(path)
	if err != nil {
		s.logger.Info(ctx, "skipping unreadable file", zap.String("path", path), zap.Error(err))
		observeIngest(&AddResult{Action: ActionSkippedEmpty}, nil, time.Now())
		return &AddResult{Action: ActionSkippedEmpty}, nil
	}
	return s.AddOrUpdate(ctx, AddRequest{
		Source:          path,
		Content:         raw,
		ExpiryDays:      opts.ExpiryDays,
		Metadata:        opts.Metadata,
		ForceNewVersion: opts.ForceNewVersion,
	})
}

func latestOf(source string) vectorstore.Filter {
	return vectorstore.And(
		vectorstore.Eq(vectorstore.FieldSource, source),
		vectorstore.Eq(vectorstore.FieldIsLatest, true),
	)
}

// lookupLatest returns the version and content hash of the latest version
// of source, or the zero value for an unknown source. If concurrent writers
// left more than one latest version, the highest wins.
func (s *Service) lookupLatest(ctx context.Context, source string) (latest, error) {
	recs, err := s.index.Query(ctx, latestOf(source))
	if err != nil {
		return latest{}, fmt.Errorf("looking up latest version of %s: %w", source, err)
	}
	var out latest
	for _, r := range recs {
		if r.Version < out.version {
			continue
		}
		if r.Version > out.version {
			out = latest{version: r.Version, docID: r.DocID}
		}
		out.chunks++
		if h, ok := r.Metadata[MetaFileHash].(string); ok {
			out.hash = h
		}
	}
	return out, nil
}

// buildRecords stamps one record per chunk. Embeddings are filled in by
// embedRecords.
func (s *Service) buildRecords(source, docID string, version int, hash string, now, expiry int64, chunks []string, meta map[string]any) []vectorstore.Record {
	docMeta := sanitize.Map(meta)
	docMeta[MetaFileHash] = hash
	docMeta[MetaTotalChunks] = len(chunks)
	docMeta[MetaVersion] = version
	stem := sanitize.String(fingerprint.Stem(source))

	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		m := maps.Clone(docMeta)
		m[MetaChunkInfo] = map[string]any{"index": i}
		m[MetaOriginalName] = stem
		records[i] = vectorstore.Record{
			ID:         fingerprint.ChunkID(docID, i),
			DocID:      docID,
			Text:       strings.ToValidUTF8(chunk, ""),
			Source:     source,
			ChunkIndex: i,
			Timestamp:  now,
			Version:    version,
			ExpiryAt:   expiry,
			IsLatest:   true,
			Metadata:   m,
		}
	}
	return records
}

// embedRecords embeds every record's text with one call per chunk, at most
// s.workers at a time. Secrets are redacted first so they never reach the
// embedder or the index.
func (s *Service) embedRecords(ctx context.Context, records []vectorstore.Record) error {
	ctx, span := tracer.Start(ctx, "docindex.embedRecords", trace.WithAttributes(attribute.Int("chunks", len(records))))
	defer span.End()

	if s.redactor != nil {
		redacted := 0
		for i := range records {
			r := s.redactor.Redact(records[i].Text)
			if r.Redacted() {
				records[i].Text = r.Text
				redacted += len(r.Findings)
			}
		}
		if redacted > 0 {
			s.logger.Warn(ctx, "redacted secrets from document", zap.Int("findings", redacted))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range records {
		g.Go(func() error {
			vecs, err := s.embedder.EmbedDocuments(gctx, []string{records[i].Text})
			if err != nil {
				return fmt.Errorf("%w: chunk %d: %w", ErrEmbeddingFailed, i, err)
			}
			if len(vecs) != 1 || len(vecs[0]) == 0 {
				return fmt.Errorf("%w: chunk %d: no vector returned", ErrEmbeddingFailed, i)
			}
			records[i].Embedding = vecs[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Service) persist(ctx context.Context, records []vectorstore.Record) error {
	if err := s.index.Insert(ctx, records); err != nil {
		return fmt.Errorf("inserting %d chunks: %w", len(records), err)
	}
	if err := s.index.Flush(ctx); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	return nil
}

// isCanceled reports whether err came from the caller giving up.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// expiryAt stamps the expiry of a document ingested at now. Zero days is
// already past, so the chunks are hidden from search and removed by the next
// cleanup even within the same millisecond.
func expiryAt(now int64, days int) int64 {
	if days == 0 {
		return now - 1
	}
	return now + int64(days)*msPerDay
}

// validateMetadata rejects caller metadata that the index cannot encode,
// such as NaN or infinite floats. Backends store metadata as JSON.
func validateMetadata(meta map[string]any) error {
	if len(meta) == 0 {
		return nil
	}
	if _, err := json.Marshal(meta); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return nil
}

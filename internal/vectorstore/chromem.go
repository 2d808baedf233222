package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/config"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
)

var chromemTracer = otel.Tracer("tempora.vectorstore.chromem")

// ChromemConfig configures the embedded backend.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path       string
	Compress   bool
	Collection string
}

// ChromemIndex is an Index backed by an embedded chromem-go database.
// chromem-go only filters on exact string metadata, so every filter is
// evaluated in Go over the collection.
type ChromemIndex struct {
	db     *chromem.DB
	name   string
	logger *logging.Logger

	mu   sync.RWMutex
	coll *chromem.Collection
	dim  int
}

// NewChromemIndex opens (or creates) the database. The collection itself is
// created by EnsureCollection.
func NewChromemIndex(cfg ChromemConfig, logger *logging.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if !sanitize.IsCollectionName(cfg.Collection) {
		return nil, fmt.Errorf("%w: %q must match ^[a-z0-9_]{1,64}$", ErrInvalidCollectionName, cfg.Collection)
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := config.ExpandHome(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
		cfg.Path = path
	}

	logger.Info(context.Background(), "chromem index opened",
		zap.String("path", cfg.Path),
		zap.Bool("persistent", cfg.Path != ""),
		zap.String("collection", cfg.Collection),
	)
	return &ChromemIndex{db: db, name: cfg.Collection, logger: logger}, nil
}

// Records always carry their embeddings; a collection asked to embed text
// itself has been misused.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem index stores precomputed embeddings only")
}

func (c *ChromemIndex) EnsureCollection(ctx context.Context, dim int) (err error) {
	defer observe("chromem", "ensure_collection", time.Now(), &err)
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	coll, err := c.db.GetOrCreateCollection(c.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", c.name, err)
	}

	// An existing collection must have been built with the same dimension.
	if coll.Count() > 0 {
		probe := unitVector(dim)
		if _, err := coll.QueryEmbedding(ctx, probe, 1, nil, nil); err != nil {
			return fmt.Errorf("%w: collection %s rejects %d-dimensional vectors: %v", ErrDimensionMismatch, c.name, dim, err)
		}
	}

	c.coll = coll
	c.dim = dim
	c.logger.Debug(ctx, "chromem collection ready",
		zap.String("collection", c.name),
		zap.Int("dimension", dim),
		zap.Int("count", coll.Count()),
	)
	return nil
}

func (c *ChromemIndex) collection() (*chromem.Collection, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.coll == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, c.name)
	}
	return c.coll, c.dim, nil
}

func (c *ChromemIndex) Insert(ctx context.Context, records []Record) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Insert")
	defer span.End()
	defer observe("chromem", "insert", time.Now(), &err)
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		return ErrEmptyDocuments
	}
	coll, dim, err := c.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i := range records {
		r := &records[i]
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: record %s has %d dimensions, collection has %d", ErrDimensionMismatch, r.ID, len(r.Embedding), dim)
		}
		meta, err := r.toStrings()
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  meta,
			Embedding: r.Embedding,
			Content:   r.Text,
		}
	}

	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", c.name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Flush is a no-op: chromem persists each document as it is added.
func (c *ChromemIndex) Flush(context.Context) error {
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, vector []float32, k int, filter Filter) (hits []Hit, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()
	defer observe("chromem", "search", time.Now(), &err)
	span.SetAttributes(
		attribute.Int("k", k),
		attribute.String("filter", FilterString(filter)),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	coll, dim, err := c.collection()
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d", ErrDimensionMismatch, len(vector), dim)
	}

	ranked, err := c.rank(ctx, coll, vector)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, h := range ranked {
		if len(hits) == k {
			break
		}
		if Matches(filter, &h.Record) {
			hits = append(hits, h)
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}

// rank returns the whole collection ordered by similarity to vector.
func (c *ChromemIndex) rank(ctx context.Context, coll *chromem.Collection, vector []float32) ([]Hit, error) {
	n := coll.Count()
	if n == 0 {
		return nil, nil
	}
	results, err := coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", c.name, err)
	}
	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		rec, err := recordFromStrings(res.ID, res.Content, res.Embedding, res.Metadata)
		if err != nil {
			c.logger.Warn(ctx, "skipping malformed record", zap.String("id", res.ID), zap.Error(err))
			continue
		}
		hits = append(hits, Hit{Record: rec, Score: res.Similarity})
	}
	return hits, nil
}

func (c *ChromemIndex) Query(ctx context.Context, filter Filter) (out []Record, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()
	defer observe("chromem", "query", time.Now(), &err)
	span.SetAttributes(attribute.String("filter", FilterString(filter)))

	coll, dim, err := c.collection()
	if err != nil {
		return nil, err
	}
	all, err := c.rank(ctx, coll, unitVector(dim))
	if err != nil {
		return nil, err
	}
	for _, h := range all {
		if Matches(filter, &h.Record) {
			rec := h.Record
			rec.Embedding = nil
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, filter Filter) (n int, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Delete")
	defer span.End()
	defer observe("chromem", "delete", time.Now(), &err)
	span.SetAttributes(attribute.String("filter", FilterString(filter)))

	if filter == nil {
		return 0, ErrUnboundedDelete
	}
	coll, _, err := c.collection()
	if err != nil {
		return 0, err
	}
	matched, err := c.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	ids := make([]string, len(matched))
	for i, r := range matched {
		ids[i] = r.ID
	}
	if err := coll.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting from %s: %w", c.name, err)
	}
	span.SetAttributes(attribute.Int("deleted", len(ids)))
	return len(ids), nil
}

func (c *ChromemIndex) Count(ctx context.Context, filter Filter) (int, error) {
	if filter == nil {
		coll, _, err := c.collection()
		if err != nil {
			return 0, err
		}
		return coll.Count(), nil
	}
	recs, err := c.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Close is a no-op; persistent databases are written on every change.
func (c *ChromemIndex) Close() error {
	return nil
}

func unitVector(dim int) []float32 {
	v := make([]float32, dim)
	if dim > 0 {
		v[0] = 1
	}
	return v
}

var _ Index = (*ChromemIndex)(nil)

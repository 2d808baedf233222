package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
)

var qdrantTracer = otel.Tracer("tempora.vectorstore.qdrant")

// pointNamespace derives stable point UUIDs from chunk ids.
var pointNamespace = uuid.MustParse("6f1e7c1a-3b0e-4f53-9a57-1f4a3c6b2d10")

// QdrantConfig configures the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: localhost.
	Host string
	// Port is the gRPC port (not the 6333 REST port). Default: 6334.
	Port       int
	UseTLS     bool
	APIKey     string
	Collection string
	// MaxRetries bounds retries of transient gRPC failures. Default: 3.
	MaxRetries int
	// RetryBackoff is the first retry delay, doubled on each retry.
	RetryBackoff time.Duration
	// MaxMessageSize is the gRPC message cap in bytes. Default: 50MB.
	MaxMessageSize int
	DialTimeout    time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if !sanitize.IsCollectionName(c.Collection) {
		return fmt.Errorf("%w: %q must match ^[a-z0-9_]{1,64}$", ErrInvalidCollectionName, c.Collection)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// QdrantIndex is an Index backed by a Qdrant collection. Filters are
// translated to Qdrant filters and evaluated server side. Writes use
// wait=true, so Flush has nothing left to do.
type QdrantIndex struct {
	client *qdrant.Client
	cfg    QdrantConfig
	logger *logging.Logger
	retry  retrier

	mu    sync.RWMutex
	dim   int
	ready bool
}

// NewQdrantIndex connects to Qdrant and checks its health.
func NewQdrantIndex(cfg QdrantConfig, logger *logging.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	idx := &QdrantIndex{
		client: client,
		cfg:    cfg,
		logger: logger,
		retry:  retrier{backend: "qdrant", maxRetries: cfg.MaxRetries, backoff: cfg.RetryBackoff, logger: logger},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	logger.Info(ctx, "connecting to qdrant", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		logger.Error(ctx, "qdrant health check failed", zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.Error(err))
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	if !cfg.UseTLS {
		logger.Warn(ctx, "qdrant gRPC connection is plaintext")
	}
	return idx, nil
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, dim int) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.EnsureCollection")
	defer span.End()
	defer observe("qdrant", "ensure_collection", time.Now(), &err)
	span.SetAttributes(attribute.String("collection", q.cfg.Collection), attribute.Int("dimension", dim))

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}

	var exists bool
	if err := q.retry.do(ctx, "collection_exists", func() error {
		var e error
		exists, e = q.client.CollectionExists(ctx, q.cfg.Collection)
		return e
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", q.cfg.Collection, err)
	}

	if exists {
		var info *qdrant.CollectionInfo
		if err := q.retry.do(ctx, "collection_info", func() error {
			var e error
			info, e = q.client.GetCollectionInfo(ctx, q.cfg.Collection)
			return e
		}); err != nil {
			return fmt.Errorf("loading collection %s: %w", q.cfg.Collection, err)
		}
		if size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size != 0 && int(size) != dim {
			return fmt.Errorf("%w: collection %s has %d dimensions, embedder produces %d", ErrDimensionMismatch, q.cfg.Collection, size, dim)
		}
	} else {
		if err := q.retry.do(ctx, "create_collection", func() error {
			return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: q.cfg.Collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				}),
			})
		}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("creating collection %s: %w", q.cfg.Collection, err)
		}
		if err := q.createPayloadIndexes(ctx); err != nil {
			q.logger.Warn(ctx, "creating payload indexes failed", zap.Error(err))
		}
		q.logger.Info(ctx, "qdrant collection created", zap.String("collection", q.cfg.Collection), zap.Int("dimension", dim))
	}

	q.mu.Lock()
	q.dim = dim
	q.ready = true
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) createPayloadIndexes(ctx context.Context) error {
	fields := map[string]qdrant.FieldType{
		FieldSource:    qdrant.FieldType_FieldTypeKeyword,
		FieldIsLatest:  qdrant.FieldType_FieldTypeBool,
		FieldExpiryAt:  qdrant.FieldType_FieldTypeInteger,
		FieldTimestamp: qdrant.FieldType_FieldTypeInteger,
		FieldVersion:   qdrant.FieldType_FieldTypeInteger,
	}
	for name, typ := range fields {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.cfg.Collection,
			FieldName:      name,
			FieldType:      typ.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("indexing %s: %w", name, err)
		}
	}
	return nil
}

func (q *QdrantIndex) dimension() (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.ready {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, q.cfg.Collection)
	}
	return q.dim, nil
}

func (q *QdrantIndex) Insert(ctx context.Context, records []Record) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Insert")
	defer span.End()
	defer observe("qdrant", "insert", time.Now(), &err)
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		return ErrEmptyDocuments
	}
	dim, err := q.dimension()
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i := range records {
		r := &records[i]
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: record %s has %d dimensions, collection has %d", ErrDimensionMismatch, r.ID, len(r.Embedding), dim)
		}
		payload, err := recordPayload(r)
		if err != nil {
			return err
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: payload,
		}
	}

	err = q.retry.do(ctx, "upsert", func() error {
		_, e := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.cfg.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return e
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to %s: %w", q.cfg.Collection, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Flush is a no-op because every write waits for the server.
func (q *QdrantIndex) Flush(context.Context) error {
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int, filter Filter) (hits []Hit, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Search")
	defer span.End()
	defer observe("qdrant", "search", time.Now(), &err)
	span.SetAttributes(attribute.Int("k", k), attribute.String("filter", FilterString(filter)))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	dim, err := q.dimension()
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d", ErrDimensionMismatch, len(vector), dim)
	}

	var points []*qdrant.ScoredPoint
	err = q.retry.do(ctx, "search", func() error {
		var e error
		points, e = q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.cfg.Collection,
			Query:          qdrant.NewQuery(vector...),
			Filter:         toQdrantFilter(filter),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return e
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching %s: %w", q.cfg.Collection, err)
	}

	hits = make([]Hit, 0, len(points))
	for _, p := range points {
		rec, err := recordFromPayload(p.GetPayload())
		if err != nil {
			q.logger.Warn(ctx, "skipping malformed point", zap.Error(err))
			continue
		}
		hits = append(hits, Hit{Record: rec, Score: p.GetScore()})
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}

func (q *QdrantIndex) Query(ctx context.Context, filter Filter) (out []Record, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()
	defer observe("qdrant", "query", time.Now(), &err)
	span.SetAttributes(attribute.String("filter", FilterString(filter)))

	n, err := q.Count(ctx, filter)
	if err != nil || n == 0 {
		return nil, err
	}

	var points []*qdrant.RetrievedPoint
	err = q.retry.do(ctx, "scroll", func() error {
		var e error
		points, e = q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.cfg.Collection,
			Filter:         toQdrantFilter(filter),
			Limit:          qdrant.PtrOf(uint32(n)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return e
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scrolling %s: %w", q.cfg.Collection, err)
	}

	out = make([]Record, 0, len(points))
	for _, p := range points {
		rec, err := recordFromPayload(p.GetPayload())
		if err != nil {
			q.logger.Warn(ctx, "skipping malformed point", zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, filter Filter) (n int, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Delete")
	defer span.End()
	defer observe("qdrant", "delete", time.Now(), &err)
	span.SetAttributes(attribute.String("filter", FilterString(filter)))

	if filter == nil {
		return 0, ErrUnboundedDelete
	}
	n, err = q.Count(ctx, filter)
	if err != nil || n == 0 {
		return 0, err
	}

	err = q.retry.do(ctx, "delete", func() error {
		_, e := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.cfg.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelectorFilter(toQdrantFilter(filter)),
		})
		return e
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting from %s: %w", q.cfg.Collection, err)
	}
	span.SetAttributes(attribute.Int("deleted", n))
	return n, nil
}

func (q *QdrantIndex) Count(ctx context.Context, filter Filter) (int, error) {
	if _, err := q.dimension(); err != nil {
		return 0, err
	}
	var n uint64
	err := q.retry.do(ctx, "count", func() error {
		var e error
		n, e = q.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: q.cfg.Collection,
			Filter:         toQdrantFilter(filter),
			Exact:          qdrant.PtrOf(true),
		})
		return e
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", q.cfg.Collection, err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// pointID maps a chunk id to the UUID Qdrant requires. The chunk id itself
// is kept in the payload.
func pointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

var _ Index = (*QdrantIndex)(nil)

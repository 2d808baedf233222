package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/chunking"
	"github.com/fyrsmithlabs/tempora/internal/config"
	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/embeddings"
	"github.com/fyrsmithlabs/tempora/internal/events"
	"github.com/fyrsmithlabs/tempora/internal/filereader"
	"github.com/fyrsmithlabs/tempora/internal/ingest"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/redact"
	"github.com/fyrsmithlabs/tempora/internal/telemetry"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

// app holds everything a command needs to reach the index.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	tel       *telemetry.Telemetry
	provider  embeddings.Provider
	index     vectorstore.Index
	publisher events.Publisher
	svc       *docindex.Service
	locks     *ingest.KeyedMutex
	reader    *filereader.Reader
}

type appOptions struct {
	// logStderr keeps stdout free for command output or a stdio protocol.
	logStderr bool
	// events connects the NATS publisher when enabled in config.
	events bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, stderr bool) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Stderr = stderr
	lc.OTEL = cfg.Logging.OTEL
	lc.Sampling.Enabled = cfg.Logging.Sampling
	lc.Fields["version"] = version
	return logging.NewLogger(lc, global.GetLoggerProvider())
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	tc.SampleRate = cfg.Telemetry.SampleRate
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	return telemetry.New(ctx, tc)
}

// newApp wires config, logging, telemetry, embeddings, the vector index and
// the document service. Close releases them in reverse order.
func newApp(ctx context.Context, opts appOptions) (_ *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, publisher: events.Nop(), locks: ingest.NewKeyedMutex()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.tel, err = newTelemetry(ctx, cfg); err != nil {
		return nil, err
	}
	if a.logger, err = newLogger(cfg, opts.logStderr); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if degraded, terr := a.tel.Degraded(); degraded {
		a.logger.Warn(ctx, "telemetry degraded", zap.Error(terr))
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		Timeout:   cfg.Embeddings.Timeout.Duration(),
		RateLimit: cfg.Embeddings.RateLimit,
		Burst:     cfg.Embeddings.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	a.provider = embeddings.NewInstrumented(provider, cfg.Embeddings.Model,
		embeddings.NewMetrics(a.tel.Meter("github.com/fyrsmithlabs/tempora/internal/embeddings"), a.logger.Underlying()))

	if a.index, err = vectorstore.New(cfg.Index, a.logger); err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	a.reader = filereader.New(
		filereader.WithMaxSize(cfg.Ingest.MaxFileSize),
		filereader.WithFallbacks(cfg.Ingest.FallbackEncodings...),
	)
	svcOpts := []docindex.Option{
		docindex.WithLogger(a.logger),
		docindex.WithEmbedWorkers(cfg.Ingest.EmbedWorkers),
		docindex.WithReader(a.reader),
	}
	if cfg.Redact.Enabled {
		r, err := newRedactor(cfg.Redact)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, docindex.WithRedactor(r))
	}
	if opts.events && cfg.Events.Enabled {
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.Events.URL,
			SubjectPrefix: cfg.Events.SubjectPrefix,
			Name:          "tempora",
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connecting event publisher: %w", err)
		}
		a.publisher = pub
		svcOpts = append(svcOpts, docindex.WithPublisher(pub))
	}

	splitter := chunking.New(
		chunking.WithChunkSize(cfg.Chunking.Size),
		chunking.WithOverlap(cfg.Chunking.Overlap),
		chunking.WithSeparators(cfg.Chunking.Separators),
	)
	if a.svc, err = docindex.New(ctx, a.index, a.provider, splitter, svcOpts...); err != nil {
		return nil, err
	}
	a.logger.Debug(ctx, "document index ready",
		zap.String("index", cfg.Index.Provider),
		zap.String("collection", cfg.Index.Collection),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Int("dimension", a.svc.Dimension()),
	)
	return a, nil
}

func newRedactor(cfg config.RedactConfig) (*redact.Redactor, error) {
	var allow *redact.Allowlist
	if cfg.AllowlistPath != "" {
		path, err := config.ExpandHome(cfg.AllowlistPath)
		if err != nil {
			return nil, err
		}
		if allow, err = redact.LoadAllowlist(path); err != nil {
			return nil, fmt.Errorf("loading redaction allowlist: %w", err)
		}
	}
	r, err := redact.New(allow)
	if err != nil {
		return nil, fmt.Errorf("creating redactor: %w", err)
	}
	return r, nil
}

// batch returns a directory ingester sharing the app's per-source locks.
func (a *app) batch() *ingest.Batch {
	return ingest.NewBatch(a.svc, a.locks, a.logger).WithReader(a.reader)
}

// Close releases resources. It is safe on a partially built app.
func (a *app) Close() error {
	ctx := context.Background()
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	if a.tel != nil {
		errs = append(errs, a.tel.Shutdown(ctx))
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

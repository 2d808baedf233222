// Package config loads tempora configuration from defaults, an optional YAML
// file and TEMPORA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete tempora configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Index      IndexConfig      `koanf:"index"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Lifecycle  LifecycleConfig  `koanf:"lifecycle"`
	Events     EventsConfig     `koanf:"events"`
	Temporal   TemporalConfig   `koanf:"temporal"`
	Redact     RedactConfig     `koanf:"redact"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	BodyLimit       string   `koanf:"body_limit"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Provider        string   `koanf:"provider"` // chromem or qdrant
	Collection      string   `koanf:"collection"`
	ChromemPath     string   `koanf:"chromem_path"`
	ChromemCompress bool     `koanf:"chromem_compress"`
	QdrantHost      string   `koanf:"qdrant_host"`
	QdrantPort      int      `koanf:"qdrant_port"`
	QdrantTLS       bool     `koanf:"qdrant_tls"`
	QdrantAPIKey    Secret   `koanf:"qdrant_api_key"`
	MaxRetries      int      `koanf:"max_retries"`
	RetryBackoff    Duration `koanf:"retry_backoff"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider  string   `koanf:"provider"` // fastembed, tei or openai
	Model     string   `koanf:"model"`
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	CacheDir  string   `koanf:"cache_dir"`
	Timeout   Duration `koanf:"timeout"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int      `koanf:"burst"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	Size       int      `koanf:"size"`
	Overlap    int      `koanf:"overlap"`
	Separators []string `koanf:"separators"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	EmbedWorkers int      `koanf:"embed_workers"`
	Include      []string `koanf:"include"`
	Exclude      []string `koanf:"exclude"`
	MaxFileSize  int64    `koanf:"max_file_size"`
	Debounce     Duration `koanf:"debounce"`

	// FallbackEncodings are tried in order for files that are not valid
	// UTF-8. Names are WHATWG labels.
	FallbackEncodings []string `koanf:"fallback_encodings"`
}

// LifecycleConfig configures expiry sweeping.
type LifecycleConfig struct {
	SweepInterval Duration `koanf:"sweep_interval"` // 0 disables the in-process sweeper
}

// EventsConfig configures lifecycle event publishing over NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// TemporalConfig configures the maintenance worker.
type TemporalConfig struct {
	HostPort      string   `koanf:"host_port"`
	Namespace     string   `koanf:"namespace"`
	TaskQueue     string   `koanf:"task_queue"`
	SweepSchedule Duration `koanf:"sweep_schedule"`
}

// RedactConfig configures secret redaction of chunk text before embedding.
type RedactConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// LoggingConfig is the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	OTEL     bool   `koanf:"otel"`
	Sampling bool   `koanf:"sampling"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed to users.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
	ServiceName string  `koanf:"service_name"`
}

// DefaultSeparators prefer paragraph and sentence boundaries, including CJK
// sentence punctuation, before falling back to spaces and hard cuts.
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", "；", " ", ""}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
			RequestTimeout:  Duration(2 * time.Minute),
			BodyLimit:       "16M",
		},
		Index: IndexConfig{
			Provider:        "chromem",
			Collection:      "temporal_rag_documents",
			ChromemPath:     "~/.local/share/tempora/index",
			ChromemCompress: true,
			QdrantHost:      "localhost",
			QdrantPort:      6334,
			MaxRetries:      3,
			RetryBackoff:    Duration(time.Second),
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "BAAI/bge-small-en-v1.5",
			BaseURL:  "http://localhost:8080",
			Timeout:  Duration(30 * time.Second),
			Burst:    1,
		},
		Chunking: ChunkingConfig{
			Size:       500,
			Overlap:    50,
			Separators: append([]string(nil), DefaultSeparators...),
		},
		Ingest: IngestConfig{
			EmbedWorkers: 4,
			Include:      []string{"**/*"},
			Exclude:      []string{"**/.*", "**/.*/**", "**/*.meta.yaml"},
			MaxFileSize:  32 << 20,
			Debounce:     Duration(500 * time.Millisecond),

			FallbackEncodings: []string{"gb18030", "windows-1252"},
		},
		Events: EventsConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "tempora",
		},
		Temporal: TemporalConfig{
			HostPort:      "localhost:7233",
			Namespace:     "default",
			TaskQueue:     "tempora-maintenance",
			SweepSchedule: Duration(time.Hour),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sampling: true,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: "tempora",
		},
	}
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}

	switch c.Index.Provider {
	case "chromem":
		if c.Index.ChromemPath == "" {
			add("index.chromem_path is required for chromem")
		}
	case "qdrant":
		if c.Index.QdrantHost == "" {
			add("index.qdrant_host is required for qdrant")
		}
		if c.Index.QdrantPort <= 0 || c.Index.QdrantPort > 65535 {
			add("index.qdrant_port %d out of range", c.Index.QdrantPort)
		}
	default:
		add("index.provider must be chromem or qdrant, got %q", c.Index.Provider)
	}
	if c.Index.Collection == "" {
		add("index.collection is required")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai":
	default:
		add("embeddings.provider must be fastembed, tei or openai, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.RateLimit < 0 {
		add("embeddings.rate_limit must be >= 0")
	}

	if c.Chunking.Size <= 0 {
		add("chunking.size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		add("chunking.overlap must be in [0, size)")
	}

	if c.Ingest.EmbedWorkers <= 0 {
		add("ingest.embed_workers must be positive")
	}
	for _, name := range c.Ingest.FallbackEncodings {
		if enc, _ := charset.Lookup(name); enc == nil {
			add("ingest.fallback_encodings: unknown encoding %q", name)
		}
	}

	if c.Events.Enabled && c.Events.URL == "" {
		add("events.url is required when events are enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be between 0 and 1")
	}

	return errors.Join(errs...)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

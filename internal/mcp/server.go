package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/ingest"
	"github.com/fyrsmithlabs/tempora/internal/logging"
)

// Documents is the part of docindex.Service the tools call.
type Documents interface {
	AddOrUpdate(ctx context.Context, req docindex.AddRequest) (*docindex.AddResult, error)
	Search(ctx context.Context, req docindex.SearchRequest) ([]docindex.SearchResult, error)
	CleanupExpired(ctx context.Context) (int, error)
	Statistics(ctx context.Context) (*docindex.Statistics, error)
}

// Server is an MCP server backed by a document index.
type Server struct {
	mcp     *mcp.Server
	docs    Documents
	batch   *ingest.Batch
	locks   *ingest.KeyedMutex
	metrics *Metrics
	logger  *logging.Logger
	config  *Config
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "tempora")
	Name    string
	Version string
	Logger  *logging.Logger

	// Batch enables document_ingest_directory.
	Batch *ingest.Batch
	// Locks are shared with other ingestion surfaces. Nil creates a private set.
	Locks *ingest.KeyedMutex
	// AllowedRoot confines directory ingestion. Empty allows any path.
	AllowedRoot string
	// Meter receives tool call metrics. Nil uses the global provider.
	Meter metric.Meter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "tempora",
		Version: "dev",
		Logger:  logging.Nop(),
	}
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(cfg *Config, docs Documents) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if docs == nil {
		return nil, fmt.Errorf("document index is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	locks := cfg.Locks
	if locks == nil {
		locks = ingest.NewKeyedMutex()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		docs:    docs,
		batch:   cfg.Batch,
		locks:   locks,
		metrics: NewMetrics(cfg.Meter, cfg.Logger),
		logger:  cfg.Logger,
		config:  cfg,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server, for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/ingest"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
)

type ingestInput struct {
	Source          string         `json:"source" jsonschema:"Logical path identifying the document"`
	Content         string         `json:"content" jsonschema:"Document text"`
	ExpiryDays      *int           `json:"expiry_days,omitempty" jsonschema:"Days until the version expires; omit to keep it forever"`
	Metadata        map[string]any `json:"metadata,omitempty" jsonschema:"Extra metadata stored with every chunk"`
	ForceNewVersion bool           `json:"force_new_version,omitempty" jsonschema:"Write a new version even when content is unchanged"`
}

type ingestOutput struct {
	DocID      string `json:"doc_id" jsonschema:"Document id of the latest version"`
	Version    int    `json:"version" jsonschema:"Latest version number"`
	ChunkCount int    `json:"chunk_count" jsonschema:"Chunks in the latest version"`
	Action     string `json:"action" jsonschema:"created, updated, unchanged or skipped: empty"`
}

type ingestDirectoryInput struct {
	Path            string         `json:"path" jsonschema:"Directory to ingest"`
	Include         []string       `json:"include,omitempty" jsonschema:"Glob patterns of files to ingest"`
	Exclude         []string       `json:"exclude,omitempty" jsonschema:"Glob patterns of files to skip"`
	SourcePrefix    string         `json:"source_prefix,omitempty" jsonschema:"Prefix for sources; relative paths are used when set"`
	ExpiryDays      *int           `json:"expiry_days,omitempty" jsonschema:"Days until ingested versions expire"`
	Metadata        map[string]any `json:"metadata,omitempty" jsonschema:"Metadata for every file"`
	ForceNewVersion bool           `json:"force_new_version,omitempty" jsonschema:"Write new versions even for unchanged files"`
}

type ingestDirectoryOutput struct {
	Created   int                 `json:"created"`
	Updated   int                 `json:"updated"`
	Unchanged int                 `json:"unchanged"`
	Skipped   int                 `json:"skipped"`
	Failed    int                 `json:"failed"`
	Files     []ingest.FileResult `json:"files"`
}

type searchInput struct {
	Query          string              `json:"query" jsonschema:"Natural language query"`
	TopK           int                 `json:"top_k,omitempty" jsonschema:"Maximum results (default: 5)"`
	IncludeHistory bool                `json:"include_history,omitempty" jsonschema:"Also search superseded versions"`
	IncludeExpired bool                `json:"include_expired,omitempty" jsonschema:"Also search expired chunks"`
	TimeRange      *docindex.TimeRange `json:"time_range,omitempty" jsonschema:"Inclusive ingestion time bounds in Unix milliseconds"`
	ExactVersion   *int                `json:"exact_version,omitempty" jsonschema:"Only chunks of this version number"`
	Sources        []string            `json:"sources,omitempty" jsonschema:"Only chunks from these sources"`
}

type searchOutput struct {
	Results []docindex.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

type cleanupInput struct{}

type cleanupOutput struct {
	Removed int `json:"removed" jsonschema:"Expired chunks deleted"`
}

type statsInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_ingest",
		Description: "Add or update a document. Unchanged content keeps the current version; changed content becomes a new latest version.",
	}, s.handleIngest)

	if s.batch != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "document_ingest_directory",
			Description: "Ingest every matching file under a directory, honoring .gitignore and .temporaignore.",
		}, s.handleIngestDirectory)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_search",
		Description: "Semantic search over indexed documents. By default only the latest, unexpired version of each document is searched.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_cleanup_expired",
		Description: "Delete chunks whose expiry time has passed.",
	}, s.handleCleanup)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_stats",
		Description: "Count total, latest-version and expired chunks.",
	}, s.handleStats)
}

// track records metrics for one tool call. Call the returned func with the
// call's error.
func (s *Server) track(ctx context.Context, tool string) func(error) {
	end := s.metrics.begin(ctx, tool)
	return func(err error) {
		end(err)
		if err != nil && outcome(err) != outcomeInvalid {
			s.logger.Error(ctx, "tool failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, args ingestInput) (_ *mcp.CallToolResult, _ ingestOutput, err error) {
	done := s.track(ctx, "document_ingest")
	defer func() { done(err) }()

	unlock := s.locks.Lock(sanitize.String(args.Source))
	defer unlock()

	res, err := s.docs.AddOrUpdate(ctx, docindex.AddRequest{
		Source:          args.Source,
		Content:         []byte(args.Content),
		ExpiryDays:      args.ExpiryDays,
		Metadata:        args.Metadata,
		ForceNewVersion: args.ForceNewVersion,
	})
	if err != nil {
		return nil, ingestOutput{}, err
	}
	return nil, ingestOutput{
		DocID:      res.DocID,
		Version:    res.Version,
		ChunkCount: res.ChunkCount,
		Action:     string(res.Action),
	}, nil
}

func (s *Server) handleIngestDirectory(ctx context.Context, _ *mcp.CallToolRequest, args ingestDirectoryInput) (_ *mcp.CallToolResult, _ ingestDirectoryOutput, err error) {
	done := s.track(ctx, "document_ingest_directory")
	defer func() { done(err) }()

	root, err := sanitize.ValidatePath(args.Path, s.config.AllowedRoot)
	if err != nil {
		return nil, ingestDirectoryOutput{}, fmt.Errorf("invalid path: %w", err)
	}
	report, err := s.batch.Run(ctx, root, ingest.Options{
		Include:         args.Include,
		Exclude:         args.Exclude,
		UseIgnoreFiles:  true,
		SourcePrefix:    args.SourcePrefix,
		ExpiryDays:      args.ExpiryDays,
		Metadata:        args.Metadata,
		ForceNewVersion: args.ForceNewVersion,
	})
	if err != nil {
		return nil, ingestDirectoryOutput{}, err
	}
	return nil, ingestDirectoryOutput{
		Created:   report.Created,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
		Files:     report.Files,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, args searchInput) (_ *mcp.CallToolResult, _ searchOutput, err error) {
	done := s.track(ctx, "document_search")
	defer func() { done(err) }()

	req := docindex.DefaultSearchRequest(args.Query)
	if args.TopK > 0 {
		req.TopK = args.TopK
	}
	req.OnlyLatest = !args.IncludeHistory
	req.ExcludeExpired = !args.IncludeExpired
	req.TimeRange = args.TimeRange
	req.ExactVersion = args.ExactVersion
	req.Sources = args.Sources

	results, err := s.docs.Search(ctx, req)
	if err != nil {
		return nil, searchOutput{}, err
	}
	if results == nil {
		results = []docindex.SearchResult{}
	}
	return nil, searchOutput{Results: results, Count: len(results)}, nil
}

func (s *Server) handleCleanup(ctx context.Context, _ *mcp.CallToolRequest, _ cleanupInput) (_ *mcp.CallToolResult, _ cleanupOutput, err error) {
	done := s.track(ctx, "document_cleanup_expired")
	defer func() { done(err) }()

	n, err := s.docs.CleanupExpired(ctx)
	if err != nil {
		return nil, cleanupOutput{}, err
	}
	return nil, cleanupOutput{Removed: n}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ statsInput) (_ *mcp.CallToolResult, _ docindex.Statistics, err error) {
	done := s.track(ctx, "document_stats")
	defer func() { done(err) }()

	stats, err := s.docs.Statistics(ctx)
	if err != nil {
		return nil, docindex.Statistics{}, err
	}
	return nil, *stats, nil
}

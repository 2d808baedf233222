package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/filereader"
	"github.com/fyrsmithlabs/tempora/internal/logging"
	"github.com/fyrsmithlabs/tempora/internal/sanitize"
)

// Ingester is the part of docindex.Service that ingestion needs.
type Ingester interface {
	AddOrUpdate(ctx context.Context, req docindex.AddRequest) (*docindex.AddResult, error)
}

// Options configure which files are ingested and how.
type Options struct {
	// Include and Exclude are doublestar patterns over slash-separated paths
	// relative to the root. Exclude wins. Empty Include means everything.
	Include []string
	Exclude []string
	// UseIgnoreFiles adds the patterns of .gitignore and .temporaignore in
	// the root to Exclude.
	UseIgnoreFiles bool
	MaxFileSize    int64
	// SourcePrefix replaces the root in source paths, so that a temporary
	// checkout is indexed under a stable name. Empty keeps the file path.
	SourcePrefix    string
	ExpiryDays      *int
	Metadata        map[string]any
	ForceNewVersion bool
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path    string          `json:"path"`
	Source  string          `json:"source"`
	Action  docindex.Action `json:"action,omitempty"`
	Version int             `json:"version,omitempty"`
	Chunks  int             `json:"chunks,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Report summarizes a batch.
type Report struct {
	Root      string        `json:"root"`
	Files     []FileResult  `json:"files"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

func (r *Report) add(fr FileResult) {
	r.Files = append(r.Files, fr)
	if fr.Error != "" {
		r.Failed++
		return
	}
	switch fr.Action {
	case docindex.ActionCreated:
		r.Created++
	case docindex.ActionUpdated:
		r.Updated++
	case docindex.ActionUnchanged:
		r.Unchanged++
	default:
		r.Skipped++
	}
}

// Batch ingests directory trees.
type Batch struct {
	ingester Ingester
	reader   *filereader.Reader
	locks    *KeyedMutex
	logger   *logging.Logger
}

// NewBatch returns a Batch. locks may be shared with other writers; nil
// gives the batch its own.
func NewBatch(ingester Ingester, locks *KeyedMutex, logger *logging.Logger) *Batch {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Batch{ingester: ingester, reader: filereader.New(), locks: locks, logger: logger}
}

// WithReader replaces the default file reader and returns b.
func (b *Batch) WithReader(r *filereader.Reader) *Batch {
	if r != nil {
		b.reader = r
	}
	return b
}

// ValidatePatterns reports the first malformed doublestar pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	return nil
}

// Run ingests every matching file under root, in lexical order. Failures of
// single files are recorded in the report and do not stop the batch; only
// an unusable root or a canceled context does.
func (b *Batch) Run(ctx context.Context, root string, opts Options) (*Report, error) {
	start := time.Now()
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid root: %s is not a directory", root)
	}
	if err := ValidatePatterns(opts.Include); err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if err := ValidatePatterns(opts.Exclude); err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}

	exclude := opts.Exclude
	if opts.UseIgnoreFiles {
		extra, err := NewIgnoreParser().Parse(root)
		if err != nil {
			return nil, fmt.Errorf("reading ignore files: %w", err)
		}
		exclude = append(append([]string(nil), exclude...), extra...)
	}
	m := matcher{include: opts.Include, exclude: exclude}

	reader := b.readerFor(opts)

	report := &Report{Root: root}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			b.logger.Warn(ctx, "skipping unreadable path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p != root && (defaultSkipDirs[d.Name()] || m.excludesDir(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasSuffix(rel, SidecarSuffix) || !m.matches(rel) {
			return nil
		}

		source := p
		if opts.SourcePrefix != "" {
			source = strings.TrimSuffix(opts.SourcePrefix, "/") + "/" + rel
		}
		report.add(b.ingestFile(ctx, reader, p, source, opts))
		return nil
	})
	report.Duration = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", root, err)
	}

	b.logger.Info(ctx, "batch ingestion finished",
		zap.String("root", root),
		zap.Int("files", len(report.Files)),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (b *Batch) ingestFile(ctx context.Context, reader *filereader.Reader, p, source string, opts Options) FileResult {
	fr := FileResult{Path: p, Source: source}

	raw, err := reader.ReadFile(p)
	if err != nil {
		if errors.Is(err, filereader.ErrTooLarge) || errors.Is(err, fs.ErrPermission) {
			b.logger.Info(ctx, "skipping file", zap.String("path", p), zap.Error(err))
			fr.Action = docindex.ActionSkippedEmpty
			return fr
		}
		fr.Error = err.Error()
		return fr
	}

	sc, err := LoadSidecar(p)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}
	expiry, meta := sc.merge(opts.ExpiryDays, opts.Metadata)
	if _, ok := meta["extension"]; !ok {
		meta["extension"] = filepath.Ext(p)
	}

	unlock := b.locks.Lock(sanitize.String(source))
	res, err := b.ingester.AddOrUpdate(ctx, docindex.AddRequest{
		Source:          source,
		Content:         raw,
		ExpiryDays:      expiry,
		Metadata:        meta,
		ForceNewVersion: opts.ForceNewVersion,
	})
	unlock()
	if err != nil {
		b.logger.Warn(ctx, "failed to ingest file", zap.String("path", p), zap.Error(err))
		fr.Error = err.Error()
		return fr
	}
	fr.Action = res.Action
	fr.Version = res.Version
	fr.Chunks = res.ChunkCount
	return fr
}

type matcher struct {
	include []string
	exclude []string
}

func (m matcher) matches(rel string) bool {
	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, p := range m.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// excludesDir reports whether an exclude pattern covers everything below
// the directory rel.
func (m matcher) excludesDir(rel string) bool {
	for _, p := range m.exclude {
		prefix, ok := strings.CutSuffix(p, "/**")
		if !ok {
			continue
		}
		if matched, _ := doublestar.Match(prefix, rel); matched {
			return true
		}
	}
	return false
}

// readerFor returns the shared reader unless opts sets its own size limit.
func (b *Batch) readerFor(opts Options) *filereader.Reader {
	if opts.MaxFileSize > 0 {
		return filereader.New(filereader.WithMaxSize(opts.MaxFileSize))
	}
	return b.reader
}

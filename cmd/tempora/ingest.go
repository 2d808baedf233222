package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/ingest"
)

var ingestFlags struct {
	include    []string
	exclude    []string
	prefix     string
	expiryDays int
	meta       []string
	force      bool
	noIgnore   bool
	gitURL     string
	branch     string
	depth      int
	watch      bool
	json       bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index the files under a directory or a git repository",
	Long: `ingest walks a directory, or a fresh clone of --git, and adds every
matching text file as a document whose source is its path. Unchanged files
are skipped. With --watch it keeps running and re-indexes files as they
change.`,
	Example: `  tempora ingest ./handbook --include '**/*.md' --expiry-days 90
  tempora ingest --git https://github.com/acme/docs --branch main --meta team=docs
  tempora ingest ./notes --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringSliceVar(&ingestFlags.include, "include", nil, "glob patterns to include (repeatable)")
	f.StringSliceVar(&ingestFlags.exclude, "exclude", nil, "glob patterns to exclude (repeatable)")
	f.StringVar(&ingestFlags.prefix, "prefix", "", "source prefix replacing the root directory")
	f.IntVar(&ingestFlags.expiryDays, "expiry-days", -1, "days until the documents expire (-1 never)")
	f.StringArrayVar(&ingestFlags.meta, "meta", nil, "metadata key=value attached to every document (repeatable)")
	f.BoolVar(&ingestFlags.force, "force", false, "store a new version even when content is unchanged")
	f.BoolVar(&ingestFlags.noIgnore, "no-ignore", false, "do not read .gitignore and .temporaignore")
	f.StringVar(&ingestFlags.gitURL, "git", "", "clone and ingest this repository")
	f.StringVar(&ingestFlags.branch, "branch", "", "branch to clone with --git")
	f.IntVar(&ingestFlags.depth, "depth", 1, "clone depth with --git (0 for full history)")
	f.BoolVar(&ingestFlags.watch, "watch", false, "keep watching the directory for changes")
	f.BoolVar(&ingestFlags.json, "json", false, "print the report as JSON")
	ingestCmd.MarkFlagsMutuallyExclusive("git", "watch")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestFlags.gitURL == "" && len(args) == 0 {
		return errors.New("a path or --git is required")
	}
	if ingestFlags.gitURL != "" && len(args) > 0 {
		return errors.New("a path and --git are mutually exclusive")
	}
	meta, err := parseMetadata(ingestFlags.meta)
	if err != nil {
		return err
	}
	if err := ingest.ValidatePatterns(append(append([]string(nil), ingestFlags.include...), ingestFlags.exclude...)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{logStderr: true, events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	opts := ingest.Options{
		Include:         ingestFlags.include,
		Exclude:         ingestFlags.exclude,
		UseIgnoreFiles:  !ingestFlags.noIgnore,
		SourcePrefix:    ingestFlags.prefix,
		ExpiryDays:      expiryFlag(ingestFlags.expiryDays),
		Metadata:        meta,
		ForceNewVersion: ingestFlags.force,
	}
	if len(opts.Include) == 0 {
		opts.Include = a.cfg.Ingest.Include
	}
	if len(opts.Exclude) == 0 {
		opts.Exclude = a.cfg.Ingest.Exclude
	}

	root := ""
	if ingestFlags.gitURL != "" {
		dir, err := os.MkdirTemp("", "tempora-clone-*")
		if err != nil {
			return fmt.Errorf("creating clone directory: %w", err)
		}
		defer os.RemoveAll(dir)

		co, err := ingest.CloneRepository(ctx, ingestFlags.gitURL, dir, ingest.CloneOptions{
			Branch: ingestFlags.branch,
			Depth:  ingestFlags.depth,
		})
		if err != nil {
			return err
		}
		a.logger.Info(ctx, "repository cloned",
			zap.String("url", ingestFlags.gitURL),
			zap.String("branch", co.Branch),
			zap.String("commit", co.Commit),
		)
		root = co.Dir
		if opts.SourcePrefix == "" {
			opts.SourcePrefix = strings.TrimSuffix(ingestFlags.gitURL, ".git")
		}
		if opts.Metadata == nil {
			opts.Metadata = map[string]any{}
		}
		opts.Metadata["git_commit"] = co.Commit
		opts.Metadata["git_branch"] = co.Branch
	} else {
		root, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}

	batch := a.batch()
	report, err := batch.Run(ctx, root, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ingestFlags.json {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}
	if !ingestFlags.watch {
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", report.Failed, len(report.Files))
		}
		return nil
	}
	return watch(ctx, out, ingest.NewWatcher(batch, root, opts, a.cfg.Ingest.Debounce.Duration()))
}

func watch(ctx context.Context, out io.Writer, w *ingest.Watcher) error {
	results := make(chan ingest.FileResult, 16)
	w.Notify(results)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	fmt.Fprintln(out, mutedStyle.Render("watching for changes, press Ctrl+C to stop"))
	for {
		select {
		case fr := <-results:
			printFileResult(out, fr)
		case err := <-errc:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// expiryFlag maps the --expiry-days sentinel to the optional lifetime.
func expiryFlag(days int) *int {
	if days == -1 {
		return nil
	}
	return &days
}

// parseMetadata turns key=value pairs into a metadata map. Values stay strings.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", p)
		}
		meta[k] = v
	}
	return meta, nil
}

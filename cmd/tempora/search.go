package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
)

var searchFlags struct {
	topK           int
	history        bool
	includeExpired bool
	since          string
	until          string
	version        int
	sources        []string
	json           bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long: `search returns the chunks most similar to the query. By default only
the latest version of each document is searched and expired chunks are
hidden.

--since and --until take an RFC 3339 time, a date (2006-01-02) or a duration
counted back from now (72h).`,
	Example: `  tempora search "rotation schedule" --top-k 10
  tempora search "pricing" --history --since 720h --source docs/pricing.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchFlags.topK, "top-k", "k", 5, "number of results")
	f.BoolVar(&searchFlags.history, "history", false, "include superseded versions")
	f.BoolVar(&searchFlags.includeExpired, "include-expired", false, "include expired chunks")
	f.StringVar(&searchFlags.since, "since", "", "only chunks indexed at or after this time")
	f.StringVar(&searchFlags.until, "until", "", "only chunks indexed at or before this time")
	f.IntVar(&searchFlags.version, "version", 0, "only this document version")
	f.StringSliceVar(&searchFlags.sources, "source", nil, "only these sources (repeatable)")
	f.BoolVar(&searchFlags.json, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := docindex.DefaultSearchRequest(strings.Join(args, " "))
	req.TopK = searchFlags.topK
	req.OnlyLatest = !searchFlags.history
	req.ExcludeExpired = !searchFlags.includeExpired
	req.Sources = searchFlags.sources
	if cmd.Flags().Changed("version") {
		v := searchFlags.version
		req.ExactVersion = &v
	}
	tr, err := timeRange(searchFlags.since, searchFlags.until, time.Now())
	if err != nil {
		return err
	}
	req.TimeRange = tr

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{logStderr: true})
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.svc.Search(ctx, req)
	if err != nil {
		return err
	}
	if searchFlags.json {
		if results == nil {
			results = []docindex.SearchResult{}
		}
		return printJSON(cmd.OutOrStdout(), results)
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

// timeRange builds an inclusive range from optional bounds. An open end is
// unbounded.
func timeRange(since, until string, now time.Time) (*docindex.TimeRange, error) {
	if since == "" && until == "" {
		return nil, nil
	}
	tr := &docindex.TimeRange{Start: 0, End: math.MaxInt64}
	if since != "" {
		t, err := parseTime(since, now)
		if err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
		tr.Start = t.UnixMilli()
	}
	if until != "" {
		t, err := parseTime(until, now)
		if err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
		tr.End = t.UnixMilli()
	}
	return tr, nil
}

func parseTime(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time or duration", s)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/ingest"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	snippetStyle = lipgloss.NewStyle().PaddingLeft(4)
)

const snippetLen = 240

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResults(w io.Writer, results []docindex.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no results"))
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%s %s %s\n",
			titleStyle.Render(fmt.Sprintf("%d.", i+1)),
			r.Source,
			scoreStyle.Render(fmt.Sprintf("%.3f", r.Score)),
		)
		fmt.Fprintf(w, "    %s v%d  chunk %d  indexed %s  %s\n",
			labelStyle.Render(r.DocID),
			r.Version,
			r.ChunkIndex,
			formatMillis(r.Timestamp),
			expiryLabel(r.ExpiryAt),
		)
		fmt.Fprintln(w, snippetStyle.Render(snippet(r.Text, snippetLen)))
	}
}

func printStatistics(w io.Writer, st *docindex.Statistics) {
	fmt.Fprintln(w, titleStyle.Render("Index statistics"))
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Total chunks:  "), st.TotalChunks)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Latest chunks: "), st.LatestVersionChunks)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Expired chunks:"), st.ExpiredChunks)
}

func printReport(w io.Writer, r *ingest.Report) {
	for _, fr := range r.Files {
		if fr.Error != "" || fr.Action != docindex.ActionUnchanged {
			printFileResult(w, fr)
		}
	}
	fmt.Fprintf(w, "%s %d files in %s: %d created, %d updated, %d unchanged, %d skipped, %d failed\n",
		titleStyle.Render("Ingested"),
		len(r.Files), r.Duration.Round(time.Millisecond),
		r.Created, r.Updated, r.Unchanged, r.Skipped, r.Failed,
	)
}

func printFileResult(w io.Writer, fr ingest.FileResult) {
	if fr.Error != "" {
		fmt.Fprintf(w, "  %s %s: %s\n", errorStyle.Render("failed "), fr.Source, fr.Error)
		return
	}
	style := successStyle
	if fr.Action == docindex.ActionSkippedEmpty || fr.Action == docindex.ActionUnchanged {
		style = warnStyle
	}
	fmt.Fprintf(w, "  %s %s v%d (%d chunks)\n", style.Render(fmt.Sprintf("%-8s", fr.Action)), fr.Source, fr.Version, fr.Chunks)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func expiryLabel(expiryAt int64) string {
	if expiryAt == vectorstore.NeverExpires {
		return "never expires"
	}
	return "expires " + formatMillis(expiryAt)
}

// snippet collapses whitespace and truncates s to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

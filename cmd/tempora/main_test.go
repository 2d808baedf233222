package main

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tempora/internal/docindex"
	"github.com/fyrsmithlabs/tempora/internal/ingest"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]string{"team=docs", "url=https://x.test/a=b", " k =v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"team": "docs", "url": "https://x.test/a=b", "k": "v"}, meta)

	meta, err = parseMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)

	for _, bad := range []string{"novalue", "=v"} {
		_, err := parseMetadata([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestExpiryFlag(t *testing.T) {
	assert.Nil(t, expiryFlag(-1))
	require.NotNil(t, expiryFlag(0))
	assert.Equal(t, 0, *expiryFlag(0))
	assert.Equal(t, 30, *expiryFlag(30))
	// Other negatives pass through and are rejected by the index.
	assert.Equal(t, -5, *expiryFlag(-5))
}

func TestTimeRange(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tr, err := timeRange("", "", now)
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = timeRange("24h", "", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour).UnixMilli(), tr.Start)
	assert.Equal(t, int64(math.MaxInt64), tr.End)

	tr, err = timeRange("2025-03-01", "2025-03-02T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), tr.Start)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), tr.End)

	_, err = timeRange("yesterday", "", now)
	assert.ErrorContains(t, err, "--since")
	_, err = timeRange("", "soon", now)
	assert.ErrorContains(t, err, "--until")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n\n b\t c", 10))
	assert.Equal(t, "héll...", snippet("héllo world", 4))
}

func TestExpiryLabel(t *testing.T) {
	assert.Equal(t, "never expires", expiryLabel(vectorstore.NeverExpires))
	assert.Contains(t, expiryLabel(time.Now().UnixMilli()), "expires ")
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, nil)
	assert.Contains(t, buf.String(), "no results")

	buf.Reset()
	printResults(&buf, []docindex.SearchResult{{
		Source:   "docs/a.md",
		DocID:    "abc_v2_1234abcd",
		Version:  2,
		Score:    0.9123,
		Text:     "refunds are processed\nwithin five days",
		ExpiryAt: vectorstore.NeverExpires,
	}})
	out := buf.String()
	assert.Contains(t, out, "docs/a.md")
	assert.Contains(t, out, "0.912")
	assert.Contains(t, out, "v2")
	assert.Contains(t, out, "refunds are processed within five days")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &ingest.Report{
		Files: []ingest.FileResult{
			{Source: "a.md", Action: docindex.ActionCreated, Version: 1, Chunks: 3},
			{Source: "b.md", Action: docindex.ActionUnchanged, Version: 4},
			{Source: "c.bin", Error: "binary file"},
		},
		Created: 1, Unchanged: 1, Failed: 1,
	})
	out := buf.String()
	assert.Contains(t, out, "a.md v1 (3 chunks)")
	assert.NotContains(t, out, "b.md")
	assert.Contains(t, out, "c.bin: binary file")
	assert.Contains(t, out, "1 created, 0 updated, 1 unchanged, 0 skipped, 1 failed")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), version)
	assert.Contains(t, buf.String(), "Commit:")
}

func TestSearchRequiresQuery(t *testing.T) {
	rootCmd.SetArgs([]string{"search"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	assert.Error(t, rootCmd.Execute())
}

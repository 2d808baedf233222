package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "temporal_rag_documents", cfg.Index.Collection)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, DefaultSeparators, cfg.Chunking.Separators)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
index:
  provider: qdrant
  collection: tax_documents
  qdrant_host: qdrant.internal
embeddings:
  provider: openai
  api_key: sk-test
  timeout: 5s
chunking:
  separators: ["\n\n", ""]
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.Index.Provider)
	assert.Equal(t, "tax_documents", cfg.Index.Collection)
	assert.Equal(t, "qdrant.internal", cfg.Index.QdrantHost)
	assert.Equal(t, 6334, cfg.Index.QdrantPort)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, 5*time.Second, cfg.Embeddings.Timeout.Duration())
	assert.Equal(t, []string{"\n\n", ""}, cfg.Chunking.Separators)
	assert.Equal(t, 500, cfg.Chunking.Size)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8000\n", 0o600)
	t.Setenv("TEMPORA_SERVER_PORT", "9300")
	t.Setenv("TEMPORA_INDEX_QDRANT_HOST", "env-host")
	t.Setenv("TEMPORA_INGEST_EMBED_WORKERS", "8")
	t.Setenv("TEMPORA_LIFECYCLE_SWEEP_INTERVAL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, "env-host", cfg.Index.QdrantHost)
	assert.Equal(t, 8, cfg.Ingest.EmbedWorkers)
	assert.Equal(t, 15*time.Minute, cfg.Lifecycle.SweepInterval.Duration())
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8000\n", 0o666)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "index:\n  provider: milvus\n", 0o600)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "index.provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"overlap not below size", func(c *Config) { c.Chunking.Overlap = 500 }, "chunking.overlap"},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }, "chunking.size"},
		{"no workers", func(c *Config) { c.Ingest.EmbedWorkers = 0 }, "embed_workers"},
		{"unknown encoding", func(c *Config) { c.Ingest.FallbackEncodings = []string{"gb18030", "klingon"} }, "klingon"},
		{"bad embedder", func(c *Config) { c.Embeddings.Provider = "dashscope" }, "embeddings.provider"},
		{"events without url", func(c *Config) { c.Events.Enabled = true; c.Events.URL = "" }, "events.url"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
		{"qdrant port", func(c *Config) { c.Index.Provider = "qdrant"; c.Index.QdrantPort = 0 }, "qdrant_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("sk-live-123")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(b))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())
	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/data/index")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "index"), got)

	got, err = ExpandHome("/var/lib/tempora")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tempora", got)
}

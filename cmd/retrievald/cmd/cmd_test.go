package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	logLevel = ""

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "retrievald")
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := executeCmd(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
	assert.Contains(t, out, `"go_version"`)
}

func TestConfigShow(t *testing.T) {
	t.Setenv("CIVICMESH_DATA_DIR", t.TempDir())

	out, err := executeCmd(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"semantic_weight"`)
	assert.Contains(t, out, "0.7")
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	out, err := executeCmd(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "semantic_weight")

	// Second init without --force refuses to overwrite.
	_, err = executeCmd(t, "config", "init", "--config", path)
	assert.Error(t, err)
}

func TestIndexCommand_RequiresFile(t *testing.T) {
	_, err := executeCmd(t, "index")
	assert.ErrorContains(t, err, "--file is required")
}

func TestIndexCommand_OfflineEndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CIVICMESH_DATA_DIR", dataDir)

	input := filepath.Join(t.TempDir(), "chunks.jsonl")
	lines := `{"id":"c1","sourceDocId":"d1","text":"flood evacuation routes","metadata":{"lang":"en"}}
{"id":"c2","sourceDocId":"d1","text":"sandbag distribution points"}
`
	require.NoError(t, os.WriteFile(input, []byte(lines), 0o644))

	_, err := executeCmd(t, "index", "--file", input, "--offline")
	require.NoError(t, err)

	// Catalog, lexical index, and vector index all materialized.
	assert.FileExists(t, filepath.Join(dataDir, "catalog.db"))
	assert.DirExists(t, filepath.Join(dataDir, "lexical.bleve"))
	assert.FileExists(t, filepath.Join(dataDir, "vectors.hnsw"))
	assert.FileExists(t, filepath.Join(dataDir, "vectors.hnsw.meta"))
}

func TestIndexCommand_RejectsMalformedLine(t *testing.T) {
	t.Setenv("CIVICMESH_DATA_DIR", t.TempDir())

	input := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(input, []byte("{not json}\n"), 0o644))

	_, err := executeCmd(t, "index", "--file", input, "--offline")
	assert.ErrorContains(t, err, "line 1")
}

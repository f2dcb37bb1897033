package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Search.LexicalWeight)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.True(t, cfg.Rerank.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
search:
  semantic_weight: 0.6
  lexical_weight: 0.4
  similarity_threshold: 0.3
  default_top_k: 8
  max_top_k: 40
  adapter_timeout: 2s
rerank:
  enabled: false
context:
  max_chars: 4000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.4, cfg.Search.LexicalWeight)
	assert.Equal(t, 8, cfg.Search.DefaultTopK)
	assert.Equal(t, 2*time.Second, cfg.Search.AdapterTimeout)
	assert.False(t, cfg.Rerank.Enabled)
	assert.Equal(t, 4000, cfg.Context.MaxChars)

	// Unspecified fields keep defaults.
	assert.Equal(t, ":8087", cfg.Server.Addr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CIVICMESH_SEMANTIC_WEIGHT", "0.9")
	t.Setenv("CIVICMESH_LEXICAL_WEIGHT", "0.1")
	t.Setenv("CIVICMESH_RERANK_ENABLED", "false")
	t.Setenv("CIVICMESH_DATA_DIR", "/tmp/civicmesh-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.1, cfg.Search.LexicalWeight)
	assert.False(t, cfg.Rerank.Enabled)
	assert.Equal(t, "/tmp/civicmesh-test", cfg.Paths.DataDir)
}

func TestLoad_EnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("CIVICMESH_SEMANTIC_WEIGHT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Search.SemanticWeight = -1 }},
		{"both weights zero", func(c *Config) {
			c.Search.SemanticWeight = 0
			c.Search.LexicalWeight = 0
		}},
		{"threshold above one", func(c *Config) { c.Search.SimilarityThreshold = 1.5 }},
		{"zero topK", func(c *Config) { c.Search.DefaultTopK = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxTopK = 1 }},
		{"zero context budget", func(c *Config) { c.Context.MaxChars = 0 }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	orig := Default()
	orig.Search.SemanticWeight = 0.55
	require.NoError(t, orig.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.55, loaded.Search.SemanticWeight)
}

// Package config loads retrievald configuration from YAML with
// CIVICMESH_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete retrievald configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank" json:"rerank"`
	Context   ContextConfig   `yaml:"context" json:"context"`
	Analytics AnalyticsConfig `yaml:"analytics" json:"analytics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`

	// RequestTimeout bounds one retrieval request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// RateLimit is requests per second per caller (0 disables limiting).
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	// RateBurst is the per-caller burst size.
	RateBurst int `yaml:"rate_burst" json:"rate_burst"`
}

// SearchConfig configures hybrid retrieval.
// Weights are configurable via config file or env vars
// (CIVICMESH_SEMANTIC_WEIGHT, CIVICMESH_LEXICAL_WEIGHT).
type SearchConfig struct {
	// SemanticWeight is the fusion weight for vector similarity.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// LexicalWeight is the fusion weight for keyword matching.
	// The two weights need not sum to 1.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// SimilarityThreshold drops vector neighbors below this cosine similarity.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// DefaultTopK is the result count when the request omits topK.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// MaxTopK is the maximum allowed topK.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`

	// AdapterTimeout bounds each adapter call inside the fan-out.
	AdapterTimeout time.Duration `yaml:"adapter_timeout" json:"adapter_timeout"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
}

// RerankConfig configures the cross-encoder collaborator.
type RerankConfig struct {
	// Enabled gates reranking globally; the request flag can only
	// disable it further, never enable it when this is false.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Endpoint is the cross-encoder service URL. Empty with Enabled=true
	// selects the local token-overlap reranker.
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Model    string        `yaml:"model" json:"model"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// ContextConfig configures grounding context assembly.
type ContextConfig struct {
	// MaxChars is the character budget for the assembled context block.
	MaxChars int `yaml:"max_chars" json:"max_chars"`
}

// AnalyticsConfig configures the query logger.
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// BufferSize is the in-flight event queue length; events beyond it
	// are dropped with a warning rather than blocking the response path.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// PathsConfig locates on-disk index data.
type PathsConfig struct {
	// DataDir holds the lexical index, vector index, chunk catalog,
	// and analytics database.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8087",
			RequestTimeout: 10 * time.Second,
			RateLimit:      20,
			RateBurst:      40,
		},
		Search: SearchConfig{
			SemanticWeight:      0.7,
			LexicalWeight:       0.3,
			SimilarityThreshold: 0.25,
			DefaultTopK:         5,
			MaxTopK:             50,
			AdapterTimeout:      3 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Endpoint:   "http://localhost:9090",
			Model:      "embedding-small",
			Dimensions: 768,
			Timeout:    10 * time.Second,
			CacheSize:  1000,
			MaxRetries: 2,
		},
		Rerank: RerankConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Context: ContextConfig{
			MaxChars: 6000,
		},
		Analytics: AnalyticsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".retrievald")
	}
	return filepath.Join(home, ".retrievald")
}

// Load reads configuration from path (if non-empty and present),
// then applies environment overrides. Missing file is not an error
// when path is empty; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if defaultPath := DefaultConfigPath(); fileExists(defaultPath) {
		if err := cfg.loadYAML(defaultPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the conventional config location.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "retrievald", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "retrievald", "config.yaml")
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies CIVICMESH_* environment variable overrides.
// Env vars take priority over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CIVICMESH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CIVICMESH_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("CIVICMESH_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("CIVICMESH_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CIVICMESH_EMBEDDING_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("CIVICMESH_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("CIVICMESH_RERANK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Rerank.Enabled = b
		}
	}
	if v := os.Getenv("CIVICMESH_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
	}
	if v := os.Getenv("CIVICMESH_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("CIVICMESH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.LexicalWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative (semantic=%v lexical=%v)",
			c.Search.SemanticWeight, c.Search.LexicalWeight)
	}
	if c.Search.SemanticWeight == 0 && c.Search.LexicalWeight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %v", c.Search.SimilarityThreshold)
	}
	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("default_top_k must be positive, got %d", c.Search.DefaultTopK)
	}
	if c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("max_top_k (%d) must be >= default_top_k (%d)",
			c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if c.Context.MaxChars <= 0 {
		return fmt.Errorf("context max_chars must be positive, got %d", c.Context.MaxChars)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// WriteYAML writes the config as YAML to path. Used by `retrievald config init`.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

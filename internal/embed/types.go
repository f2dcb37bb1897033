// Package embed provides embedding generation for queries and chunks.
// The serving path uses an HTTP embedding service wrapped in an LRU
// cache; tests use the deterministic static embedder.
package embed

import (
	"context"
	"time"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Defaults for the HTTP embedder.
const (
	DefaultEndpoint   = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultDimensions = 768
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultPoolSize   = 4
)

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// Endpoint is the base URL of the embedding service.
	Endpoint string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding dimension (0 = auto-detect).
	Dimensions int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the retry count for transient failures.
	MaxRetries int

	// PoolSize is the HTTP connection pool size.
	PoolSize int

	// SkipHealthCheck skips the startup probe (testing).
	SkipHealthCheck bool
}

// embedRequest is the wire format sent to the embedding service.
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the wire format returned by the embedding service.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

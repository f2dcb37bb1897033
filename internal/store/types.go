// Package store persists the chunk catalog: the read-only mapping from
// chunk ID to text and metadata that the retrieval adapters enrich
// their index hits from. Chunks are owned by the ingestion pipeline;
// this subsystem never mutates them after load.
package store

import "context"

// Chunk is a bounded unit of source text indexed for retrieval.
type Chunk struct {
	// ID is the stable chunk identifier.
	ID string `json:"id"`

	// SourceDocID identifies the document the chunk was cut from.
	SourceDocID string `json:"source_doc_id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Metadata carries scalar annotations (community, section, language, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Catalog provides chunk lookup by ID.
type Catalog interface {
	// SaveChunks upserts chunks in a single transaction.
	SaveChunks(ctx context.Context, chunks []*Chunk) error

	// GetChunk returns a chunk by ID, or nil if absent.
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// GetChunks batch-fetches chunks by ID. Missing IDs are skipped.
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)

	// DeleteChunks removes chunks by ID.
	DeleteChunks(ctx context.Context, ids []string) error

	// Count returns the number of chunks in the catalog.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying database.
	Close() error
}

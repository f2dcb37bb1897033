package retrieval

import (
	"context"
	"fmt"

	"github.com/civicmesh/retrieval/internal/embed"
	"github.com/civicmesh/retrieval/internal/index"
	"github.com/civicmesh/retrieval/internal/store"
)

// SemanticAdapter retrieves chunks by vector similarity. It embeds the
// query, runs k-NN over the vector index, filters by the similarity
// threshold, and hydrates text/metadata from the catalog.
type SemanticAdapter struct {
	embedder  embed.Embedder
	vectors   *index.VectorIndex
	catalog   store.Catalog
	threshold float64
}

// NewSemanticAdapter creates a semantic adapter.
// threshold is the minimum normalized similarity to keep a neighbor.
func NewSemanticAdapter(embedder embed.Embedder, vectors *index.VectorIndex, catalog store.Catalog, threshold float64) *SemanticAdapter {
	return &SemanticAdapter{
		embedder:  embedder,
		vectors:   vectors,
		catalog:   catalog,
		threshold: threshold,
	}
}

// Search returns up to k results with method=semantic, sorted by score
// descending. Errors are returned to the pipeline, which absorbs them
// so lexical results can still serve the request.
func (a *SemanticAdapter) Search(ctx context.Context, query string, k int) ([]Result, error) {
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := a.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	kept := hits[:0]
	for _, hit := range hits {
		if hit.Similarity >= a.threshold {
			kept = append(kept, hit)
		}
	}

	ids := make([]string, len(kept))
	for i, hit := range kept {
		ids[i] = hit.ChunkID
	}
	chunks, err := a.catalog.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate chunks: %w", err)
	}
	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]Result, 0, len(kept))
	for _, hit := range kept {
		chunk, ok := byID[hit.ChunkID]
		if !ok {
			// Index and catalog drifted; skip rather than return a
			// result with no text.
			continue
		}
		results = append(results, Result{
			ChunkID:  hit.ChunkID,
			Score:    hit.Similarity,
			Method:   MethodSemantic,
			Text:     chunk.Text,
			Metadata: chunkMetadata(chunk.SourceDocID, chunk.Metadata),
		})
	}

	return results, nil
}

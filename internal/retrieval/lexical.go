package retrieval

import (
	"context"
	"fmt"

	"github.com/civicmesh/retrieval/internal/index"
	"github.com/civicmesh/retrieval/internal/store"
)

// LexicalAdapter retrieves chunks by BM25 keyword match and rescales
// the native scores to [0,1] with min-max normalization over the
// returned set. A singleton result set normalizes to 1.0.
type LexicalAdapter struct {
	index   *index.LexicalIndex
	catalog store.Catalog
}

// NewLexicalAdapter creates a lexical adapter.
func NewLexicalAdapter(idx *index.LexicalIndex, catalog store.Catalog) *LexicalAdapter {
	return &LexicalAdapter{index: idx, catalog: catalog}
}

// Search returns up to k results with method=lexical, sorted by score
// descending.
func (a *LexicalAdapter) Search(ctx context.Context, query string, k int) ([]Result, error) {
	hits, err := a.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
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

	normalized := normalizeScores(hits)

	results := make([]Result, 0, len(hits))
	for i, hit := range hits {
		chunk, ok := byID[hit.ChunkID]
		if !ok {
			continue
		}
		results = append(results, Result{
			ChunkID:  hit.ChunkID,
			Score:    normalized[i],
			Method:   MethodLexical,
			Text:     chunk.Text,
			Metadata: chunkMetadata(chunk.SourceDocID, chunk.Metadata),
		})
	}

	return results, nil
}

// normalizeScores min-max scales BM25 scores across the returned set.
// When all scores are equal (including a single hit) every score maps
// to 1.0.
func normalizeScores(hits []index.LexicalHit) []float64 {
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score < minScore {
			minScore = hit.Score
		}
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	scores := make([]float64, len(hits))
	spread := maxScore - minScore
	for i, hit := range hits {
		if spread == 0 {
			scores[i] = 1.0
		} else {
			scores[i] = (hit.Score - minScore) / spread
		}
	}
	return scores
}

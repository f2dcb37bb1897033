package retrieval

import (
	"context"
	"strings"
)

// OverlapReranker scores candidates by Jaccard token overlap with the
// query. It is a monotonic heuristic standing in for a cross-encoder
// when no reranking service is configured: cheap, deterministic, and
// good enough to promote exact-phrase matches.
type OverlapReranker struct{}

var _ Reranker = (*OverlapReranker)(nil)

// Rerank scores each document by token-set Jaccard similarity.
func (o *OverlapReranker) Rerank(_ context.Context, query string, documents []string) ([]float64, error) {
	queryTokens := tokenSet(query)

	scores := make([]float64, len(documents))
	for i, doc := range documents {
		scores[i] = jaccard(queryTokens, tokenSet(doc))
	}
	return scores, nil
}

// Available always returns true; the heuristic has no dependencies.
func (o *OverlapReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (o *OverlapReranker) Close() error {
	return nil
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

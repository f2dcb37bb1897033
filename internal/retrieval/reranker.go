package retrieval

import "context"

// Reranker re-scores candidates with a finer-grained relevance model.
// Cross-encoders jointly encode query-document pairs for more accurate
// scoring than bi-encoders, at higher computational cost.
//
// Callers must treat reranking as best-effort: any error means "use
// the pre-rerank order".
type Reranker interface {
	// Rerank returns one relevance score per document, parallel to the
	// input slice. Scores are in [0,1].
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)

	// Available reports whether the reranker can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker preserves the input order with decreasing scores.
// Used when reranking is disabled.
type NoOpReranker struct{}

// Rerank assigns decreasing scores so the original order survives a
// stable re-sort.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for i := range documents {
		scores[i] = 1.0 - float64(i)*0.01
	}
	return scores, nil
}

// Available always returns true.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op.
func (n *NoOpReranker) Close() error {
	return nil
}

var _ Reranker = (*NoOpReranker)(nil)

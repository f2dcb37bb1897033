// Package retrieval implements the hybrid retrieval pipeline: parallel
// semantic and lexical search, weighted fusion, optional reranking with
// graceful fallback, and bounded context assembly.
package retrieval

// Method labels how a result was produced.
type Method string

const (
	MethodSemantic Method = "semantic"
	MethodLexical  Method = "lexical"
	MethodHybrid   Method = "hybrid"
	MethodReranked Method = "reranked"
)

// Result is one scored retrieval candidate. Scores are normalized to
// [0,1] regardless of the source adapter's native scale.
type Result struct {
	ChunkID  string            `json:"chunkId"`
	Score    float64           `json:"score"`
	Method   Method            `json:"method"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// chunkMetadata merges the chunk's source document ID into its metadata
// so the context formatter can render doc markers. The stored metadata
// map is never mutated.
func chunkMetadata(sourceDocID string, metadata map[string]string) map[string]string {
	if sourceDocID == "" {
		return metadata
	}
	if existing, ok := metadata["sourceDocId"]; ok && existing != "" {
		return metadata
	}
	merged := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["sourceDocId"] = sourceDocID
	return merged
}

// Weights are the fusion weights for the hybrid merger.
// They need not sum to 1.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// DefaultWeights are the standard fusion weights.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.7, Lexical: 0.3}
}

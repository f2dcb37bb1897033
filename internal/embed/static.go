package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// StaticEmbedder produces deterministic embeddings by hashing tokens
// into buckets. No network, no model. Texts sharing words get similar
// vectors, which is enough for tests and offline smoke runs.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the given dimension.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes each token into a bucket and normalizes the result.
func (s *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)

	tokens := strings.Fields(strings.ToLower(text))
	for _, token := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		bucket := int(sum % uint64(s.dims))
		// Sign from a second hash bit decorrelates common buckets.
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	if magnitude > 0 {
		norm := math.Sqrt(magnitude)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}

	return vec, nil
}

// EmbedBatch embeds each text independently.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (s *StaticEmbedder) Dimensions() int {
	return s.dims
}

// ModelName returns the model identifier.
func (s *StaticEmbedder) ModelName() string {
	return "static-hash"
}

// Available always reports true.
func (s *StaticEmbedder) Available(ctx context.Context) bool {
	return true
}

// Close is a no-op.
func (s *StaticEmbedder) Close() error {
	return nil
}

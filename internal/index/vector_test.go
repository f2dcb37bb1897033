package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorIndex(t *testing.T) *VectorIndex {
	t.Helper()
	idx, err := NewVectorIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestNewVectorIndex_InvalidDimensions(t *testing.T) {
	_, err := NewVectorIndex(VectorConfig{Dimensions: 0})
	assert.Error(t, err)
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	idx := newTestVectorIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// Exact match ranks first with similarity ~1.
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	assert.Equal(t, "c", hits[1].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestVectorIndex_SearchEmpty(t *testing.T) {
	idx := newTestVectorIndex(t)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := newTestVectorIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = idx.Search(ctx, []float32{1, 0}, 5)
	assert.Error(t, err)
}

func TestVectorIndex_LengthMismatch(t *testing.T) {
	idx := newTestVectorIndex(t)

	err := idx.Add(context.Background(), []string{"a", "b"}, [][]float32{{1, 0, 0, 0}})
	assert.Error(t, err)
}

func TestVectorIndex_ReplaceExisting(t *testing.T) {
	idx := newTestVectorIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1, 0, 0}}))
	assert.Equal(t, 1, idx.Count())

	hits, err := idx.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
}

func TestVectorIndex_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	idx, err := NewVectorIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, idx.Save(path))
	require.NoError(t, idx.Close())

	loaded, err := NewVectorIndex(VectorConfig{Dimensions: 4})
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	hits, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
}

func TestVectorIndex_Closed(t *testing.T) {
	idx := newTestVectorIndex(t)
	require.NoError(t, idx.Close())

	err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}})
	assert.Error(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
}

func TestDistanceToSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		distance float32
		want     float64
	}{
		{"identical", 0, 1.0},
		{"orthogonal", 1, 0.5},
		{"opposite", 2, 0.0},
		{"clamped below", 2.5, 0.0},
		{"clamped above", -0.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, distanceToSimilarity(tt.distance), 1e-9)
		})
	}
}

func TestNormalizeInPlace(t *testing.T) {
	vec := []float32{3, 4, 0, 0}
	normalizeInPlace(vec)
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-5)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-5)

	// Zero vector is left untouched.
	zero := []float32{0, 0, 0, 0}
	normalizeInPlace(zero)
	assert.Equal(t, []float32{0, 0, 0, 0}, zero)
}

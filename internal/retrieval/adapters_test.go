package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmesh/retrieval/internal/embed"
	"github.com/civicmesh/retrieval/internal/index"
	"github.com/civicmesh/retrieval/internal/store"
)

func newTestCatalog(t *testing.T) store.Catalog {
	t.Helper()
	catalog, err := store.NewSQLiteCatalog("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })
	return catalog
}

func seedCatalog(t *testing.T, catalog store.Catalog, chunks ...*store.Chunk) {
	t.Helper()
	require.NoError(t, catalog.SaveChunks(context.Background(), chunks))
}

func TestSemanticAdapter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	embedder := embed.NewStaticEmbedder(64)
	catalog := newTestCatalog(t)

	vectors, err := index.NewVectorIndex(index.VectorConfig{Dimensions: 64})
	require.NoError(t, err)
	defer vectors.Close()

	texts := map[string]string{
		"c1": "evacuation route for the flood zone",
		"c2": "community garden schedule",
	}
	for id, text := range texts {
		seedCatalog(t, catalog, &store.Chunk{ID: id, SourceDocID: "doc", Text: text})
		vec, embErr := embedder.Embed(ctx, text)
		require.NoError(t, embErr)
		require.NoError(t, vectors.Add(ctx, []string{id}, [][]float32{vec}))
	}

	adapter := NewSemanticAdapter(embedder, vectors, catalog, 0.0)
	results, err := adapter.Search(ctx, "evacuation route for the flood zone", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, MethodSemantic, results[0].Method)
	assert.Equal(t, texts["c1"], results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "doc", results[0].Metadata["sourceDocId"])
}

func TestChunkMetadata(t *testing.T) {
	merged := chunkMetadata("doc-1", map[string]string{"lang": "en"})
	assert.Equal(t, "doc-1", merged["sourceDocId"])
	assert.Equal(t, "en", merged["lang"])

	// Explicit metadata wins over the column.
	kept := chunkMetadata("doc-1", map[string]string{"sourceDocId": "doc-2"})
	assert.Equal(t, "doc-2", kept["sourceDocId"])

	assert.Nil(t, chunkMetadata("", nil))
}

func TestSemanticAdapter_ThresholdFilters(t *testing.T) {
	ctx := context.Background()
	embedder := embed.NewStaticEmbedder(64)
	catalog := newTestCatalog(t)

	vectors, err := index.NewVectorIndex(index.VectorConfig{Dimensions: 64})
	require.NoError(t, err)
	defer vectors.Close()

	seedCatalog(t, catalog, &store.Chunk{ID: "c1", Text: "completely unrelated content here"})
	vec, err := embedder.Embed(ctx, "completely unrelated content here")
	require.NoError(t, err)
	require.NoError(t, vectors.Add(ctx, []string{"c1"}, [][]float32{vec}))

	// High threshold excludes the weak match.
	adapter := NewSemanticAdapter(embedder, vectors, catalog, 0.95)
	results, err := adapter.Search(ctx, "evacuation route", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticAdapter_SkipsMissingChunks(t *testing.T) {
	ctx := context.Background()
	embedder := embed.NewStaticEmbedder(64)
	catalog := newTestCatalog(t)

	vectors, err := index.NewVectorIndex(index.VectorConfig{Dimensions: 64})
	require.NoError(t, err)
	defer vectors.Close()

	// Vector indexed but chunk not in the catalog.
	vec, err := embedder.Embed(ctx, "orphaned vector")
	require.NoError(t, err)
	require.NoError(t, vectors.Add(ctx, []string{"ghost"}, [][]float32{vec}))

	adapter := NewSemanticAdapter(embedder, vectors, catalog, 0.0)
	results, err := adapter.Search(ctx, "orphaned vector", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalAdapter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)

	lexIdx, err := index.NewLexicalIndex("")
	require.NoError(t, err)
	defer lexIdx.Close()

	chunks := []*store.Chunk{
		{ID: "c1", Text: "flood evacuation routes for riverside"},
		{ID: "c2", Text: "flood sandbag distribution"},
		{ID: "c3", Text: "garden volunteer signup"},
	}
	for _, c := range chunks {
		seedCatalog(t, catalog, c)
	}
	docs := make([]index.LexicalDoc, len(chunks))
	for i, c := range chunks {
		docs[i] = index.LexicalDoc{ID: c.ID, Text: c.Text}
	}
	require.NoError(t, lexIdx.Index(ctx, docs))

	adapter := NewLexicalAdapter(lexIdx, catalog)
	results, err := adapter.Search(ctx, "flood", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, MethodLexical, r.Method)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.NotEmpty(t, r.Text)
	}
	// Min-max: best hit normalizes to 1.0 when scores differ, and all
	// hits normalize to 1.0 when they tie.
	assert.Equal(t, 1.0, results[0].Score)
}

func TestLexicalAdapter_SingletonNormalizesToOne(t *testing.T) {
	ctx := context.Background()
	catalog := newTestCatalog(t)

	lexIdx, err := index.NewLexicalIndex("")
	require.NoError(t, err)
	defer lexIdx.Close()

	seedCatalog(t, catalog, &store.Chunk{ID: "c1", Text: "only flood match"})
	require.NoError(t, lexIdx.Index(ctx, []index.LexicalDoc{{ID: "c1", Text: "only flood match"}}))

	adapter := NewLexicalAdapter(lexIdx, catalog)
	results, err := adapter.Search(ctx, "flood", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestLexicalAdapter_NoMatches(t *testing.T) {
	catalog := newTestCatalog(t)

	lexIdx, err := index.NewLexicalIndex("")
	require.NoError(t, err)
	defer lexIdx.Close()

	adapter := NewLexicalAdapter(lexIdx, catalog)
	results, err := adapter.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNormalizeScores(t *testing.T) {
	hits := []index.LexicalHit{
		{ChunkID: "a", Score: 4.0},
		{ChunkID: "b", Score: 2.0},
		{ChunkID: "c", Score: 1.0},
	}
	scores := normalizeScores(hits)
	assert.Equal(t, 1.0, scores[0])
	assert.InDelta(t, 1.0/3.0, scores[1], 1e-9)
	assert.Equal(t, 0.0, scores[2])
}

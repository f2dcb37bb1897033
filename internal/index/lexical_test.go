package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexicalIndex(t *testing.T) *LexicalIndex {
	t.Helper()
	idx, err := NewLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedLexical(t *testing.T, idx *LexicalIndex) {
	t.Helper()
	err := idx.Index(context.Background(), []LexicalDoc{
		{ID: "chunk-1", Text: "Evacuation routes for the riverside district flood plan"},
		{ID: "chunk-2", Text: "Community garden volunteer schedule for spring planting"},
		{ID: "chunk-3", Text: "Flood preparedness checklist and sandbag distribution points"},
	})
	require.NoError(t, err)
}

func TestLexicalIndex_IndexAndSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	seedLexical(t, idx)

	hits, err := idx.Search(context.Background(), "flood", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	ids := []string{hits[0].ChunkID, hits[1].ChunkID}
	assert.Contains(t, ids, "chunk-1")
	assert.Contains(t, ids, "chunk-3")
	for _, h := range hits {
		assert.Greater(t, h.Score, 0.0)
		assert.Contains(t, h.MatchedTerms, "flood")
	}
}

func TestLexicalIndex_EmptyQuery(t *testing.T) {
	idx := newTestLexicalIndex(t)
	seedLexical(t, idx)

	hits, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_NoMatch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	seedLexical(t, idx)

	hits, err := idx.Search(context.Background(), "zeppelin", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_LimitRespected(t *testing.T) {
	idx := newTestLexicalIndex(t)
	seedLexical(t, idx)

	hits, err := idx.Search(context.Background(), "flood", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestLexicalIndex_Delete(t *testing.T) {
	idx := newTestLexicalIndex(t)
	seedLexical(t, idx)
	ctx := context.Background()

	require.NoError(t, idx.Delete(ctx, []string{"chunk-1"}))

	hits, err := idx.Search(ctx, "flood", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-3", hits[0].ChunkID)

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLexicalIndex_EmptyBatches(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	assert.NoError(t, idx.Index(ctx, nil))
	assert.NoError(t, idx.Delete(ctx, nil))
}

func TestLexicalIndex_Closed(t *testing.T) {
	idx := newTestLexicalIndex(t)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	ctx := context.Background()
	assert.Error(t, idx.Index(ctx, []LexicalDoc{{ID: "x", Text: "y"}}))
	_, err := idx.Search(ctx, "flood", 1)
	assert.Error(t, err)
}

func TestLexicalIndex_DiskPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexical.bleve")
	ctx := context.Background()

	idx, err := NewLexicalIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, []LexicalDoc{
		{ID: "chunk-1", Text: "Roof repair grant application deadline"},
	}))
	require.NoError(t, idx.Close())

	reopened, err := NewLexicalIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, "grant", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-1", hits[0].ChunkID)
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testChunks() []*Chunk {
	return []*Chunk{
		{ID: "c1", SourceDocID: "doc-a", Text: "Evacuation routes for the north district.",
			Metadata: map[string]string{"community": "north", "section": "safety"}},
		{ID: "c2", SourceDocID: "doc-a", Text: "Shelter locations open during storms."},
		{ID: "c3", SourceDocID: "doc-b", Text: "Weekly farmers market schedule."},
	}
}

func TestSQLiteCatalog_SaveAndGet(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.SaveChunks(ctx, testChunks()))

	chunk, err := c.GetChunk(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, "doc-a", chunk.SourceDocID)
	assert.Equal(t, "north", chunk.Metadata["community"])

	// Chunk without metadata round-trips as nil map.
	chunk, err = c.GetChunk(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Nil(t, chunk.Metadata)
}

func TestSQLiteCatalog_GetMissing(t *testing.T) {
	c := newTestCatalog(t)

	chunk, err := c.GetChunk(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, chunk)
}

func TestSQLiteCatalog_GetChunks_SkipsMissing(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.SaveChunks(ctx, testChunks()))

	chunks, err := c.GetChunks(ctx, []string{"c1", "ghost", "c3"})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestSQLiteCatalog_Upsert(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.SaveChunks(ctx, testChunks()))

	updated := []*Chunk{{ID: "c1", SourceDocID: "doc-a", Text: "Updated text."}}
	require.NoError(t, c.SaveChunks(ctx, updated))

	chunk, err := c.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Updated text.", chunk.Text)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLiteCatalog_Delete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.SaveChunks(ctx, testChunks()))

	require.NoError(t, c.DeleteChunks(ctx, []string{"c1", "c2"}))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteCatalog_EmptyBatches(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	assert.NoError(t, c.SaveChunks(ctx, nil))
	assert.NoError(t, c.DeleteChunks(ctx, nil))

	chunks, err := c.GetChunks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDirLock_SecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	first := NewDirLock(dir)
	require.NoError(t, first.TryLock())
	defer first.Unlock()

	second := NewDirLock(dir)
	assert.Error(t, second.TryLock())

	require.NoError(t, first.Unlock())
	assert.NoError(t, second.TryLock())
	_ = second.Unlock()
}

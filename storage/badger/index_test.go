package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func chunkDocs(articleID, hash string, source core.SourceType, n int) []*core.ChunkDocument {
	docs := make([]*core.ChunkDocument, n)
	for i := range docs {
		docs[i] = &core.ChunkDocument{
			ID:          core.ChunkID(articleID, i),
			Embedding:   []float32{0.6, 0.8},
			PageContent: "chunk text",
			Metadata:    map[string]any{"article_id": articleID, "title": "t"},
			ArticleID:   articleID,
			ChunkID:     i,
			ArticleHash: hash,
			Source:      source,
		}
	}
	return docs
}

func TestIndex_BulkIndexAndLookup(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	written, failures, err := idx.BulkIndex(ctx, chunkDocs("KB1", "h1", core.SourceKB, 3), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, written)
	assert.Empty(t, failures)

	hashes, err := idx.HashesForArticle(ctx, "KB1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, hashes)

	chunks, err := idx.ArticleChunks(ctx, "KB1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.Equal(t, core.ChunkID("KB1", i), c.ID)
		assert.Equal(t, []float32{0.6, 0.8}, c.Embedding)
		assert.Equal(t, "KB1", c.Metadata["article_id"])
	}
}

func TestIndex_HashesForUnknownArticle(t *testing.T) {
	idx := newTestIndex(t)

	hashes, err := idx.HashesForArticle(context.Background(), "missing", 2)
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestIndex_HashesLimitAndPrefixIsolation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	docs := append(chunkDocs("KB1", "h1", core.SourceKB, 1), chunkDocs("KB10", "h10", core.SourceKB, 1)...)
	stale := chunkDocs("KB1", "h-old", core.SourceKB, 3)[1:]
	docs = append(docs, stale...)
	_, _, err := idx.BulkIndex(ctx, docs, 0)
	require.NoError(t, err)

	hashes, err := idx.HashesForArticle(ctx, "KB1", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"h1", "h-old"}, hashes)

	hashes, err = idx.HashesForArticle(ctx, "KB1", 1)
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestIndex_DeleteArticleRemovesEveryChunk(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_, _, err := idx.BulkIndex(ctx, chunkDocs("KB1", "h1", core.SourceKB, 5), 0)
	require.NoError(t, err)
	_, _, err = idx.BulkIndex(ctx, chunkDocs("KB10", "h2", core.SourceKB, 2), 0)
	require.NoError(t, err)

	deleted, err := idx.DeleteArticle(ctx, "KB1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, deleted)

	chunks, err := idx.ArticleChunks(ctx, "KB1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Articles sharing the id prefix are untouched.
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	deleted, err = idx.DeleteArticle(ctx, "KB1")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestIndex_BulkIndexReportsInvalidDocuments(t *testing.T) {
	idx := newTestIndex(t)

	docs := chunkDocs("KB1", "h1", core.SourceKB, 2)
	docs[1].ID = "wrong-id"

	written, failures, err := idx.BulkIndex(context.Background(), docs, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	require.Len(t, failures, 1)
	assert.Equal(t, "wrong-id", failures[0].ID)
	assert.Equal(t, 400, failures[0].Status)
}

func TestIndex_BulkIndexOverwritesByID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_, _, err := idx.BulkIndex(ctx, chunkDocs("KB1", "h1", core.SourceKB, 2), 0)
	require.NoError(t, err)
	_, _, err = idx.BulkIndex(ctx, chunkDocs("KB1", "h1", core.SourceKB, 2), 0)
	require.NoError(t, err)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndex_ListArticleIDs(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var docs []*core.ChunkDocument
	docs = append(docs, chunkDocs("KB2", "a", core.SourceKB, 2)...)
	docs = append(docs, chunkDocs("KB1", "b", core.SourceKB, 1)...)
	docs = append(docs, chunkDocs("news-1", "c", core.SourceNews, 3)...)
	_, _, err := idx.BulkIndex(ctx, docs, 0)
	require.NoError(t, err)

	ids, err := idx.ListArticleIDs(ctx, core.SourceKB)
	require.NoError(t, err)
	assert.Equal(t, []string{"KB1", "KB2"}, ids)

	ids, err = idx.ListArticleIDs(ctx, core.SourceNews)
	require.NoError(t, err)
	assert.Equal(t, []string{"news-1"}, ids)
}

func TestIndex_EnsureIndexRecreate(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_, _, err := idx.BulkIndex(ctx, chunkDocs("KB1", "h1", core.SourceKB, 3), 0)
	require.NoError(t, err)

	require.NoError(t, idx.EnsureIndex(ctx, false))
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, idx.EnsureIndex(ctx, true))
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenIndex_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := OpenIndex(dir)
	require.NoError(t, err)
	_, _, err = idx.BulkIndex(ctx, chunkDocs("KB1", "h1", core.SourceKB, 2), 0)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = OpenIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	hashes, err := idx.HashesForArticle(ctx, "KB1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, hashes)
}

func TestIndex_EmptyArticleIDRejected(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_, err := idx.HashesForArticle(ctx, "", 2)
	require.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = idx.DeleteArticle(ctx, "")
	require.ErrorIs(t, err, storage.ErrInvalidQuery)
}

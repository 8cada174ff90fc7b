package reembed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/kbsync/ai/mock"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

func TestBatchProcessor_Process(t *testing.T) {
	idx := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	processor := newTestProcessor(t, idx, embedder)

	result, err := processor.Process(context.Background(), kbRecords(2))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"KB0000", "KB0001"}, result.ArticleIDs)
	require.Len(t, result.Documents, 2)

	doc := result.Documents[0]
	assert.Equal(t, "KB0000_chunk_0", doc.ID)
	assert.Equal(t, "KB0000", doc.ArticleID)
	assert.Equal(t, 0, doc.ChunkID)
	assert.Equal(t, core.SourceKB, doc.Source)
	assert.Equal(t, core.ContentHash("Body of KB0000"), doc.ArticleHash)
	assert.Equal(t, "Article KB0000", doc.Metadata["title"])
	assert.Equal(t, "KB0000", doc.Metadata["kb_number"])
	assert.InDelta(t, 1.0, magnitude(doc.Embedding), 0.0001, "vectors are normalized")
	require.NoError(t, core.ValidateChunkDocument(doc))

	// Nothing is written by the processor.
	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	processor := newTestProcessor(t, setupTestIndex(t), embedder)

	result, err := processor.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_MultiChunkArticle(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	processor := NewBatchProcessor(
		normalize.NewKBNormalizer(normalize.Options{}),
		NewDecider(setupTestIndex(t), nil),
		smallSplitter(t), embedder, 3, time.Millisecond, nil)

	result, err := processor.Process(context.Background(), []core.Record{kbRecord("KB1", longText("alpha"))})
	require.NoError(t, err)
	require.Greater(t, len(result.Documents), 1)
	assert.Equal(t, len(result.Documents), result.ChunkCount)
	assert.Equal(t, 1, embedder.CallCount(), "one embedding call per article")

	hash := result.Documents[0].ArticleHash
	for i, doc := range result.Documents {
		assert.Equal(t, core.ChunkID("KB1", i), doc.ID)
		assert.Equal(t, i, doc.ChunkID)
		assert.Equal(t, hash, doc.ArticleHash)
		assert.LessOrEqual(t, len([]rune(doc.PageContent)), 100)
	}
}

func TestBatchProcessor_FaultIsolation(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if strings.Contains(texts[0], "KB0002") {
			return nil, errors.New("quota exceeded")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.GenerateDeterministicVector(text, 8)
		}
		return out, nil
	}
	processor := newTestProcessor(t, setupTestIndex(t), embedder)

	records := kbRecords(5)
	result, err := processor.Process(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	failed := result.Failed[0]
	assert.Equal(t, "KB0002", failed.ArticleID())
	assert.Equal(t, []string{"Body of KB0002"}, failed.Chunks)
	assert.ErrorContains(t, failed.Err, "quota exceeded")

	articles := make(map[string]bool)
	for _, doc := range result.Documents {
		articles[doc.ArticleID] = true
	}
	assert.Len(t, articles, 4)
	assert.NotContains(t, articles, "KB0002")
	assert.Equal(t, 5, result.ChunkCount, "failed article chunks still count")
}

func TestBatchProcessor_DraftArticle(t *testing.T) {
	idx := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	processor := newTestProcessor(t, idx, embedder)

	draft := kbRecord("KB1", "Work in progress")
	draft["workflow_state"] = "draft"

	result, err := processor.Process(context.Background(), []core.Record{draft})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unpublished)
	assert.Empty(t, result.Documents)
	assert.Empty(t, result.Failed)
	assert.Zero(t, result.ChunkCount)
	assert.Empty(t, result.ArticleIDs)
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_InvalidRecord(t *testing.T) {
	processor := newTestProcessor(t, setupTestIndex(t), mock.NewMockEmbedder())

	rec := kbRecord("KB1", "x")
	delete(rec, "number")

	result, err := processor.Process(context.Background(), []core.Record{rec, kbRecord("KB2", "y")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalid)
	assert.Len(t, result.Documents, 1)
}

func TestBatchProcessor_SkipsUnchanged(t *testing.T) {
	idx := setupTestIndex(t)
	embedder := mock.NewMockEmbedder()
	processor := newTestProcessor(t, idx, embedder)
	ctx := context.Background()

	first, err := processor.Process(ctx, kbRecords(3))
	require.NoError(t, err)
	_, _, err = idx.BulkIndex(ctx, first.Documents, 0)
	require.NoError(t, err)
	calls := embedder.CallCount()

	second, err := processor.Process(ctx, kbRecords(3))
	require.NoError(t, err)
	assert.Equal(t, 3, second.Skipped)
	assert.Empty(t, second.Documents)
	assert.Zero(t, second.ChunkCount, "skipped articles are not counted")
	assert.Equal(t, calls, embedder.CallCount())
	assert.Len(t, second.ArticleIDs, 3)
}

func TestBatchProcessor_DeleteFailureRecorded(t *testing.T) {
	idx := &mockIndex{
		hashesFunc: func(context.Context, string, int) ([]string, error) { return []string{"old"}, nil },
		deleteFunc: func(context.Context, string) (int64, error) { return 0, errors.New("delete rejected") },
	}
	embedder := mock.NewMockEmbedder()
	processor := newTestProcessor(t, idx, embedder)

	result, err := processor.Process(context.Background(), kbRecords(1))
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Empty(t, result.Documents)
	assert.Zero(t, embedder.CallCount(), "no new chunks next to stale ones")
}

func TestBatchProcessor_Retry(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("temporary failure")
		}
		return [][]float32{{3, 4}}, nil
	}
	processor := newTestProcessor(t, setupTestIndex(t), embedder)

	result, err := processor.Process(context.Background(), kbRecords(1))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, result.Documents, 1)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, result.Documents[0].Embedding, 0.0001)
}

func TestBatchProcessor_EmbeddingMismatchNotRetried(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{}, nil
	}
	processor := newTestProcessor(t, setupTestIndex(t), embedder)

	result, err := processor.Process(context.Background(), kbRecords(1))
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, ErrEmbeddingMismatch)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	processor := newTestProcessor(t, setupTestIndex(t), mock.NewMockEmbedder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := processor.Process(ctx, kbRecords(2))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Documents)
}

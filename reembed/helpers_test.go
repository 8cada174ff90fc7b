package reembed

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/kbsync/ai/mock"
	"github.com/poiesic/kbsync/chunk"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/normalize"
	"github.com/poiesic/kbsync/storage"
	kbbadger "github.com/poiesic/kbsync/storage/badger"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T) *kbbadger.Index {
	t.Helper()
	idx, err := kbbadger.OpenMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func kbRecord(number, text string) core.Record {
	return core.Record{
		"number":            number,
		"sys_id":            "sys-" + number,
		"workflow_state":    "published",
		"short_description": "Article " + number,
		"text":              "<p>" + text + "</p>",
		"sys_updated_on":    "2024-01-01 00:00:00",
	}
}

func kbRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		number := fmt.Sprintf("KB%04d", i)
		records[i] = kbRecord(number, "Body of "+number)
	}
	return records
}

// longText produces a body that splits into several chunks with smallSplitter.
func longText(word string) string {
	return strings.TrimSpace(strings.Repeat(word+" lorem ipsum dolor sit amet ", 20))
}

func smallSplitter(t *testing.T) *chunk.Splitter {
	t.Helper()
	s, err := chunk.NewSplitter(chunk.WithChunkSize(100), chunk.WithChunkOverlap(20))
	require.NoError(t, err)
	return s
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newTestProcessor(t *testing.T, index storage.VectorIndex, embedder *mock.MockEmbedder) *BatchProcessor {
	t.Helper()
	splitter, err := chunk.NewSplitter()
	require.NoError(t, err)
	return NewBatchProcessor(
		normalize.NewKBNormalizer(normalize.Options{BaseURL: "https://example.com"}),
		NewDecider(index, nil),
		splitter, embedder, 3, time.Millisecond, nil)
}

// mockIndex is a storage.VectorIndex with injectable behavior.
type mockIndex struct {
	hashesFunc func(ctx context.Context, articleID string, limit int) ([]string, error)
	deleteFunc func(ctx context.Context, articleID string) (int64, error)
	bulkFunc   func(ctx context.Context, docs []*core.ChunkDocument, timeout time.Duration) (int, []storage.BulkFailure, error)
	listFunc   func(ctx context.Context, source core.SourceType) ([]string, error)

	deleted []string
	groups  []int
}

func (m *mockIndex) HashesForArticle(ctx context.Context, articleID string, limit int) ([]string, error) {
	if m.hashesFunc != nil {
		return m.hashesFunc(ctx, articleID, limit)
	}
	return nil, nil
}

func (m *mockIndex) DeleteArticle(ctx context.Context, articleID string) (int64, error) {
	m.deleted = append(m.deleted, articleID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, articleID)
	}
	return 0, nil
}

func (m *mockIndex) BulkIndex(ctx context.Context, docs []*core.ChunkDocument, timeout time.Duration) (int, []storage.BulkFailure, error) {
	m.groups = append(m.groups, len(docs))
	if m.bulkFunc != nil {
		return m.bulkFunc(ctx, docs, timeout)
	}
	return len(docs), nil, nil
}

func (m *mockIndex) ListArticleIDs(ctx context.Context, source core.SourceType) ([]string, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, source)
	}
	return nil, nil
}

func (m *mockIndex) EnsureIndex(context.Context, bool) error { return nil }

func (m *mockIndex) Close() error { return nil }

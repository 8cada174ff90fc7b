package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSource implements warehouse.Source for testing
type testSource struct {
	rows map[core.SourceType][]core.Record
	errs map[core.SourceType]error
}

func (s *testSource) Fetch(ctx context.Context, source core.SourceType) ([]core.Record, error) {
	if err := s.errs[source]; err != nil {
		return nil, err
	}
	return s.rows[source], nil
}

// testRawIndex implements storage.RawIndex for testing
type testRawIndex struct {
	mu         sync.Mutex
	recreated  int
	docs       []storage.RawDocument
	chunkSizes []int
	indexErr   error
}

func (idx *testRawIndex) RecreateIndex(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.recreated++
	return nil
}

func (idx *testRawIndex) IndexRaw(ctx context.Context, docs []storage.RawDocument, chunkSize int) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunkSizes = append(idx.chunkSizes, chunkSize)
	if idx.indexErr != nil {
		return 0, idx.indexErr
	}
	idx.docs = append(idx.docs, docs...)
	return len(docs), nil
}

func rows(prefix string, n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.Record{"sys_id": fmt.Sprintf("%s-%d", prefix, i)}
	}
	return records
}

func newTestPipeline(t *testing.T, source *testSource, index *testRawIndex, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(source, index, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil, &testRawIndex{})
	require.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewPipeline(&testSource{}, nil)
	require.ErrorIs(t, err, ErrRawIndexRequired)

	_, err = NewPipeline(&testSource{}, &testRawIndex{}, WithChunkSize(0))
	require.Error(t, err)
}

func TestPipeline_Ingest(t *testing.T) {
	source := &testSource{rows: map[core.SourceType][]core.Record{
		core.SourceKB:   rows("kb", 3),
		core.SourceNews: rows("news", 2),
	}}
	index := &testRawIndex{}
	p := newTestPipeline(t, source, index, WithChunkSize(2))

	report, err := p.Ingest(context.Background(), true, core.SourceKB, core.SourceNews)
	require.NoError(t, err)

	assert.Equal(t, 1, index.recreated)
	assert.Equal(t, 5, report.Indexed())
	require.Len(t, report.Results, 2)
	assert.Equal(t, SourceResult{Source: core.SourceKB, Fetched: 3, Indexed: 3}, report.Results[0])
	assert.Equal(t, SourceResult{Source: core.SourceNews, Fetched: 2, Indexed: 2}, report.Results[1])
	assert.Equal(t, []int{2, 2}, index.chunkSizes)

	require.Len(t, index.docs, 5)
	assert.Equal(t, core.SourceKB, index.docs[0].DocType)
	assert.Equal(t, "kb", index.docs[0].Body()["doc_type"])
	assert.Equal(t, core.SourceNews, index.docs[4].DocType)
	assert.Equal(t, "news-1", index.docs[4].Body()["sys_id"])
}

func TestPipeline_IngestWithoutRecreate(t *testing.T) {
	source := &testSource{rows: map[core.SourceType][]core.Record{core.SourceKB: rows("kb", 1)}}
	index := &testRawIndex{}
	p := newTestPipeline(t, source, index)

	_, err := p.Ingest(context.Background(), false, core.SourceKB)
	require.NoError(t, err)
	assert.Zero(t, index.recreated)
	assert.Equal(t, []int{DefaultChunkSize}, index.chunkSizes)
}

func TestPipeline_FailingSourceDoesNotStopOthers(t *testing.T) {
	boom := errors.New("quota exceeded")
	source := &testSource{
		rows: map[core.SourceType][]core.Record{core.SourceNews: rows("news", 4)},
		errs: map[core.SourceType]error{core.SourceKB: boom},
	}
	index := &testRawIndex{}
	p := newTestPipeline(t, source, index)

	report, err := p.Ingest(context.Background(), false, core.SourceKB, core.SourceNews)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, report)

	assert.ErrorIs(t, report.Results[0].Err, boom)
	assert.Equal(t, 4, report.Results[1].Indexed)
	assert.Len(t, index.docs, 4)
}

func TestPipeline_IndexError(t *testing.T) {
	source := &testSource{rows: map[core.SourceType][]core.Record{core.SourceKB: rows("kb", 2)}}
	index := &testRawIndex{indexErr: storage.ErrRequestFailed}
	p := newTestPipeline(t, source, index)

	report, err := p.Ingest(context.Background(), false, core.SourceKB)
	require.ErrorIs(t, err, storage.ErrRequestFailed)
	assert.Equal(t, 2, report.Results[0].Fetched)
	assert.Zero(t, report.Indexed())
}

func TestPipeline_EmptySource(t *testing.T) {
	index := &testRawIndex{}
	p := newTestPipeline(t, &testSource{}, index)

	report, err := p.Ingest(context.Background(), false, core.SourceNews)
	require.NoError(t, err)
	assert.Zero(t, report.Indexed())
	assert.Empty(t, index.chunkSizes)
}

func TestPipeline_InvalidSources(t *testing.T) {
	p := newTestPipeline(t, &testSource{}, &testRawIndex{})

	_, err := p.Ingest(context.Background(), false)
	require.ErrorIs(t, err, ErrNoSources)

	_, err = p.Ingest(context.Background(), false, core.SourceType("blog"))
	require.ErrorIs(t, err, core.ErrInvalidSourceType)
}

func TestPipeline_CancelledContext(t *testing.T) {
	source := &testSource{rows: map[core.SourceType][]core.Record{core.SourceKB: rows("kb", 2)}}
	index := &testRawIndex{}
	p := newTestPipeline(t, source, index, WithPoolSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, false, core.SourceKB)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, index.docs)
}

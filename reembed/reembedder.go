// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kbsync/ai"
	"github.com/poiesic/kbsync/chunk"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/normalize"
	"github.com/poiesic/kbsync/storage"
)

// Config holds configuration for a sync run.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// BatchDelay is the pause between two batches
	BatchDelay time.Duration

	// BulkChunkSize is the maximum number of documents per bulk request
	BulkChunkSize int

	// BulkTimeout bounds each bulk request
	BulkTimeout time.Duration

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Workers is the number of batches processed concurrently
	Workers int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// Prune deletes indexed articles of the source that are absent from the
	// run's records. Only enable it when records is the complete result.
	Prune bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		BatchDelay:     time.Second,
		BulkChunkSize:  DefaultBulkChunkSize,
		BulkTimeout:    DefaultBulkTimeout,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		Workers:        1,
		ReportInterval: DefaultBatchSize,
	}
}

// DefaultBatchDelay returns the pause between batches for a source.
// News bodies are longer, so news batches are paced more slowly.
func DefaultBatchDelay(source core.SourceType) time.Duration {
	if source == core.SourceNews {
		return 2 * time.Second
	}
	return time.Second
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("%w: BatchSize must be at least 1, got %d", ErrInvalidConfig, c.BatchSize)
	case c.BulkChunkSize < 1:
		return fmt.Errorf("%w: BulkChunkSize must be at least 1, got %d", ErrInvalidConfig, c.BulkChunkSize)
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: MaxRetries must be at least 1, got %d", ErrInvalidConfig, c.MaxRetries)
	case c.Workers < 1:
		return fmt.Errorf("%w: Workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	case c.BatchDelay < 0 || c.RetryDelay < 0 || c.BulkTimeout < 0:
		return fmt.Errorf("%w: delays and timeouts cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// RunReport holds the aggregate counts of a run. It is produced even when
// every article failed.
type RunReport struct {
	Source        core.SourceType
	Records       int
	Batches       int
	Chunks        int
	Written       int
	WriteFailures int
	EmbedFailures int
	Skipped       int
	Replaced      int
	Inserted      int
	Unpublished   int
	Invalid       int
	Pruned        int
	Elapsed       time.Duration

	// FailedArticles lists the ids of articles that could not be embedded.
	FailedArticles []string

	// IncompleteArticles lists the ids of articles removed after a partial
	// bulk write. The next run inserts them again.
	IncompleteArticles []string
}

// Errors returns the total number of article and document failures.
func (r *RunReport) Errors() int {
	return r.EmbedFailures + r.WriteFailures
}

// Reembedder drives a sync run for one source type.
type Reembedder struct {
	index     storage.VectorIndex
	embedder  ai.Embedder
	splitter  *chunk.Splitter
	normalize normalize.Options
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSplitter overrides the default markdown splitter.
func WithSplitter(splitter *chunk.Splitter) Option {
	return func(r *Reembedder) {
		r.splitter = splitter
	}
}

// WithNormalizeOptions sets the base URL and converter used by the normalizers.
func WithNormalizeOptions(opts normalize.Options) Option {
	return func(r *Reembedder) {
		r.normalize = opts
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		index:    index,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.splitter == nil {
		splitter, err := chunk.NewSplitter()
		if err != nil {
			return nil, err
		}
		r.splitter = splitter
	}
	if r.normalize.Logger == nil {
		r.normalize.Logger = r.logger
	}
	r.logger = r.logger.With("component", "reembedder")
	return r, nil
}

// runState accumulates batch outcomes, possibly from several workers.
type runState struct {
	mu     sync.Mutex
	report *RunReport
	seen   map[string]struct{}
	err    error
}

func (s *runState) add(res *BatchResult, bulk BulkResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := s.report
	rep.Batches++
	rep.Chunks += res.ChunkCount
	rep.Written += bulk.Succeeded
	rep.WriteFailures += len(bulk.Failed)
	rep.IncompleteArticles = append(rep.IncompleteArticles, bulk.Incomplete...)
	rep.EmbedFailures += len(res.Failed)
	rep.Skipped += res.Skipped
	rep.Replaced += res.Replaced
	rep.Inserted += res.Inserted
	rep.Unpublished += res.Unpublished
	rep.Invalid += res.Invalid
	for _, f := range res.Failed {
		rep.FailedArticles = append(rep.FailedArticles, f.ArticleID())
	}
	for _, id := range res.ArticleIDs {
		s.seen[id] = struct{}{}
	}
}

func (s *runState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *runState) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run syncs records of one source into the vector index and returns the
// aggregate counts. Per-article and per-document failures are counted, not
// returned; the error is only set when ctx is cancelled or the run cannot start.
func (r *Reembedder) Run(ctx context.Context, source core.SourceType, records []core.Record) (*RunReport, error) {
	report := &RunReport{Source: source, Records: len(records)}

	normalizer, err := normalize.For(source, r.normalize)
	if err != nil {
		return report, err
	}

	if len(records) == 0 {
		fmt.Fprintf(r.progress, "No %s records to process (0 records)\n", source)
		return report, nil
	}

	processor := NewBatchProcessor(normalizer, NewDecider(r.index, r.logger), r.splitter, r.embedder,
		r.config.MaxRetries, r.config.RetryDelay, r.logger)
	writer := NewBulkWriter(r.index, r.config.BulkChunkSize, r.config.BulkTimeout, r.logger)

	fmt.Fprintf(r.progress, "Starting %s sync of %d records in %d batches (batch size: %d, workers: %d)\n",
		source, len(records), BatchCount(len(records), r.config.BatchSize), r.config.BatchSize, r.config.Workers)

	tracker := NewProgressTracker(r.progress, len(records), r.config.ReportInterval)
	tracker.Start()

	state := &runState{report: report, seen: make(map[string]struct{})}
	runBatch := func(batch []core.Record) {
		res, err := processor.Process(ctx, batch)
		if err != nil {
			state.add(res, BulkResult{})
			state.fail(err)
			return
		}
		bulk, err := writer.Write(ctx, res.Documents)
		state.add(res, bulk)
		tracker.Advance(len(batch), res.ChunkCount, bulk.Succeeded, len(res.Failed)+len(bulk.Failed))
		if err != nil {
			state.fail(err)
		}
	}

	if err := r.dispatch(ctx, records, state, runBatch); err != nil {
		state.fail(err)
	}
	if err := state.failed(); err != nil {
		report.Elapsed = tracker.Elapsed()
		return report, err
	}

	if r.config.Prune {
		pruned, err := r.prune(ctx, source, state.seen)
		report.Pruned = pruned
		if err != nil {
			report.Elapsed = tracker.Elapsed()
			return report, err
		}
	}

	tracker.Finish()
	report.Elapsed = tracker.Elapsed()

	r.logger.Info("sync complete",
		"source", source,
		"records", report.Records,
		"chunks", report.Chunks,
		"written", report.Written,
		"skipped", report.Skipped,
		"replaced", report.Replaced,
		"inserted", report.Inserted,
		"pruned", report.Pruned,
		"errors", report.Errors(),
		"elapsed", report.Elapsed.Round(time.Millisecond))
	if len(report.FailedArticles) > 0 {
		r.logger.Error("articles failed to embed", "count", len(report.FailedArticles), "article_ids", report.FailedArticles)
	}
	if len(report.IncompleteArticles) > 0 {
		r.logger.Error("articles partially written and removed", "count", len(report.IncompleteArticles), "article_ids", report.IncompleteArticles)
	}

	fmt.Fprintf(r.progress, "Sync complete. Processed %d records into %d chunks in %v (%d errors)\n",
		report.Records, report.Chunks, report.Elapsed.Round(time.Second), report.Errors())

	return report, nil
}

// dispatch feeds batches to fn, pausing BatchDelay between submissions.
// With more than one worker, batches run on an ants pool.
func (r *Reembedder) dispatch(ctx context.Context, records []core.Record, state *runState, fn func([]core.Record)) error {
	if r.config.Workers <= 1 {
		for n, batch := range Batches(records, r.config.BatchSize) {
			if n > 0 {
				if err := sleepContext(ctx, r.config.BatchDelay); err != nil {
					return err
				}
			}
			fn(batch)
			if state.failed() != nil {
				return nil
			}
		}
		return nil
	}

	pool, err := ants.NewPool(r.config.Workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	defer wg.Wait()

	for n, batch := range Batches(records, r.config.BatchSize) {
		if n > 0 {
			if err := sleepContext(ctx, r.config.BatchDelay); err != nil {
				return err
			}
		}
		if state.failed() != nil {
			return nil
		}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(batch)
		}); err != nil {
			wg.Done()
			return fmt.Errorf("failed to submit batch %d: %w", n, err)
		}
	}
	return nil
}

// prune removes indexed articles of source that were not seen in this run.
func (r *Reembedder) prune(ctx context.Context, source core.SourceType, seen map[string]struct{}) (int, error) {
	indexed, err := r.index.ListArticleIDs(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed articles: %w", err)
	}

	pruned := 0
	for _, id := range indexed {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		deleted, err := r.index.DeleteArticle(ctx, id)
		if err != nil {
			r.logger.Warn("failed to prune article", "article_id", id, "error", err)
			continue
		}
		r.logger.Info("pruned article no longer in source", "article_id", id, "chunks", deleted)
		pruned++
	}
	return pruned, nil
}

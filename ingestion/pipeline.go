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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
	"github.com/poiesic/kbsync/warehouse"
)

// DefaultChunkSize is the number of rows per bulk request.
const DefaultChunkSize = 500

// Pipeline copies warehouse rows into a raw index.
type Pipeline struct {
	source    warehouse.Source
	index     storage.RawIndex
	fetchPool *ants.Pool
	chunkSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many sources are fetched concurrently.
// Default is 2, one per source type.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.fetchPool != nil {
			p.fetchPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.fetchPool = pool
		return nil
	}
}

// WithChunkSize sets the number of rows per bulk request.
// Default is 500.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be at least 1, got %d", size)
		}
		p.chunkSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new raw ingestion pipeline.
func NewPipeline(source warehouse.Source, index storage.RawIndex, opts ...Option) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if index == nil {
		return nil, ErrRawIndexRequired
	}

	pool, err := ants.NewPool(len(core.SourceTypes))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:    source,
		index:     index,
		fetchPool: pool,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// SourceResult is the outcome for one source type.
type SourceResult struct {
	Source  core.SourceType
	Fetched int
	Indexed int
	Err     error
}

// Report collects the per-source outcomes of an Ingest call.
type Report struct {
	Results []SourceResult
	Elapsed time.Duration
}

// Indexed returns the number of rows indexed across all sources.
func (r *Report) Indexed() int {
	total := 0
	for _, res := range r.Results {
		total += res.Indexed
	}
	return total
}

// Err joins the per-source errors, or returns nil when every source succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Source, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Ingest fetches rows for each source and inserts them into the raw index.
// With recreate set the index is dropped and created first.
// The report is returned even when a source failed.
func (p *Pipeline) Ingest(ctx context.Context, recreate bool, sources ...core.SourceType) (*Report, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	for _, source := range sources {
		if err := core.ValidateSourceType(source); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	if recreate {
		if err := p.index.RecreateIndex(ctx); err != nil {
			return nil, fmt.Errorf("failed to recreate raw index: %w", err)
		}
	}

	report := &Report{Results: make([]SourceResult, len(sources))}
	fetched := make([][]core.Record, len(sources))

	var wg sync.WaitGroup
	for i, source := range sources {
		report.Results[i].Source = source

		wg.Add(1)
		err := p.fetchPool.Submit(func() {
			defer wg.Done()
			records, err := p.source.Fetch(ctx, source)
			if err != nil {
				p.logger.Error("error fetching rows", "source", source, "err", err)
				report.Results[i].Err = err
				return
			}
			fetched[i] = records
			report.Results[i].Fetched = len(records)
		})
		if err != nil {
			wg.Done()
			report.Results[i].Err = fmt.Errorf("failed to submit fetch: %w", err)
		}
	}
	wg.Wait()

	for i := range sources {
		res := &report.Results[i]
		if res.Err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}
		if len(fetched[i]) == 0 {
			p.logger.Info("no rows to index", "source", res.Source)
			continue
		}

		docs := make([]storage.RawDocument, len(fetched[i]))
		for j, record := range fetched[i] {
			docs[j] = storage.RawDocument{DocType: res.Source, Fields: record}
		}

		indexed, err := p.index.IndexRaw(ctx, docs, p.chunkSize)
		res.Indexed = indexed
		if err != nil {
			p.logger.Error("error indexing rows", "source", res.Source, "indexed", indexed, "err", err)
			res.Err = err
			continue
		}
		p.logger.Info("indexed raw rows", "source", res.Source, "fetched", res.Fetched, "indexed", indexed)
	}

	report.Elapsed = time.Since(start)
	return report, report.Err()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.fetchPool != nil {
		p.fetchPool.Release()
	}
}

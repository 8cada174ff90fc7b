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


// Package kbsync wires the warehouse, embedding provider and search indexes
// into a single client for sync runs.
package kbsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/kbsync/ai"
	"github.com/poiesic/kbsync/ai/openai"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/ingestion"
	"github.com/poiesic/kbsync/normalize"
	"github.com/poiesic/kbsync/reembed"
	"github.com/poiesic/kbsync/storage"
	"github.com/poiesic/kbsync/storage/badger"
	"github.com/poiesic/kbsync/storage/elastic"
	"github.com/poiesic/kbsync/warehouse"
)

var (
	// ErrVectorIndexRequired is returned when no vector index was configured.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrWarehouseRequired is returned by operations that read the warehouse
	// when no warehouse source was configured.
	ErrWarehouseRequired = errors.New("warehouse source required")

	// ErrRawIndexRequired is returned by raw ingestion when no raw index was configured.
	ErrRawIndexRequired = errors.New("raw index required")
)

// Client owns the external connections of a sync job.
type Client struct {
	vector    storage.VectorIndex
	raw       storage.RawIndex
	provider  ai.AIProvider
	aiConfig  *ai.Config
	source    warehouse.Source
	normalize normalize.Options
	closers   []io.Closer
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	aiConfig    *ai.Config
	provider    ai.AIProvider
	vector      storage.VectorIndex
	raw         storage.RawIndex
	source      warehouse.Source
	elastic     *elastic.Config
	vectorIndex string
	rawIndex    string
	badgerPath  string
	warehouse   *warehouse.Config
	baseURL     string
	logger      *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) ClientOption {
	return func(o *clientOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses an existing provider instead of creating one.
func WithAIProvider(provider ai.AIProvider) ClientOption {
	return func(o *clientOptions) {
		o.provider = provider
	}
}

// WithElasticsearch stores chunks and raw rows in Elasticsearch.
func WithElasticsearch(cfg elastic.Config, vectorIndex, rawIndex string) ClientOption {
	return func(o *clientOptions) {
		o.elastic = &cfg
		o.vectorIndex = vectorIndex
		o.rawIndex = rawIndex
	}
}

// WithBadgerIndex stores chunks in a local BadgerDB directory.
func WithBadgerIndex(path string) ClientOption {
	return func(o *clientOptions) {
		o.badgerPath = path
	}
}

// WithVectorIndex uses an existing vector index.
func WithVectorIndex(index storage.VectorIndex) ClientOption {
	return func(o *clientOptions) {
		o.vector = index
	}
}

// WithRawIndex uses an existing raw index.
func WithRawIndex(index storage.RawIndex) ClientOption {
	return func(o *clientOptions) {
		o.raw = index
	}
}

// WithWarehouse connects to BigQuery with cfg.
func WithWarehouse(cfg *warehouse.Config) ClientOption {
	return func(o *clientOptions) {
		o.warehouse = cfg
	}
}

// WithSource uses an existing warehouse source.
func WithSource(source warehouse.Source) ClientOption {
	return func(o *clientOptions) {
		o.source = source
	}
}

// WithBaseURL sets the ServiceNow instance URL used to build article links.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates the connections named by opts. A vector index must be
// configured. Connections opened before a failure are closed. The embedding
// provider is created on the first sync.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	options := &clientOptions{
		aiConfig:    ai.DefaultConfig(),
		vectorIndex: elastic.DefaultVectorIndex,
		rawIndex:    elastic.DefaultRawIndex,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.aiConfig == nil {
		options.aiConfig = ai.DefaultConfig()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &Client{
		vector:   options.vector,
		raw:      options.raw,
		source:   options.source,
		provider: options.provider,
		aiConfig: options.aiConfig,
		normalize: normalize.Options{
			BaseURL: options.baseURL,
			Logger:  options.logger,
		},
		logger: options.logger.With("component", "client"),
	}

	if err := c.open(ctx, options); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) open(ctx context.Context, options *clientOptions) error {
	if options.elastic != nil {
		es, err := elastic.NewClient(*options.elastic)
		if err != nil {
			return err
		}
		if c.vector == nil && options.badgerPath == "" {
			store := elastic.NewVectorStore(es, options.vectorIndex,
				elastic.WithDimensions(options.aiConfig.Dimensions),
				elastic.WithLogger(options.logger))
			c.vector = store
			c.closers = append(c.closers, store)
		}
		if c.raw == nil {
			c.raw = elastic.NewRawStore(es, options.rawIndex, options.logger)
		}
	}

	if c.vector == nil && options.badgerPath != "" {
		index, err := badger.OpenIndex(options.badgerPath)
		if err != nil {
			return fmt.Errorf("failed to open badger index: %w", err)
		}
		c.vector = index
		c.closers = append(c.closers, index)
	}
	if c.vector == nil {
		return ErrVectorIndexRequired
	}

	if c.source == nil && options.warehouse != nil {
		source, err := warehouse.NewBigQuerySource(ctx, options.warehouse, options.logger)
		if err != nil {
			return err
		}
		c.source = source
		c.closers = append(c.closers, source)
	}
	return nil
}

// embedder returns the provider's embedder, creating the provider on first
// use so index-only commands need no embedding credentials.
func (c *Client) embedder() (ai.Embedder, error) {
	if c.provider == nil {
		provider, err := openai.NewProvider(c.aiConfig)
		if err != nil {
			return nil, err
		}
		c.provider = provider
		c.closers = append(c.closers, provider)
	}
	return c.provider.Embedder(), nil
}

// Close releases every connection the client opened, in reverse order.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Error("error closing connection", "err", err)
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// VectorIndex returns the configured vector index.
func (c *Client) VectorIndex() storage.VectorIndex {
	return c.vector
}

// CreateIndex creates the vector index with its mapping.
func (c *Client) CreateIndex(ctx context.Context, recreate bool) error {
	return c.vector.EnsureIndex(ctx, recreate)
}

// Sync fetches source rows from the warehouse and re-embeds them incrementally.
func (c *Client) Sync(ctx context.Context, source core.SourceType, config *reembed.Config, progress io.Writer) (*reembed.RunReport, error) {
	if c.source == nil {
		return nil, ErrWarehouseRequired
	}
	records, err := c.source.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s rows: %w", source, err)
	}
	return c.SyncRecords(ctx, source, records, config, progress)
}

// SyncRecords re-embeds records that were already fetched.
func (c *Client) SyncRecords(ctx context.Context, source core.SourceType, records []core.Record, config *reembed.Config, progress io.Writer) (*reembed.RunReport, error) {
	embedder, err := c.embedder()
	if err != nil {
		return nil, err
	}
	r, err := reembed.NewReembedder(c.vector, embedder, config, progress,
		reembed.WithLogger(c.logger),
		reembed.WithNormalizeOptions(c.normalize))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, source, records)
}

// NewIngestionPipeline creates a raw row pipeline over the client's warehouse
// source and raw index.
func (c *Client) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	if c.source == nil {
		return nil, ErrWarehouseRequired
	}
	if c.raw == nil {
		return nil, ErrRawIndexRequired
	}
	return ingestion.NewPipeline(c.source, c.raw, append([]ingestion.Option{ingestion.WithLogger(c.logger)}, opts...)...)
}

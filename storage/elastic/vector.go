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


package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
)

const listPageSize = 1000

// VectorStore is a storage.VectorIndex backed by an Elasticsearch index.
type VectorStore struct {
	client *elasticsearch.Client
	index  string
	dims   int
	logger *slog.Logger
}

var _ storage.VectorIndex = (*VectorStore)(nil)

// VectorOption configures a VectorStore.
type VectorOption func(*VectorStore)

// WithDimensions sets the dense_vector width used when creating the index.
// Non-positive widths keep the default.
func WithDimensions(dims int) VectorOption {
	return func(s *VectorStore) {
		if dims > 0 {
			s.dims = dims
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) VectorOption {
	return func(s *VectorStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewVectorStore creates a store for the named index.
func NewVectorStore(client *elasticsearch.Client, index string, opts ...VectorOption) *VectorStore {
	s := &VectorStore{
		client: client,
		index:  index,
		dims:   DefaultDimensions,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "elastic-vector", "index", index)
	return s
}

// Index returns the index name.
func (s *VectorStore) Index() string {
	return s.index
}

func articleQuery(articleID string) map[string]any {
	return map[string]any{
		"term": map[string]any{
			"metadata.article_id": articleID,
		},
	}
}

type hashAggResponse struct {
	Aggregations struct {
		Hashes struct {
			Buckets []struct {
				Key string `json:"key"`
			} `json:"buckets"`
		} `json:"hashes"`
	} `json:"aggregations"`
}

// HashesForArticle implements storage.VectorIndex with a terms aggregation
// over article_hash, so conflicting hashes are all visible.
func (s *VectorStore) HashesForArticle(ctx context.Context, articleID string, limit int) ([]string, error) {
	if articleID == "" {
		return nil, fmt.Errorf("%w: empty article id", storage.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = 10
	}
	body, err := encodeBody(map[string]any{
		"size":  0,
		"query": articleQuery(articleID),
		"aggs": map[string]any{
			"hashes": map[string]any{
				"terms": map[string]any{"field": "article_hash", "size": limit},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("hash lookup for %s: %w", articleID, err)
	}

	var parsed hashAggResponse
	if err := decode(res, &parsed); err != nil {
		if errors.Is(err, storage.ErrIndexMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("hash lookup for %s: %w", articleID, err)
	}

	hashes := make([]string, 0, len(parsed.Aggregations.Hashes.Buckets))
	for _, b := range parsed.Aggregations.Hashes.Buckets {
		hashes = append(hashes, b.Key)
	}
	return hashes, nil
}

type deleteByQueryResponse struct {
	Deleted int64 `json:"deleted"`
}

// DeleteArticle implements storage.VectorIndex with delete-by-query.
// The index is refreshed so the next lookup sees the deletion.
func (s *VectorStore) DeleteArticle(ctx context.Context, articleID string) (int64, error) {
	if articleID == "" {
		return 0, fmt.Errorf("%w: empty article id", storage.ErrInvalidQuery)
	}
	body, err := encodeBody(map[string]any{"query": articleQuery(articleID)})
	if err != nil {
		return 0, err
	}

	res, err := s.client.DeleteByQuery(
		[]string{s.index},
		body,
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
		s.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", articleID, err)
	}

	var parsed deleteByQueryResponse
	if err := decode(res, &parsed); err != nil {
		if errors.Is(err, storage.ErrIndexMissing) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete chunks of %s: %w", articleID, err)
	}
	s.logger.Info("deleted embeddings", "article_id", articleID, "chunks", parsed.Deleted)
	return parsed.Deleted, nil
}

// BulkIndex implements storage.VectorIndex. Every call uses its own bulk
// indexer, closed (and so flushed and refreshed) before returning.
func (s *VectorStore) BulkIndex(ctx context.Context, docs []*core.ChunkDocument, timeout time.Duration) (int, []storage.BulkFailure, error) {
	if len(docs) == 0 {
		return 0, nil, nil
	}

	items := make([]bulkItem, 0, len(docs))
	var failures []storage.BulkFailure
	for _, doc := range docs {
		payload, err := json.Marshal(doc)
		if err != nil {
			failures = append(failures, storage.BulkFailure{ID: doc.ID, Status: http.StatusBadRequest, Reason: err.Error()})
			continue
		}
		items = append(items, bulkItem{id: doc.ID, body: payload})
	}

	written, bulkFailures, err := bulkWrite(ctx, s.client, s.index, items, timeout)
	failures = append(failures, bulkFailures...)
	if err != nil {
		return written, failures, err
	}
	return written, failures, nil
}

type compositeResponse struct {
	Aggregations struct {
		IDs struct {
			AfterKey map[string]any `json:"after_key"`
			Buckets  []struct {
				Key struct {
					ArticleID string `json:"article_id"`
				} `json:"key"`
			} `json:"buckets"`
		} `json:"ids"`
	} `json:"aggregations"`
}

// ListArticleIDs implements storage.VectorIndex by paging a composite
// aggregation over article_id.
func (s *VectorStore) ListArticleIDs(ctx context.Context, source core.SourceType) ([]string, error) {
	var ids []string
	var after map[string]any

	for {
		composite := map[string]any{
			"size": listPageSize,
			"sources": []any{
				map[string]any{"article_id": map[string]any{"terms": map[string]any{"field": "article_id"}}},
			},
		}
		if after != nil {
			composite["after"] = after
		}
		body, err := encodeBody(map[string]any{
			"size":  0,
			"query": map[string]any{"term": map[string]any{"source": string(source)}},
			"aggs":  map[string]any{"ids": map[string]any{"composite": composite}},
		})
		if err != nil {
			return nil, err
		}

		res, err := s.client.Search(
			s.client.Search.WithContext(ctx),
			s.client.Search.WithIndex(s.index),
			s.client.Search.WithBody(body),
		)
		if err != nil {
			return nil, fmt.Errorf("list article ids: %w", err)
		}

		var parsed compositeResponse
		if err := decode(res, &parsed); err != nil {
			if errors.Is(err, storage.ErrIndexMissing) {
				return nil, nil
			}
			return nil, fmt.Errorf("list article ids: %w", err)
		}

		buckets := parsed.Aggregations.IDs.Buckets
		for _, b := range buckets {
			ids = append(ids, b.Key.ArticleID)
		}
		if len(buckets) < listPageSize || parsed.Aggregations.IDs.AfterKey == nil {
			return ids, nil
		}
		after = parsed.Aggregations.IDs.AfterKey
	}
}

// EnsureIndex implements storage.VectorIndex.
func (s *VectorStore) EnsureIndex(ctx context.Context, recreate bool) error {
	return ensureIndex(ctx, s.client, s.index, VectorMapping(s.dims), recreate, s.logger)
}

// Close implements storage.VectorIndex. The shared client has no
// resources to release.
func (s *VectorStore) Close() error {
	return nil
}

type bulkItem struct {
	id   string
	body []byte
}

// bulkWrite indexes items with a dedicated BulkIndexer and collects
// per-item failures. Items without an id get one assigned by the server.
func bulkWrite(ctx context.Context, client *elasticsearch.Client, index string, items []bulkItem, timeout time.Duration) (int, []storage.BulkFailure, error) {
	var (
		mu       sync.Mutex
		failures []storage.BulkFailure
	)

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     client,
		Index:      index,
		NumWorkers: 1,
		Refresh:    "true",
		Timeout:    timeout,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for _, item := range items {
		err := bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: item.id,
			Body:       bytes.NewReader(item.body),
			OnFailure: func(_ context.Context, it esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				f := storage.BulkFailure{ID: it.DocumentID, Status: res.Status}
				if err != nil {
					f.Reason = err.Error()
				} else {
					f.Reason = res.Error.Type + ": " + res.Error.Reason
				}
				mu.Lock()
				failures = append(failures, f)
				mu.Unlock()
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return 0, failures, fmt.Errorf("%w: %w", storage.ErrRequestFailed, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return int(bi.Stats().NumFlushed), failures, fmt.Errorf("%w: %w", storage.ErrRequestFailed, err)
	}
	return int(bi.Stats().NumFlushed), failures, nil
}

// ensureIndex creates index with body unless it exists. With recreate an
// existing index is deleted first.
func ensureIndex(ctx context.Context, client *elasticsearch.Client, index string, body map[string]any, recreate bool, logger *slog.Logger) error {
	res, err := client.Indices.Exists([]string{index}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	res.Body.Close()
	exists := res.StatusCode == http.StatusOK

	if exists && !recreate {
		logger.Debug("index already exists")
		return nil
	}
	if exists {
		res, err := client.Indices.Delete([]string{index}, client.Indices.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("delete index %s: %w", index, err)
		}
		if err := decode(res, nil); err != nil {
			return fmt.Errorf("delete index %s: %w", index, err)
		}
		logger.Info("deleted existing index")
	}

	payload, err := encodeBody(body)
	if err != nil {
		return err
	}
	res, err = client.Indices.Create(index,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(payload),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	if err := decode(res, nil); err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	logger.Info("created index")
	return nil
}

func encodeBody(v any) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return bytes.NewReader(b), nil
}

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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/poiesic/kbsync/storage"
)

// DefaultRawChunkSize is the number of rows per bulk request.
const DefaultRawChunkSize = 500

// RawStore is a storage.RawIndex backed by an Elasticsearch index with a
// dynamic mapping.
type RawStore struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ storage.RawIndex = (*RawStore)(nil)

// NewRawStore creates a raw store for the named index.
func NewRawStore(client *elasticsearch.Client, index string, logger *slog.Logger) *RawStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RawStore{
		client:  client,
		index:   index,
		timeout: time.Minute,
		logger:  logger.With("component", "elastic-raw", "index", index),
	}
}

// RecreateIndex implements storage.RawIndex.
func (s *RawStore) RecreateIndex(ctx context.Context) error {
	return ensureIndex(ctx, s.client, s.index, map[string]any{}, true, s.logger)
}

// IndexRaw implements storage.RawIndex. Rows get server-assigned ids and a
// doc_type field. Rows rejected by the server are logged and not counted.
func (s *RawStore) IndexRaw(ctx context.Context, docs []storage.RawDocument, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultRawChunkSize
	}

	total := 0
	for start := 0; start < len(docs); start += chunkSize {
		end := min(start+chunkSize, len(docs))

		items := make([]bulkItem, 0, end-start)
		for _, doc := range docs[start:end] {
			payload, err := json.Marshal(doc.Body())
			if err != nil {
				s.logger.Warn("skipping unserializable row", "error", err)
				continue
			}
			items = append(items, bulkItem{body: payload})
		}

		written, failures, err := bulkWrite(ctx, s.client, s.index, items, s.timeout)
		total += written
		for _, f := range failures {
			s.logger.Warn("raw document rejected", "status", f.Status, "reason", f.Reason)
		}
		if err != nil {
			return total, fmt.Errorf("index raw rows %d-%d: %w", start, end, err)
		}
	}

	s.logger.Info("inserted raw documents", "inserted", total, "total", len(docs))
	return total, nil
}

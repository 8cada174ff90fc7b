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


package storage

import (
	"context"
	"time"

	"github.com/poiesic/kbsync/core"
)

// VectorIndex stores embedded chunk documents and answers the lookups the
// sync pipeline needs. Implementations assume a single writer per index.
type VectorIndex interface {
	// HashesForArticle returns up to limit distinct article hashes stored for
	// articleID. A missing index or an unknown article yields an empty slice.
	HashesForArticle(ctx context.Context, articleID string, limit int) ([]string, error)

	// DeleteArticle removes every chunk stored for articleID and returns the
	// number of chunks removed.
	DeleteArticle(ctx context.Context, articleID string) (int64, error)

	// BulkIndex upserts docs by id. Per-document failures are returned rather
	// than raised; the error is reserved for request-level failures.
	BulkIndex(ctx context.Context, docs []*core.ChunkDocument, timeout time.Duration) (int, []BulkFailure, error)

	// ListArticleIDs returns every distinct article id stored for source.
	ListArticleIDs(ctx context.Context, source core.SourceType) ([]string, error)

	// EnsureIndex creates the index with its mapping if needed.
	// With recreate set, an existing index is dropped first.
	EnsureIndex(ctx context.Context, recreate bool) error

	// Close releases resources held by the index.
	Close() error
}

// RawIndex holds the unprocessed warehouse rows for keyword search.
type RawIndex interface {
	// RecreateIndex drops the raw index if it exists and creates it again.
	RecreateIndex(ctx context.Context) error

	// IndexRaw bulk inserts docs in groups of chunkSize and returns the
	// number of documents indexed.
	IndexRaw(ctx context.Context, docs []RawDocument, chunkSize int) (int, error)
}

// RawDocument is one warehouse row tagged with its source type.
type RawDocument struct {
	DocType core.SourceType
	Fields  core.Record
}

// Body returns the document as stored: the row fields plus doc_type.
func (d RawDocument) Body() map[string]any {
	body := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		body[k] = v
	}
	body["doc_type"] = string(d.DocType)
	return body
}

// BulkFailure describes one document rejected by a bulk request.
type BulkFailure struct {
	ID     string
	Status int
	Reason string
}

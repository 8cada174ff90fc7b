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


package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
)

// Index is a storage.VectorIndex kept in a local BadgerDB database.
// Chunk documents are stored as JSON under chunk:<article_id>:<chunk_id>.
type Index struct {
	backend *Backend
	logger  *slog.Logger
	owned   bool
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates an index on top of an existing backend.
// The caller keeps ownership of the backend.
func NewIndex(backend *Backend) *Index {
	return &Index{
		backend: backend,
		logger:  backend.logger.With("component", "badger-index"),
	}
}

// OpenIndex opens (or creates) an on-disk index at path.
// Closing the index closes the database.
func OpenIndex(path string) (*Index, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger index at %s: %w", path, err)
	}
	idx := NewIndex(backend)
	idx.owned = true
	return idx, nil
}

// HashesForArticle implements storage.VectorIndex.
func (i *Index) HashesForArticle(ctx context.Context, articleID string, limit int) ([]string, error) {
	if articleID == "" {
		return nil, fmt.Errorf("%w: empty article id", storage.ErrInvalidQuery)
	}
	var hashes []string
	err := i.scanArticle(ctx, articleID, func(doc *core.ChunkDocument) error {
		if !slices.Contains(hashes, doc.ArticleHash) && (limit <= 0 || len(hashes) < limit) {
			hashes = append(hashes, doc.ArticleHash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// DeleteArticle implements storage.VectorIndex.
func (i *Index) DeleteArticle(ctx context.Context, articleID string) (int64, error) {
	if articleID == "" {
		return 0, fmt.Errorf("%w: empty article id", storage.ErrInvalidQuery)
	}
	n, err := i.deleteMatching(ctx, makeArticlePrefix(articleID), func(id string) bool {
		return id == articleID
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for article %s: %w", articleID, err)
	}
	if n > 0 {
		i.logger.Debug("deleted article chunks", "article_id", articleID, "chunks", n)
	}
	return n, nil
}

// BulkIndex implements storage.VectorIndex. Documents that fail validation
// are reported as failures; the rest are written.
func (i *Index) BulkIndex(ctx context.Context, docs []*core.ChunkDocument, timeout time.Duration) (int, []storage.BulkFailure, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var failures []storage.BulkFailure
	written := 0
	err := i.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := core.ValidateChunkDocument(doc); err != nil {
				failures = append(failures, storage.BulkFailure{ID: chunkIDOf(doc), Status: http.StatusBadRequest, Reason: err.Error()})
				continue
			}
			value, err := json.Marshal(doc)
			if err != nil {
				failures = append(failures, storage.BulkFailure{ID: doc.ID, Status: http.StatusBadRequest, Reason: err.Error()})
				continue
			}
			if err := wb.Set(makeChunkKey(doc.ArticleID, doc.ChunkID), value); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, failures, fmt.Errorf("%w: %w", storage.ErrRequestFailed, err)
	}
	return written, failures, nil
}

// ListArticleIDs implements storage.VectorIndex. Ids are returned sorted.
func (i *Index) ListArticleIDs(ctx context.Context, source core.SourceType) ([]string, error) {
	seen := make(map[string]struct{})
	err := i.scan(ctx, makeChunkScanPrefix(), func(doc *core.ChunkDocument) error {
		if doc.Source == source {
			seen[doc.ArticleID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// EnsureIndex implements storage.VectorIndex. Badger needs no mapping, so
// only recreate has an effect: it removes every stored chunk.
func (i *Index) EnsureIndex(ctx context.Context, recreate bool) error {
	if !recreate {
		return nil
	}
	n, err := i.deleteMatching(ctx, makeChunkScanPrefix(), func(string) bool { return true })
	if err != nil {
		return fmt.Errorf("failed to drop chunks: %w", err)
	}
	i.logger.Info("dropped all chunks", "chunks", n)
	return nil
}

// ArticleChunks returns the stored chunks of an article ordered by chunk id.
func (i *Index) ArticleChunks(ctx context.Context, articleID string) ([]*core.ChunkDocument, error) {
	var docs []*core.ChunkDocument
	err := i.scanArticle(ctx, articleID, func(doc *core.ChunkDocument) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(docs, func(a, b *core.ChunkDocument) int {
		return a.ChunkID - b.ChunkID
	})
	return docs, nil
}

// Count returns the total number of stored chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	n := 0
	err := i.backend.ScanPrefix(ctx, makeChunkScanPrefix(), func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// Close implements storage.VectorIndex.
func (i *Index) Close() error {
	if i.owned {
		return i.backend.Close()
	}
	return nil
}

// deleteMatching removes every chunk under prefix whose article id matches.
func (i *Index) deleteMatching(ctx context.Context, prefix []byte, match func(articleID string) bool) (int64, error) {
	var keys [][]byte
	err := i.backend.ScanPrefix(ctx, prefix, func(key, _ []byte) error {
		id, _, err := parseChunkKey(key)
		if err != nil {
			return err
		}
		if match(id) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	err = i.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, key := range keys {
			if err := wb.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (i *Index) scanArticle(ctx context.Context, articleID string, fn func(doc *core.ChunkDocument) error) error {
	return i.scan(ctx, makeArticlePrefix(articleID), func(doc *core.ChunkDocument) error {
		if doc.ArticleID != articleID {
			return nil
		}
		return fn(doc)
	})
}

func (i *Index) scan(ctx context.Context, prefix []byte, fn func(doc *core.ChunkDocument) error) error {
	return i.backend.ScanPrefix(ctx, prefix, func(key, value []byte) error {
		doc, err := decodeChunk(key, value)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

func decodeChunk(key, value []byte) (*core.ChunkDocument, error) {
	var doc core.ChunkDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, fmt.Errorf("%w: chunk %s: %w", storage.ErrSerializationFailed, key, err)
	}
	doc.ID = core.ChunkID(doc.ArticleID, doc.ChunkID)
	return &doc, nil
}

func chunkIDOf(doc *core.ChunkDocument) string {
	if doc == nil {
		return ""
	}
	return doc.ID
}

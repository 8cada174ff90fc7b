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
	"log/slog"
	"time"

	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
)

const (
	// DefaultBulkChunkSize is the maximum number of documents per bulk request.
	DefaultBulkChunkSize = 500

	// DefaultBulkTimeout bounds a single bulk request.
	DefaultBulkTimeout = 60 * time.Second
)

// BulkResult summarizes a Write call.
type BulkResult struct {
	Succeeded int
	Failed    []storage.BulkFailure

	// Incomplete lists articles with at least one failed document. Their
	// written chunks are removed so the next run inserts them again.
	Incomplete []string
}

// BulkWriter submits chunk documents to the vector index in bounded groups.
type BulkWriter struct {
	index     storage.VectorIndex
	chunkSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewBulkWriter creates a writer. Non-positive chunkSize and timeout use the defaults.
func NewBulkWriter(index storage.VectorIndex, chunkSize int, timeout time.Duration, logger *slog.Logger) *BulkWriter {
	if chunkSize <= 0 {
		chunkSize = DefaultBulkChunkSize
	}
	if timeout <= 0 {
		timeout = DefaultBulkTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkWriter{
		index:     index,
		chunkSize: chunkSize,
		timeout:   timeout,
		logger:    logger.With("component", "bulk-writer"),
	}
}

// Write submits docs in groups of at most chunkSize. Rejected documents are
// collected in the result; a group whose request fails outright counts all
// of its documents as failed. Articles left with a partial chunk set are
// deleted from the index. The returned error is only set when ctx is done.
func (w *BulkWriter) Write(ctx context.Context, docs []*core.ChunkDocument) (BulkResult, error) {
	var result BulkResult

	for _, group := range Batches(docs, w.chunkSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		written, failures, err := w.index.BulkIndex(ctx, group, w.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			w.logger.Error("bulk request failed", "documents", len(group), "error", err)
			for _, doc := range group {
				result.Failed = append(result.Failed, storage.BulkFailure{ID: doc.ID, Reason: err.Error()})
			}
			continue
		}

		result.Succeeded += written
		result.Failed = append(result.Failed, failures...)
		for _, f := range failures {
			w.logger.Warn("document rejected", "id", f.ID, "status", f.Status, "reason", f.Reason)
		}
	}

	if len(result.Failed) > 0 {
		result.Incomplete = incompleteArticles(docs, result.Failed)
		if err := w.rollback(ctx, result.Incomplete); err != nil {
			return result, err
		}
	}

	if len(docs) > 0 {
		w.logger.Info("bulk write complete", "succeeded", result.Succeeded, "failed", len(result.Failed),
			"incomplete_articles", len(result.Incomplete))
	}
	return result, nil
}

// rollback removes the written chunks of incomplete articles. Chunks of a
// stored article carry its current hash, so leaving a partial set behind
// would make every later run skip the article.
func (w *BulkWriter) rollback(ctx context.Context, articleIDs []string) error {
	for _, id := range articleIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := w.index.DeleteArticle(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("failed to remove partially written article", "article_id", id, "error", err)
			continue
		}
		w.logger.Warn("removed partially written article", "article_id", id, "chunks", deleted)
	}
	return nil
}

// incompleteArticles maps failed document ids back to their articles,
// in first-failure order.
func incompleteArticles(docs []*core.ChunkDocument, failed []storage.BulkFailure) []string {
	articleOf := make(map[string]string, len(docs))
	for _, doc := range docs {
		articleOf[doc.ID] = doc.ArticleID
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, f := range failed {
		id, ok := articleOf[f.ID]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

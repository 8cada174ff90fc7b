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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/kbsync/ai"
	"github.com/poiesic/kbsync/chunk"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/normalize"
)

// BatchResult is everything one batch produced. Nothing in it has been
// written to the index yet.
type BatchResult struct {
	// Documents are the assembled chunk documents, in record and chunk order.
	Documents []*core.ChunkDocument

	// Failed lists articles whose embedding (or stale-chunk deletion) failed.
	Failed []core.FailedArticle

	// ChunkCount counts the chunks of every article that went on to embedding,
	// including those whose embedding then failed.
	ChunkCount int

	// ArticleIDs lists every article that normalized successfully,
	// whatever happened to it afterwards.
	ArticleIDs []string

	Skipped     int
	Unpublished int
	Invalid     int
	Replaced    int
	Inserted    int
}

// BatchProcessor turns a batch of warehouse records into embedded chunk documents.
type BatchProcessor struct {
	normalizer     normalize.Normalizer
	decider        *Decider
	splitter       *chunk.Splitter
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(normalizer normalize.Normalizer, decider *Decider, splitter *chunk.Splitter, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		normalizer:     normalizer,
		decider:        decider,
		splitter:       splitter,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger.With("component", "batch-processor"),
	}
}

// Process handles records in order. A failure on one article is recorded in
// the result and processing continues; only context cancellation stops the
// batch, in which case the partial result is returned with the context error.
func (bp *BatchProcessor) Process(ctx context.Context, records []core.Record) (*BatchResult, error) {
	result := &BatchResult{}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := bp.normalizer.Normalize(record)
		if err != nil {
			bp.logger.Warn("skipping invalid record", "error", err)
			result.Invalid++
			continue
		}
		if doc == nil {
			result.Unpublished++
			continue
		}

		result.ArticleIDs = append(result.ArticleIDs, doc.ArticleID)
		hash := core.ContentHash(doc.Body)
		metadata := doc.Metadata()

		action, err := bp.decider.Decide(ctx, doc.ArticleID, hash)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			bp.logger.Error("failed to prepare article", "article_id", doc.ArticleID, "error", err)
			result.Failed = append(result.Failed, core.FailedArticle{Metadata: metadata, Err: err})
			continue
		}

		switch action {
		case core.ActionSkip:
			result.Skipped++
			continue
		case core.ActionReplace:
			result.Replaced++
		default:
			result.Inserted++
		}

		chunks, err := bp.splitter.Chunks(doc.Body)
		if err != nil {
			result.Failed = append(result.Failed, core.FailedArticle{Metadata: metadata, Err: err})
			continue
		}
		result.ChunkCount += len(chunks)
		if len(chunks) == 0 {
			bp.logger.Warn("article has an empty body", "article_id", doc.ArticleID)
			continue
		}

		texts := chunkTexts(chunks)
		vectors, err := bp.embed(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			bp.logger.Error("error embedding document", "article_id", doc.ArticleID, "chunks", len(chunks), "error", err)
			result.Failed = append(result.Failed, core.FailedArticle{Metadata: metadata, Chunks: texts, Err: err})
			continue
		}

		for _, c := range chunks {
			result.Documents = append(result.Documents, &core.ChunkDocument{
				ID:          core.ChunkID(doc.ArticleID, c.Index),
				Embedding:   vectors[c.Index],
				PageContent: c.Text,
				Metadata:    metadata,
				ArticleID:   doc.ArticleID,
				ChunkID:     c.Index,
				ArticleHash: hash,
				Source:      doc.Source,
			})
		}
	}

	return result, nil
}

func chunkTexts(chunks []core.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

// embed makes one embedding call for all chunks of an article, retrying
// transient failures, and returns unit-length vectors in chunk order.
func (bp *BatchProcessor) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, chunks)
		if err != nil {
			return err
		}
		if len(vectors) != len(chunks) {
			return Permanent(fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(chunks), len(vectors)))
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		if errors.Is(err, ErrEmbeddingMismatch) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	for i := range vectors {
		vectors[i] = NormalizeVector(vectors[i])
	}
	return vectors, nil
}

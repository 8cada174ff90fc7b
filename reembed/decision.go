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

	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/storage"
)

// hashLookupLimit is the number of distinct stored hashes requested per
// article. Two is enough to detect an article stored under several hashes.
const hashLookupLimit = 2

// Decider compares an article's new content hash against the vector index.
type Decider struct {
	index  storage.VectorIndex
	logger *slog.Logger
}

// NewDecider creates a decider over index. A nil logger uses slog.Default().
func NewDecider(index storage.VectorIndex, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		index:  index,
		logger: logger.With("component", "decider"),
	}
}

// Decide returns what to do with an article whose body hashes to newHash.
//
// On ActionReplace every stored chunk of the article has already been
// deleted when Decide returns. A failed delete is returned as an error so the
// caller does not write new chunks next to stale ones.
//
// Lookup failures are not fatal: the article is treated as new and its
// chunks overwrite any stored ones by id.
func (d *Decider) Decide(ctx context.Context, articleID, newHash string) (core.Action, error) {
	hashes, err := d.index.HashesForArticle(ctx, articleID, hashLookupLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if !errors.Is(err, storage.ErrIndexMissing) && !errors.Is(err, storage.ErrNotFound) {
			d.logger.Warn("hash lookup failed, treating article as new", "article_id", articleID, "error", err)
		}
		return core.ActionInsert, nil
	}

	switch {
	case len(hashes) == 0:
		return core.ActionInsert, nil
	case len(hashes) == 1 && hashes[0] == newHash:
		d.logger.Info("article unchanged, skipping", "article_id", articleID, "hash", newHash)
		return core.ActionSkip, nil
	case len(hashes) > 1:
		d.logger.Warn("article stored under several hashes, replacing", "article_id", articleID, "hashes", hashes)
	}

	deleted, err := d.index.DeleteArticle(ctx, articleID)
	if err != nil {
		return core.ActionReplace, fmt.Errorf("failed to delete stale chunks of %s: %w", articleID, err)
	}
	d.logger.Info("article changed, replacing", "article_id", articleID, "deleted_chunks", deleted, "hash", newHash)
	return core.ActionReplace, nil
}

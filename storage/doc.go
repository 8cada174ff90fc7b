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


// Package storage defines the index abstractions used by the sync pipeline.
//
// VectorIndex holds embedded chunk documents keyed by "<article_id>_chunk_<n>".
// The pipeline only needs four things from it: the stored hashes of an
// article, deletion of every chunk of an article, failure-tolerant bulk
// upserts, and the list of article ids per source for pruning.
//
// RawIndex holds the unprocessed warehouse rows.
//
// # Implementations
//
//   - storage/elastic: Elasticsearch, the production backend.
//   - storage/badger: BadgerDB, for offline runs and tests.
//
// Use in tests with in-memory storage:
//
//	idx, err := badger.OpenMemoryIndex()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage

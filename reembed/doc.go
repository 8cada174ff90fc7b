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


// Package reembed keeps the vector index in step with warehouse content.
//
// A run takes the records of one source type and processes them in
// fixed-size batches. For every record the BatchProcessor normalizes it,
// fingerprints the body and asks the Decider what to do:
//
//   - Skip: the stored article_hash matches, nothing is written.
//   - Replace: the hash differs; every stored chunk of the article is
//     deleted before the new chunks are embedded.
//   - Insert: nothing is stored for the article yet.
//
// Embedding failures are isolated per article and collected in the batch
// result. The BulkWriter then submits the assembled chunk documents in
// groups, counting per-document failures instead of aborting. Between
// batches the Reembedder waits a fixed delay to stay under provider and
// index rate limits.
//
// Restart safety comes from the hash comparison: re-running after a crash
// skips every article that was fully written. The pipeline assumes it is the
// only writer to the index while it runs.
package reembed

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


// Package elastic implements the storage indexes on Elasticsearch.
//
// One *elasticsearch.Client is created per process with NewClient and shared
// by a VectorStore (embedded chunk documents) and a RawStore (unprocessed
// warehouse rows). Bulk writes go through esutil.BulkIndexer with one
// indexer per group so every group is flushed and refreshed before the
// next batch looks up hashes again.
package elastic

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


// Package ingestion copies raw warehouse rows into the keyword search index.
//
// The Pipeline fetches one result set per source type, tags every row with
// its doc_type and bulk inserts the rows into a storage.RawIndex. Fetches run
// concurrently on a worker pool; writes to the index happen one source at a
// time. A failing source is reported without aborting the others.
package ingestion

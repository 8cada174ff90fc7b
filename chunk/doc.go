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


// Package chunk splits normalized markdown bodies into overlapping chunks.
//
// Chunks are bounded by a maximum length and share a fixed overlap with
// their neighbour. Splits happen preferentially at markdown structure
// (headings, code fences, rules, paragraphs) before falling back to lines,
// words and characters, so semantic units are only broken when a single unit
// is longer than the chunk size. Chunk order is significant: the position of
// a chunk becomes its index in the vector index.
package chunk

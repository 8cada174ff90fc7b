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
	"iter"
	"slices"
)

// DefaultBatchSize is the default number of records per batch.
const DefaultBatchSize = 20

// Batches yields consecutive slices of at most size items together with the
// batch number. The last batch may be shorter. Sizes below 1 use
// DefaultBatchSize. The sequence can be ranged over more than once.
func Batches[T any](items []T, size int) iter.Seq2[int, []T] {
	if size < 1 {
		size = DefaultBatchSize
	}
	return func(yield func(int, []T) bool) {
		if len(items) == 0 {
			return
		}
		n := 0
		for batch := range slices.Chunk(items, size) {
			if !yield(n, batch) {
				return
			}
			n++
		}
	}
}

// BatchCount returns how many batches Batches yields for n items.
func BatchCount(n, size int) int {
	if size < 1 {
		size = DefaultBatchSize
	}
	return (n + size - 1) / size
}

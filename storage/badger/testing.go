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

// OpenMemoryIndex creates an in-memory index for testing.
// Closing the index closes the underlying database.
func OpenMemoryIndex() (*Index, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	idx := NewIndex(backend)
	idx.owned = true
	return idx, nil
}

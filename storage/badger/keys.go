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

import (
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes for different data types
const (
	chunkPrefix = "chunk"
)

// makeChunkKey generates a key for a chunk document.
// Format: chunk:articleID:chunkID
func makeChunkKey(articleID string, chunkID int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", chunkPrefix, articleID, chunkID))
}

// makeArticlePrefix generates the prefix shared by every chunk of an article.
// Format: chunk:articleID:
func makeArticlePrefix(articleID string) []byte {
	return []byte(chunkPrefix + ":" + articleID + ":")
}

// makeChunkScanPrefix matches every chunk key.
func makeChunkScanPrefix() []byte {
	return []byte(chunkPrefix + ":")
}

// parseChunkKey splits a chunk key into its article id and chunk id.
// The article id may itself contain colons; the chunk id never does.
func parseChunkKey(key []byte) (string, int, error) {
	rest, ok := strings.CutPrefix(string(key), chunkPrefix+":")
	if !ok {
		return "", 0, fmt.Errorf("not a chunk key: %q", key)
	}
	sep := strings.LastIndexByte(rest, ':')
	if sep <= 0 {
		return "", 0, fmt.Errorf("malformed chunk key: %q", key)
	}
	chunkID, err := strconv.Atoi(rest[sep+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk key %q: %w", key, err)
	}
	return rest[:sep], chunkID, nil
}

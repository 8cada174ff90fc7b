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


package core

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// HashSize is the digest size in bytes (128 bits).
const HashSize = 16

// ContentHash fingerprints a document body for change detection.
// Identical bodies always produce identical hashes. The result is a
// 32-character lowercase hex string.
func ContentHash(body string) string {
	return sum([]byte(body))
}

func sum(data []byte) string {
	h, _ := blake2b.New(HashSize, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

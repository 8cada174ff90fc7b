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

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ArticleID must not be empty
//   - Source must be a known SourceType
//
// NOT validated:
//   - Body (an empty body simply produces no chunks)
//   - Timestamp (optional in both sources)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ArticleID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyArticleID)
	}

	if err := ValidateSourceType(doc.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateSourceType validates that a SourceType has a known value.
func ValidateSourceType(source SourceType) error {
	if source != SourceKB && source != SourceNews {
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, string(source))
	}
	return nil
}

// ValidateChunkDocument checks the invariants every persisted chunk must hold.
func ValidateChunkDocument(doc *ChunkDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidChunkDocument)
	}
	if doc.ArticleID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkDocument, ErrEmptyArticleID)
	}
	if doc.ID != ChunkID(doc.ArticleID, doc.ChunkID) {
		return fmt.Errorf("%w: id %q does not match article %q chunk %d",
			ErrInvalidChunkDocument, doc.ID, doc.ArticleID, doc.ChunkID)
	}
	if doc.ArticleHash == "" {
		return fmt.Errorf("%w: article hash is empty", ErrInvalidChunkDocument)
	}
	return nil
}

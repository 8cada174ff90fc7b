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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidSourceType indicates an unknown source type.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrEmptyArticleID indicates the article identity field is empty.
	ErrEmptyArticleID = errors.New("article id cannot be empty")

	// ErrInvalidChunkDocument indicates a ChunkDocument failed validation.
	ErrInvalidChunkDocument = errors.New("invalid chunk document")
)

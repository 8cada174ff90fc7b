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


package elastic

// VectorMapping returns the index body for the embedded chunk index.
// Vectors are unit length, so dot_product similarity is used.
func VectorMapping(dims int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "dot_product",
				},
				"page_content": map[string]any{"type": "text"},
				"metadata": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"article_id": map[string]any{"type": "keyword"},
						"title":      map[string]any{"type": "text"},
						"url":        map[string]any{"type": "keyword"},
						"source":     map[string]any{"type": "keyword"},
						"kb_number":  map[string]any{"type": "keyword"},
					},
				},
				"article_id":   map[string]any{"type": "keyword"},
				"chunk_id":     map[string]any{"type": "integer"},
				"article_hash": map[string]any{"type": "keyword"},
				"source":       map[string]any{"type": "keyword"},
			},
		},
	}
}

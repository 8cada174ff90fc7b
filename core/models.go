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
	"fmt"
	"strconv"
	"time"
)

// SourceType identifies which warehouse table an article came from.
type SourceType string

const (
	// SourceKB is a knowledge-base article.
	SourceKB SourceType = "kb"
	// SourceNews is a news item.
	SourceNews SourceType = "news"
)

// SourceTypes lists every supported source in a stable order.
var SourceTypes = []SourceType{SourceKB, SourceNews}

// ParseSourceType converts a string into a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceKB:
		return SourceKB, nil
	case SourceNews:
		return SourceNews, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSourceType, s)
	}
}

func (s SourceType) String() string {
	return string(s)
}

// Record is a single warehouse row keyed by column name.
// Column presence varies by source type, so accessors treat missing
// columns as empty rather than failing.
type Record map[string]any

// String returns the column value as a string.
// Missing or nil columns yield "".
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Optional returns the column value, or nil when the column is absent.
func (r Record) Optional(key string) any {
	v, ok := r[key]
	if !ok {
		return nil
	}
	return v
}

// OptionalString returns a pointer to the column's string value, or nil
// when the column is absent, nil or empty.
func (r Record) OptionalString(key string) *string {
	s := r.String(key)
	if s == "" {
		return nil
	}
	return &s
}

// Document is the canonical shape every source record is normalized into.
type Document struct {
	ArticleID string
	Body      string
	Title     string
	Timestamp *string
	URL       string
	Source    SourceType
	Extra     map[string]any
}

// Metadata builds the metadata object stored alongside every chunk of the document.
// Source-specific extra fields are merged in but never override the common keys.
func (d *Document) Metadata() map[string]any {
	md := make(map[string]any, 5+len(d.Extra))
	for k, v := range d.Extra {
		md[k] = v
	}
	md["article_id"] = d.ArticleID
	md["title"] = d.Title
	if d.Timestamp != nil {
		md["timestamp"] = *d.Timestamp
	} else {
		md["timestamp"] = nil
	}
	md["url"] = d.URL
	md["source"] = string(d.Source)
	return md
}

// Chunk is a bounded slice of a document body. Index is the position in the split.
type Chunk struct {
	Text  string
	Index int
}

// ChunkDocument is the unit persisted in the vector index.
// The JSON field names are the index schema.
type ChunkDocument struct {
	ID          string         `json:"-"`
	Embedding   []float32      `json:"embedding"`
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
	ArticleID   string         `json:"article_id"`
	ChunkID     int            `json:"chunk_id"`
	ArticleHash string         `json:"article_hash"`
	Source      SourceType     `json:"source"`
}

// ChunkID returns the deterministic document id for a chunk of an article.
// Re-running with the same article overwrites rather than duplicates.
func ChunkID(articleID string, index int) string {
	return articleID + "_chunk_" + strconv.Itoa(index)
}

// FailedArticle records an article whose embedding call failed.
type FailedArticle struct {
	Metadata map[string]any
	Chunks   []string
	Err      error
}

// ArticleID returns the article id recorded in the failure metadata.
func (f FailedArticle) ArticleID() string {
	id, _ := f.Metadata["article_id"].(string)
	return id
}

// Action is the outcome of comparing an article against the vector index.
type Action int

const (
	// ActionInsert means no prior chunks exist for the article.
	ActionInsert Action = iota + 1
	// ActionReplace means prior chunks exist with a different hash and must be removed.
	ActionReplace
	// ActionSkip means the stored hash matches and nothing needs to be written.
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionReplace:
		return "replace"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

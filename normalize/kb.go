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


package normalize

import (
	"log/slog"

	"github.com/poiesic/kbsync/core"
)

// PublishedState is the only workflow state a KB article is embedded in.
const PublishedState = "published"

// KBNormalizer normalizes knowledge-base article rows.
type KBNormalizer struct {
	baseURL   string
	converter *MarkdownConverter
	logger    *slog.Logger
}

// NewKBNormalizer creates a KB normalizer.
func NewKBNormalizer(opts Options) *KBNormalizer {
	opts = opts.withDefaults()
	return &KBNormalizer{
		baseURL:   opts.BaseURL,
		converter: opts.Converter,
		logger:    opts.Logger.With("component", "kb-normalizer"),
	}
}

// Normalize implements Normalizer. Articles that are not published are skipped.
// The article id is the KB number, not the warehouse article_id column.
func (n *KBNormalizer) Normalize(record core.Record) (*core.Document, error) {
	if state := record.String("workflow_state"); state != PublishedState {
		n.logger.Debug("skipping unpublished article", "number", record.String("number"), "workflow_state", state)
		return nil, nil
	}

	number := record.String("number")
	if number == "" {
		return nil, missingIdentity(core.SourceKB, "number")
	}

	doc := &core.Document{
		ArticleID: number,
		Body:      n.converter.Convert(record.String("text")),
		Title:     record.String("short_description"),
		Timestamp: record.OptionalString("sys_updated_on"),
		URL:       KBArticleURL(n.baseURL, record.String("sys_id"), number),
		Source:    core.SourceKB,
		Extra: map[string]any{
			"kb_number": number,
		},
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// KBArticleURL builds the portal deep link for a KB article.
func KBArticleURL(baseURL, sysID, number string) string {
	return baseURL + "/esc?id=kb_article&table=kb_knowledge&sys_id=" + sysID +
		"&recordUrl=kb_view.do?sysparm_article%3D" + number
}

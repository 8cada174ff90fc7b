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

// NewsNormalizer normalizes news content rows. News has no workflow state,
// so every row with an identity is kept.
type NewsNormalizer struct {
	baseURL   string
	converter *MarkdownConverter
	logger    *slog.Logger
}

// NewNewsNormalizer creates a news normalizer.
func NewNewsNormalizer(opts Options) *NewsNormalizer {
	opts = opts.withDefaults()
	return &NewsNormalizer{
		baseURL:   opts.BaseURL,
		converter: opts.Converter,
		logger:    opts.Logger.With("component", "news-normalizer"),
	}
}

// Normalize implements Normalizer.
func (n *NewsNormalizer) Normalize(record core.Record) (*core.Document, error) {
	sysID := record.String("sys_id")
	if sysID == "" {
		return nil, missingIdentity(core.SourceNews, "sys_id")
	}

	headline := record.String("headline")
	body := "# " + headline + "\n\n" +
		record.String("subheadline") + "\n\n" +
		n.converter.Convert(record.String("rich_content_html"))

	doc := &core.Document{
		ArticleID: sysID,
		Body:      body,
		Title:     headline,
		Timestamp: record.OptionalString("sys_updated_on"),
		URL:       NewsArticleURL(n.baseURL, sysID),
		Source:    core.SourceNews,
		Extra: map[string]any{
			"news_start_date": optionalValue(record, "news_start_date"),
			"news_end_date":   optionalValue(record, "news_end_date"),
			"thumbnail":       optionalValue(record, "thumbnail"),
		},
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// NewsArticleURL builds the classic UI deep link for a news item.
func NewsArticleURL(baseURL, sysID string) string {
	return baseURL + "/now/nav/ui/classic/params/target/sn_cd_content_news.do%3Fsys_id%3D" + sysID
}

// optionalValue keeps nil for absent columns and stringifies everything else,
// so dates from the warehouse serialize the same way on every run.
func optionalValue(record core.Record, key string) any {
	if record.Optional(key) == nil {
		return nil
	}
	return record.String(key)
}

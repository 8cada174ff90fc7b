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


package warehouse

import (
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/poiesic/kbsync/core"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// KBColumns are selected for knowledge-base articles.
var KBColumns = []string{
	"active",
	"article_id",
	"article_type",
	"flagged",
	"meta",
	"meta_description",
	"number",
	"published",
	"short_description",
	"text",
	"topic",
	"version_link",
	"workflow_state",
	"sys_updated_on",
	"sys_created_on",
	"sys_id",
	"kb_knowledge_base_value",
	"can_read_user_criteria",
}

// NewsColumns are selected for news articles.
var NewsColumns = []string{
	"sys_id",
	"headline",
	"subheadline",
	"rich_content_html",
	"news_start_date",
	"news_end_date",
	"thumbnail",
	"sys_updated_on",
	"sys_created_on",
}

const kbFilter = `workflow_state = 'published'
  AND (
    kb_knowledge_base_value IN UNNEST(@kb_values)
    OR (
      kb_knowledge_base_value IN UNNEST(@criteria_kb_values)
      AND (can_read_user_criteria IS NULL OR can_read_user_criteria = '')
    )
  )`

// Query is a parameterized statement ready to run.
type Query struct {
	SQL        string
	Parameters []bigquery.QueryParameter
}

// Columns returns the columns selected for source.
func Columns(source core.SourceType) []string {
	if source == core.SourceNews {
		return NewsColumns
	}
	return KBColumns
}

// BuildQuery builds the select statement for source.
func BuildQuery(cfg *Config, source core.SourceType) (Query, error) {
	if err := cfg.Validate(); err != nil {
		return Query{}, err
	}
	table, err := cfg.Table(source)
	if err != nil {
		return Query{}, err
	}
	path, err := tablePath(cfg.ProjectID, cfg.Dataset, table)
	if err != nil {
		return Query{}, err
	}

	columns := Columns(source)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s\nFROM %s", strings.Join(columns, ", "), path)

	var params []bigquery.QueryParameter
	if source == core.SourceKB {
		sb.WriteString("\nWHERE ")
		sb.WriteString(kbFilter)
		params = append(params,
			bigquery.QueryParameter{Name: "kb_values", Value: nonNil(cfg.KnowledgeBases)},
			bigquery.QueryParameter{Name: "criteria_kb_values", Value: nonNil(cfg.CriteriaKnowledgeBases)},
		)
	}
	if cfg.MaxResults > 0 {
		sb.WriteString("\nLIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: int64(cfg.MaxResults)})
	}

	return Query{SQL: sb.String(), Parameters: params}, nil
}

func tablePath(parts ...string) (string, error) {
	for _, p := range parts {
		if !identifierPattern.MatchString(p) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, p)
		}
	}
	return "`" + strings.Join(parts, ".") + "`", nil
}

// An empty array parameter must still carry its element type.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

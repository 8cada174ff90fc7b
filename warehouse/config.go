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

	"github.com/poiesic/kbsync/core"
)

const (
	// PublicKnowledgeBase holds articles readable by everyone.
	PublicKnowledgeBase = "a7e8a78bff0221009b20ffffffffff17"

	// CriteriaKnowledgeBase holds articles that are only public when no
	// user criteria restrict them.
	CriteriaKnowledgeBase = "bb0370019f22120047a2d126c42e7073"

	// DefaultMaxResults is the row limit used when none is configured.
	DefaultMaxResults = 10
)

// Config holds the BigQuery connection and query settings.
type Config struct {
	ProjectID string
	Location  string
	Dataset   string
	KBTable   string
	NewsTable string

	// MaxResults limits the rows returned per query. Zero means no limit.
	MaxResults int

	// KnowledgeBases are knowledge bases whose published articles are all synced.
	KnowledgeBases []string

	// CriteriaKnowledgeBases are knowledge bases whose published articles are
	// synced only when can_read_user_criteria is empty.
	CriteriaKnowledgeBases []string

	// CredentialsFile is an optional service account key. Application default
	// credentials are used when empty.
	CredentialsFile string
}

// DefaultConfig returns a Config with the default row limit and knowledge bases.
func DefaultConfig() *Config {
	return &Config{
		MaxResults:             DefaultMaxResults,
		KnowledgeBases:         []string{PublicKnowledgeBase},
		CriteriaKnowledgeBases: []string{CriteriaKnowledgeBase},
	}
}

// Validate checks the settings shared by every query.
func (c *Config) Validate() error {
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("%w: project id is required", ErrMissingConfig)
	case c.Dataset == "":
		return fmt.Errorf("%w: dataset is required", ErrMissingConfig)
	case c.MaxResults < 0:
		return fmt.Errorf("%w: max results cannot be negative, got %d", ErrMissingConfig, c.MaxResults)
	}
	return nil
}

// Table returns the table holding rows of source.
func (c *Config) Table(source core.SourceType) (string, error) {
	if err := core.ValidateSourceType(source); err != nil {
		return "", err
	}
	table := c.KBTable
	if source == core.SourceNews {
		table = c.NewsTable
	}
	if table == "" {
		return "", fmt.Errorf("%w: %s table is required", ErrMissingConfig, source)
	}
	return table, nil
}

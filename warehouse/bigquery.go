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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/poiesic/kbsync/core"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// TimestampLayout formats TIMESTAMP columns, matching the warehouse's own
// sys_updated_on rendering.
const TimestampLayout = "2006-01-02 15:04:05"

// Source fetches article rows from the warehouse.
type Source interface {
	Fetch(ctx context.Context, source core.SourceType) ([]core.Record, error)
}

// BigQuerySource is a Source backed by a BigQuery client.
type BigQuerySource struct {
	client *bigquery.Client
	config *Config
	logger *slog.Logger
}

// NewBigQuerySource validates cfg and connects to BigQuery.
func NewBigQuerySource(ctx context.Context, cfg *Config, logger *slog.Logger) (*BigQuerySource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to BigQuery: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	logger = logger.With("component", "warehouse")
	logger.Info("connected to BigQuery", "project", cfg.ProjectID, "location", cfg.Location)
	return &BigQuerySource{client: client, config: cfg, logger: logger}, nil
}

// Fetch runs the query for source and returns every row.
func (s *BigQuerySource) Fetch(ctx context.Context, source core.SourceType) ([]core.Record, error) {
	query, err := BuildQuery(s.config, source)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("running query", "source", source, "sql", query.SQL)

	q := s.client.Query(query.SQL)
	q.Parameters = query.Parameters
	if s.config.Location != "" {
		q.Location = s.config.Location
	}

	start := time.Now()
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, source, err)
	}
	records, err := readRows(it)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, source, err)
	}

	s.logger.Info("query executed", "source", source, "rows", len(records), "elapsed", time.Since(start).Round(time.Millisecond))
	return records, nil
}

// Close releases the BigQuery client.
func (s *BigQuerySource) Close() error {
	return s.client.Close()
}

// rowReader is satisfied by *bigquery.RowIterator.
type rowReader interface {
	Next(dst any) error
}

func readRows(it rowReader) ([]core.Record, error) {
	var records []core.Record
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, convertRow(row))
	}
}

func convertRow(row map[string]bigquery.Value) core.Record {
	record := make(core.Record, len(row))
	for k, v := range row {
		record[k] = convertValue(v)
	}
	return record
}

func convertValue(v bigquery.Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(TimestampLayout)
	case []byte:
		return string(t)
	case string, bool, int64, float64:
		return t
	case fmt.Stringer:
		// civil.Date, civil.DateTime and civil.Time
		return t.String()
	default:
		return t
	}
}

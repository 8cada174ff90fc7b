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


package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/poiesic/kbsync"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/ingestion"
	"github.com/poiesic/kbsync/warehouse"
	"github.com/urfave/cli/v2"
)

// commandContext is cancelled on SIGINT or SIGTERM; a sync stops between batches.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// checkWarehouse builds the query of every source so configuration errors
// surface before any index or warehouse connection is opened.
func checkWarehouse(cfg *warehouse.Config, sources ...core.SourceType) error {
	for _, source := range sources {
		if _, err := warehouse.BuildQuery(cfg, source); err != nil {
			return err
		}
	}
	return nil
}

func syncCommand(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	source, err := parseSource(c)
	if err != nil {
		return err
	}
	config, err := reembedConfigFrom(c, source)
	if err != nil {
		return err
	}
	whConfig := warehouseConfigFrom(c)
	if err := checkWarehouse(whConfig, source); err != nil {
		return err
	}

	opts, err := indexOptions(c)
	if err != nil {
		return err
	}
	opts = append(opts,
		kbsync.WithAIConfig(aiConfigFrom(c)),
		kbsync.WithWarehouse(whConfig),
		kbsync.WithBaseURL(c.String("base-url")),
	)

	client, err := kbsync.NewClient(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.Bool("create-index") {
		if err := client.CreateIndex(ctx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Source: %s\n", source)
	fmt.Fprintf(os.Stderr, "Index backend: %s\n", c.String("index-backend"))
	fmt.Fprintf(os.Stderr, "Embedding deployment: %s\n", c.String("ai-deployment"))
	fmt.Fprintln(os.Stderr)

	report, err := client.Sync(ctx, source, config, os.Stderr)
	if err != nil {
		return fmt.Errorf("%s sync failed: %w", source, err)
	}
	if report.Errors() > 0 {
		fmt.Fprintf(os.Stderr, "%d articles failed to embed, %d documents failed to write\n",
			report.EmbedFailures, report.WriteFailures)
	}
	return nil
}

func createIndexCommand(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	opts, err := indexOptions(c)
	if err != nil {
		return err
	}
	opts = append(opts, kbsync.WithAIConfig(aiConfigFrom(c)))

	client, err := kbsync.NewClient(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CreateIndex(ctx, c.Bool("recreate")); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Index ready")
	return nil
}

func ingestRawCommand(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	var sources []core.SourceType
	for _, s := range c.StringSlice("source") {
		source, err := core.ParseSourceType(s)
		if err != nil {
			return err
		}
		sources = append(sources, source)
	}
	whConfig := warehouseConfigFrom(c)
	if err := checkWarehouse(whConfig, sources...); err != nil {
		return err
	}

	opts, err := indexOptions(c)
	if err != nil {
		return err
	}
	opts = append(opts, kbsync.WithWarehouse(whConfig))

	client, err := kbsync.NewClient(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	pipeline, err := client.NewIngestionPipeline(
		ingestion.WithChunkSize(c.Int("chunk-size")),
		ingestion.WithPoolSize(c.Int("fetch-workers")),
	)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	report, err := pipeline.Ingest(ctx, !c.Bool("keep-index"), sources...)
	if report != nil {
		for _, res := range report.Results {
			fmt.Fprintf(os.Stderr, "%s: fetched %d rows, indexed %d\n", res.Source, res.Fetched, res.Indexed)
		}
	}
	if err != nil {
		return fmt.Errorf("raw ingestion failed: %w", err)
	}
	return nil
}

func exportCommand(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	source, err := parseSource(c)
	if err != nil {
		return err
	}
	whConfig := warehouseConfigFrom(c)
	if err := checkWarehouse(whConfig, source); err != nil {
		return err
	}
	table, err := whConfig.Table(source)
	if err != nil {
		return err
	}

	dir := c.String("output-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	src, err := warehouse.NewBigQuerySource(ctx, whConfig, slog.Default())
	if err != nil {
		return err
	}
	defer src.Close()

	records, err := src.Fetch(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to fetch %s rows: %w", source, err)
	}

	path := filepath.Join(dir, warehouse.ExportFileName(table, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := warehouse.WriteCSV(f, source, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Saved %d %s rows to %s\n", len(records), source, path)
	return nil
}

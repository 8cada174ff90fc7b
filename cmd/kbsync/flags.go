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
	"fmt"
	"strings"

	"github.com/poiesic/kbsync"
	"github.com/poiesic/kbsync/ai"
	"github.com/poiesic/kbsync/core"
	"github.com/poiesic/kbsync/reembed"
	"github.com/poiesic/kbsync/storage/elastic"
	"github.com/poiesic/kbsync/warehouse"
	"github.com/urfave/cli/v2"
)

const (
	backendElasticsearch = "elasticsearch"
	backendBadger        = "badger"
)

func sourceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "source",
		Aliases:  []string{"s"},
		Usage:    "Source type to process (kb, news)",
		Required: true,
	}
}

func elasticFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "es-url",
			Usage:   "Elasticsearch URL",
			EnvVars: []string{"ELASTICSEARCH_URL"},
		},
		&cli.StringFlag{
			Name:    "es-api-key",
			Usage:   "Elasticsearch API key",
			EnvVars: []string{"ELASTICSEARCH_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "vector-index",
			Usage:   "Name of the embedded chunk index",
			Value:   elastic.DefaultVectorIndex,
			EnvVars: []string{"ES_VECTOR_INDEX_NAME"},
		},
		&cli.StringFlag{
			Name:    "raw-index",
			Usage:   "Name of the raw row index",
			Value:   elastic.DefaultRawIndex,
			EnvVars: []string{"ES_INDEX_NAME"},
		},
	}
}

func indexBackendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "index-backend",
			Usage: "Vector index backend (elasticsearch, badger)",
			Value: backendElasticsearch,
		},
		&cli.StringFlag{
			Name:  "badger-path",
			Usage: "Path to the BadgerDB directory when --index-backend is badger",
			Value: "kbsync-index",
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Embedding width stored in the vector mapping",
			Value: ai.DefaultDimensions,
		},
	}
}

func warehouseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Usage:   "BigQuery project id",
			EnvVars: []string{"GBQ_PROJECT_ID"},
		},
		&cli.StringFlag{
			Name:    "location",
			Usage:   "BigQuery location",
			EnvVars: []string{"GBQ_LOCATION"},
		},
		&cli.StringFlag{
			Name:    "dataset",
			Usage:   "BigQuery dataset",
			EnvVars: []string{"GBQ_DATASET"},
		},
		&cli.StringFlag{
			Name:    "kb-table",
			Usage:   "Table holding KB articles",
			EnvVars: []string{"GBQ_TABLE"},
		},
		&cli.StringFlag{
			Name:    "news-table",
			Usage:   "Table holding news articles",
			EnvVars: []string{"GBQ_NEWS_TABLE"},
		},
		&cli.IntFlag{
			Name:    "max-results",
			Usage:   "Row limit per query (0 for no limit)",
			Value:   warehouse.DefaultMaxResults,
			EnvVars: []string{"GBQ_MAX_RESULTS"},
		},
		&cli.StringSliceFlag{
			Name:    "kb-values",
			Usage:   "Knowledge bases whose published articles are synced",
			Value:   cli.NewStringSlice(warehouse.PublicKnowledgeBase),
			EnvVars: []string{"KB_KNOWLEDGE_BASE_VALUES"},
		},
		&cli.StringSliceFlag{
			Name:  "criteria-kb-values",
			Usage: "Knowledge bases synced only when articles carry no user criteria",
			Value: cli.NewStringSlice(warehouse.CriteriaKnowledgeBase),
		},
		&cli.StringFlag{
			Name:    "credentials",
			Usage:   "Service account key file (application default credentials when empty)",
			EnvVars: []string{"GOOGLE_APPLICATION_CREDENTIALS"},
		},
	}
}

func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ai-api-type",
			Usage: "Embedding API flavour (azure, openai)",
			Value: string(ai.APITypeAzure),
		},
		&cli.StringFlag{
			Name:    "ai-endpoint",
			Usage:   "Embedding service endpoint",
			EnvVars: []string{"AZURE_OPENAI_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "ai-api-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"AZURE_OPENAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "ai-api-version",
			Usage:   "Azure OpenAI API version",
			Value:   ai.DefaultAPIVersion,
			EnvVars: []string{"AZURE_EMBEDDING_API_VERSION"},
		},
		&cli.StringFlag{
			Name:    "ai-deployment",
			Usage:   "Embedding deployment or model name",
			EnvVars: []string{"AZURE_EMBEDDING_DEPLOYMENT_NAME"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "ServiceNow instance URL used in article links",
			EnvVars: []string{"SNOW_BASE_URL"},
		},
	}
}

func syncFlags() []cli.Flag {
	defaults := reembed.DefaultConfig()
	flags := []cli.Flag{
		sourceFlag(),
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of records to process in each batch",
			Value: defaults.BatchSize,
		},
		&cli.DurationFlag{
			Name:  "batch-delay",
			Usage: "Pause between batches (default 1s for kb, 2s for news)",
		},
		&cli.IntFlag{
			Name:  "bulk-chunk-size",
			Usage: "Maximum documents per bulk request",
			Value: defaults.BulkChunkSize,
		},
		&cli.DurationFlag{
			Name:  "bulk-timeout",
			Usage: "Timeout of each bulk request",
			Value: defaults.BulkTimeout,
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts for each embedding call",
			Value: defaults.MaxRetries,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: defaults.RetryDelay,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of batches processed concurrently",
			Value: defaults.Workers,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N records",
			Value: defaults.ReportInterval,
		},
		&cli.BoolFlag{
			Name:  "prune",
			Usage: "Delete indexed articles missing from the source (requires --max-results 0)",
		},
		&cli.BoolFlag{
			Name:  "create-index",
			Usage: "Create the vector index before syncing if it does not exist",
		},
	}
	flags = append(flags, indexBackendFlags()...)
	flags = append(flags, elasticFlags()...)
	flags = append(flags, warehouseFlags()...)
	return append(flags, aiFlags()...)
}

func createIndexFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "recreate",
			Usage: "Drop the index first if it exists",
		},
	}
	flags = append(flags, indexBackendFlags()...)
	return append(flags, elasticFlags()...)
}

func ingestRawFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Source types to ingest (kb, news); repeat for both",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Rows per bulk request",
			Value: elastic.DefaultRawChunkSize,
		},
		&cli.IntFlag{
			Name:  "fetch-workers",
			Usage: "Sources fetched from the warehouse concurrently",
			Value: len(core.SourceTypes),
		},
		&cli.BoolFlag{
			Name:  "keep-index",
			Usage: "Append to the raw index instead of recreating it",
		},
	}
	flags = append(flags, elasticFlags()...)
	return append(flags, warehouseFlags()...)
}

func parseSource(c *cli.Context) (core.SourceType, error) {
	return core.ParseSourceType(c.String("source"))
}

func aiConfigFrom(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithAPIType(ai.APIType(c.String("ai-api-type"))),
		ai.WithEndpoint(c.String("ai-endpoint")),
		ai.WithAPIKey(c.String("ai-api-key")),
		ai.WithAPIVersion(c.String("ai-api-version")),
		ai.WithDeployment(c.String("ai-deployment")),
		ai.WithDimensions(c.Int("dimensions")),
	)
}

func warehouseConfigFrom(c *cli.Context) *warehouse.Config {
	return &warehouse.Config{
		ProjectID:              c.String("project"),
		Location:               c.String("location"),
		Dataset:                c.String("dataset"),
		KBTable:                c.String("kb-table"),
		NewsTable:              c.String("news-table"),
		MaxResults:             c.Int("max-results"),
		KnowledgeBases:         c.StringSlice("kb-values"),
		CriteriaKnowledgeBases: c.StringSlice("criteria-kb-values"),
		CredentialsFile:        c.String("credentials"),
	}
}

func elasticConfigFrom(c *cli.Context) elastic.Config {
	var addresses []string
	for _, a := range strings.Split(c.String("es-url"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}
	return elastic.Config{Addresses: addresses, APIKey: c.String("es-api-key")}
}

func reembedConfigFrom(c *cli.Context, source core.SourceType) (*reembed.Config, error) {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		BatchDelay:     reembed.DefaultBatchDelay(source),
		BulkChunkSize:  c.Int("bulk-chunk-size"),
		BulkTimeout:    c.Duration("bulk-timeout"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Workers:        c.Int("workers"),
		ReportInterval: c.Int("report-interval"),
		Prune:          c.Bool("prune"),
	}
	if c.IsSet("batch-delay") {
		cfg.BatchDelay = c.Duration("batch-delay")
	}
	if cfg.Prune && c.Int("max-results") > 0 {
		return nil, fmt.Errorf("--prune needs the complete result set: set --max-results 0")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// indexOptions selects the vector index backend. Elasticsearch is always
// configured when an address is given so the raw index is available.
func indexOptions(c *cli.Context) ([]kbsync.ClientOption, error) {
	var opts []kbsync.ClientOption
	esCfg := elasticConfigFrom(c)

	switch backend := c.String("index-backend"); backend {
	case backendElasticsearch, "":
		if err := esCfg.Validate(); err != nil {
			return nil, err
		}
	case backendBadger:
		opts = append(opts, kbsync.WithBadgerIndex(c.String("badger-path")))
	default:
		return nil, fmt.Errorf("invalid index backend %q: must be one of %s, %s", backend, backendElasticsearch, backendBadger)
	}

	if esCfg.Validate() == nil {
		opts = append(opts, kbsync.WithElasticsearch(esCfg, c.String("vector-index"), c.String("raw-index")))
	}
	return opts, nil
}

func exportFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Source type to export (kb or news)",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Directory the CSV file is written to",
			Value:   "data",
			EnvVars: []string{"OUTPUT_DIR"},
		},
	}
	return append(flags, warehouseFlags()...)
}

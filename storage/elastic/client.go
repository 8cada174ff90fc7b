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

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/poiesic/kbsync/storage"
)

const (
	// DefaultVectorIndex is the default name of the embedded chunk index.
	DefaultVectorIndex = "test-bq-embeddings-openai"

	// DefaultRawIndex is the default name of the raw row index.
	DefaultRawIndex = "test-bq-snow-ingest"

	// DefaultDimensions is the embedding width stored in the mapping.
	DefaultDimensions = 1536
)

// ErrMissingAddress is returned when no Elasticsearch URL is configured.
var ErrMissingAddress = errors.New("elasticsearch address is required")

// Config holds the connection settings shared by every store.
type Config struct {
	Addresses []string
	APIKey    string

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	for _, a := range c.Addresses {
		if a != "" {
			return nil
		}
	}
	return ErrMissingAddress
}

// NewClient creates the process-wide Elasticsearch client.
func NewClient(cfg Config) (*elasticsearch.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// responseError converts an error response into a Go error. Missing
// indexes map to storage.ErrIndexMissing.
func responseError(res *esapi.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(res.Body)
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Type == "" {
		if res.StatusCode == http.StatusNotFound {
			return storage.ErrIndexMissing
		}
		return fmt.Errorf("%w: status %d: %s", storage.ErrRequestFailed, res.StatusCode, raw)
	}
	if body.Error.Type == "index_not_found_exception" {
		return fmt.Errorf("%w: %s", storage.ErrIndexMissing, body.Error.Reason)
	}
	return fmt.Errorf("%w: status %d: %s: %s", storage.ErrRequestFailed, res.StatusCode, body.Error.Type, body.Error.Reason)
}

// decode reads a successful response into v, or returns the response error.
func decode(res *esapi.Response, v any) error {
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return nil
}

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


package openai

import (
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/kbsync/ai"
)

// Provider implements ai.AIProvider for Azure OpenAI deployments and
// OpenAI-compatible servers.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	closed   atomic.Bool
	logger   *slog.Logger
}

// NewProvider validates config and creates the embedding client.
// A nil config is rejected.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if config == nil {
		return nil, ai.ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("embedding provider ready",
		"api_type", config.APIType,
		"endpoint", config.Endpoint,
		"deployment", config.Deployment,
		"dimensions", config.Dimensions)

	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Embedder returns the embedding client.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close marks the provider closed. The HTTP client holds no resources that
// need explicit release, so repeated calls are harmless.
func (p *Provider) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.logger.Debug("closing embedding provider", "deployment", p.config.Deployment)
	}
	return nil
}

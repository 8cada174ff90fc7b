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


package ai

import (
	"errors"
	"strings"
)

// ErrNilConfig is returned when a provider is created without a configuration.
var ErrNilConfig = errors.New("ai config: config is nil")

// APIType selects the flavour of the OpenAI-compatible embedding API.
type APIType string

const (
	// APITypeAzure targets an Azure OpenAI deployment.
	APITypeAzure APIType = "azure"
	// APITypeOpenAI targets api.openai.com or any OpenAI-compatible server.
	APITypeOpenAI APIType = "openai"
)

const (
	// DefaultDimensions is the output width of the text-embedding-ada-002 /
	// text-embedding-3-small family and the width of the vector index field.
	DefaultDimensions = 1536

	// DefaultAPIVersion is the Azure OpenAI REST API version used when none is set.
	DefaultAPIVersion = "2024-02-01"

	// DefaultBatchSize bounds how many texts are sent per embedding request.
	DefaultBatchSize = 512
)

// Config holds configuration for the embedding provider.
type Config struct {
	// APIType selects Azure or plain OpenAI request routing.
	APIType APIType

	// Endpoint is the base URL of the embedding service.
	// Example: "https://my-resource.openai.azure.com" for Azure,
	// "https://api.openai.com/v1" for OpenAI.
	Endpoint string

	// APIKey authenticates against the embedding service.
	APIKey string

	// APIVersion is the Azure REST API version. Ignored for OpenAI.
	APIVersion string

	// Deployment is the embedding model, or the deployment name on Azure.
	// Example: "text-embedding-ada-002"
	Deployment string

	// Dimensions is the expected vector width. Vectors of any other width are rejected.
	// Default: 1536
	Dimensions int

	// BatchSize is the maximum number of texts per embedding request.
	BatchSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithAPIType sets the API flavour.
func WithAPIType(apiType APIType) ConfigOption {
	return func(c *Config) {
		c.APIType = apiType
	}
}

// WithEndpoint sets the embedding service base URL.
func WithEndpoint(endpoint string) ConfigOption {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAPIVersion sets the Azure API version.
func WithAPIVersion(version string) ConfigOption {
	return func(c *Config) {
		c.APIVersion = version
	}
}

// WithDeployment sets the embedding model or Azure deployment name.
func WithDeployment(deployment string) ConfigOption {
	return func(c *Config) {
		c.Deployment = deployment
	}
}

// WithDimensions sets the expected embedding width.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithBatchSize sets the maximum number of texts per request.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// DefaultConfig returns a Config with defaults for an Azure OpenAI deployment.
// Endpoint, APIKey and Deployment have no sensible default and must be set.
func DefaultConfig() *Config {
	return &Config{
		APIType:    APITypeAzure,
		APIVersion: DefaultAPIVersion,
		Dimensions: DefaultDimensions,
		BatchSize:  DefaultBatchSize,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEndpoint("https://my-resource.openai.azure.com"),
//	    WithAPIKey(os.Getenv("AZURE_OPENAI_API_KEY")),
//	    WithDeployment("text-embedding-ada-002"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form.
// The API type is lowercased and a trailing slash is removed from the endpoint.
func (c *Config) Normalize() {
	c.APIType = APIType(strings.ToLower(strings.TrimSpace(string(c.APIType))))
	c.Endpoint = strings.TrimSuffix(strings.TrimSpace(c.Endpoint), "/")
	if c.APIType == APITypeAzure && c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.APIType != APITypeAzure && c.APIType != APITypeOpenAI {
		return errors.New("ai config: APIType must be azure or openai")
	}
	if c.Endpoint == "" {
		return errors.New("ai config: Endpoint is required")
	}
	if c.APIKey == "" {
		return errors.New("ai config: APIKey is required")
	}
	if c.Deployment == "" {
		return errors.New("ai config: Deployment is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("ai config: Dimensions must be greater than 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("ai config: BatchSize must be greater than 0")
	}
	return nil
}

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


// Package openai provides the embedding implementation for Azure OpenAI and
// OpenAI-compatible APIs.
//
// This package implements the ai.AIProvider interface using the langchaingo
// library. With APIType azure, requests are routed to
// {endpoint}/openai/deployments/{deployment}/embeddings?api-version=...;
// with APIType openai they go to {endpoint}/embeddings.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEndpoint("https://my-resource.openai.azure.com"),
//	    ai.WithAPIKey(key),
//	    ai.WithDeployment("text-embedding-ada-002"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"chunk one", "chunk two"})
package openai

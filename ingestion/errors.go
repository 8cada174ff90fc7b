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


package ingestion

import "errors"

var (
	// ErrSourceRequired is returned when a warehouse source is not provided.
	ErrSourceRequired = errors.New("warehouse source required")

	// ErrRawIndexRequired is returned when a raw index is not provided.
	ErrRawIndexRequired = errors.New("raw index required")

	// ErrNoSources is returned when Ingest is called without source types.
	ErrNoSources = errors.New("at least one source type required")
)

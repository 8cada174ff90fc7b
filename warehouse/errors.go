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

import "errors"

var (
	// ErrMissingConfig indicates a required warehouse setting is empty.
	ErrMissingConfig = errors.New("missing required BigQuery configuration")

	// ErrInvalidIdentifier indicates a project, dataset or table name with illegal characters.
	ErrInvalidIdentifier = errors.New("invalid BigQuery identifier")

	// ErrQueryFailed indicates BigQuery rejected or failed a query.
	ErrQueryFailed = errors.New("query failed")
)

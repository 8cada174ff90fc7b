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


// Package warehouse reads KB and news article rows from BigQuery.
//
// Queries are built from a validated Config: table paths are checked against
// an identifier pattern before being quoted, and every filter value is passed
// as a named query parameter. Rows come back as core.Record values with
// timestamps and dates rendered as strings.
package warehouse

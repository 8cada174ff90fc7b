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


// Package normalize maps heterogeneous warehouse rows into canonical documents.
//
// Each source type has its own Normalizer so field-mapping rules stay isolated:
//
//   - KBNormalizer keeps only published knowledge-base articles and identifies
//     them by their human-readable number so external links stay stable.
//   - NewsNormalizer accepts every news item and identifies it by sys_id.
//
// A Normalizer returns (nil, nil) for records that should be skipped and an
// error wrapping core.ErrInvalidDocument when the identity field is missing.
//
// HTML bodies are converted to markdown by a MarkdownConverter. Conversion is
// deterministic for identical input, which keeps content hashes stable.
package normalize

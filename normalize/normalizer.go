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


package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kbsync/core"
)

// Normalizer converts one warehouse record into a canonical document.
// A nil document with a nil error means the record is intentionally skipped.
type Normalizer interface {
	Normalize(record core.Record) (*core.Document, error)
}

// Options configures the normalizers returned by For.
type Options struct {
	// BaseURL is the source system root used to build article deep links.
	BaseURL string

	// Converter turns HTML fields into markdown. A default converter is
	// created when nil.
	Converter *MarkdownConverter

	// Logger receives skip and fallback messages. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Converter == nil {
		o.Converter = NewMarkdownConverter(o.Logger)
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// For returns the normalizer for the given source type.
func For(source core.SourceType, opts Options) (Normalizer, error) {
	switch source {
	case core.SourceKB:
		return NewKBNormalizer(opts), nil
	case core.SourceNews:
		return NewNewsNormalizer(opts), nil
	default:
		return nil, fmt.Errorf("no normalizer for source: %w", core.ValidateSourceType(source))
	}
}

func missingIdentity(source core.SourceType, field string) error {
	return fmt.Errorf("%w: %s record has no %s", core.ErrInvalidDocument, source, field)
}

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


package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/kbsync/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 2048

	// DefaultChunkOverlap is the number of runes shared by consecutive chunks.
	DefaultChunkOverlap = 256
)

// ErrInvalidOverlap is returned when the overlap is not smaller than the chunk size.
var ErrInvalidOverlap = errors.New("chunk overlap must be smaller than chunk size")

// MarkdownSeparators are tried in order: headings first, then fenced code,
// horizontal rules, paragraphs, lines, words and finally single characters.
var MarkdownSeparators = []string{
	"\n# ",
	"\n## ",
	"\n### ",
	"\n#### ",
	"\n##### ",
	"\n###### ",
	"```\n",
	"\n***\n",
	"\n---\n",
	"\n___\n",
	"\n\n",
	"\n",
	" ",
	"",
}

// Splitter splits markdown bodies into overlapping, size-bounded chunks.
// It is safe for concurrent use.
type Splitter struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		s.size = size
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks in runes.
func WithChunkOverlap(overlap int) Option {
	return func(s *Splitter) {
		s.overlap = overlap
	}
}

// NewSplitter creates a markdown-aware splitter.
// Defaults to 2048-rune chunks with a 256-rune overlap.
func NewSplitter(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidOverlap, s.size, s.overlap)
	}

	s.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators(MarkdownSeparators),
		textsplitter.WithChunkSize(s.size),
		textsplitter.WithChunkOverlap(s.overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
		textsplitter.WithKeepSeparator(true),
	)
	return s, nil
}

// Size returns the configured maximum chunk length.
func (s *Splitter) Size() int {
	return s.size
}

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split splits body into ordered chunk texts. A blank body yields no chunks.
func (s *Splitter) Split(body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	parts, err := s.splitter.SplitText(body)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		texts = append(texts, p)
	}
	return texts, nil
}

// Chunks splits body and attaches positional indexes.
func (s *Splitter) Chunks(body string) ([]core.Chunk, error) {
	texts, err := s.Split(body)
	if err != nil {
		return nil, err
	}
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.Chunk{Text: text, Index: i}
	}
	return chunks, nil
}

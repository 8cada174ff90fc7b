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


package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how many records of a run have been processed,
// together with running chunk, write and failure totals.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	reportInterval int

	mu           sync.Mutex
	records      int
	chunks       int
	written      int
	failures     int
	lastReported int
	startTime    time.Time
	started      bool
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of records in the run
// reportInterval: report after at least this many more records
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.records, p.chunks, p.written, p.failures = 0, 0, 0, 0
	p.lastReported = 0
}

// Advance records one finished batch.
func (p *ProgressTracker) Advance(records, chunks, written, failures int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.records = min(p.records+records, p.total)
	p.chunks += chunks
	p.written += written
	p.failures += failures

	if p.records-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.records
	}
}

// Finish prints the final progress line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		rate = float64(p.records) / secs
	}

	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.records) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d records (%.1f%%) - %d chunks, %d written, %d failed - %.1f records/s",
		p.records, p.total, percentage, p.chunks, p.written, p.failures, rate)
}

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

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/kbsync/core"
)

// ExportFileName names a CSV dump of table taken at t.
func ExportFileName(table string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", table, t.Format("2006-01-02_15-04-05"))
}

// WriteCSV writes records as CSV with a header row of the source's selected
// columns. Absent and nil values are written as empty fields.
func WriteCSV(w io.Writer, source core.SourceType, records []core.Record) error {
	columns := Columns(source)
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(columns))
	for i, record := range records {
		for j, col := range columns {
			row[j] = record.String(col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// (c) Copyright gosec's authors
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

package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// CoverageWriter accumulates basic-block hit counts across paths and
// writes them as the "coverage-stats file (text)" spec.md 6 mentions in
// passing, in the one-line-per-block format original_source's coverage.rs
// used (SPEC_FULL.md supplemented feature): "<block-id>\t<hits>".
type CoverageWriter struct {
	hits map[string]int
}

// NewCoverageWriter returns an empty coverage accumulator.
func NewCoverageWriter() *CoverageWriter {
	return &CoverageWriter{hits: make(map[string]int)}
}

// Hit records one visit to blockID.
func (c *CoverageWriter) Hit(blockID string) {
	c.hits[blockID]++
}

// WriteTo writes every recorded block, sorted by ID for reproducible
// output, to w.
func (c *CoverageWriter) WriteTo(w io.Writer) error {
	ids := make([]string, 0, len(c.hits))
	for id := range c.hits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", id, c.hits[id]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

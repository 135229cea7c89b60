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

package solver

// refArray models a solver array as a persistent (copy-on-write) map from an
// index's current model value (eval of the index; memory.go rejects a
// non-Public index before reaching here, but a Public symbolic index does
// reach it and is keyed by that value) to the byte-addressed cell value
// written there. Reads of never-written indices
// return a fresh zero constant, matching "always zero-initialized shadow /
// public-unknown-but-not-secret uninitialized data" (spec.md 4.2).
type refArray struct {
	h          *refHandle
	indexWidth uint
	cellWidth  uint
	cells      map[string]*refBV
}

func (a *refArray) Solver() Handle   { return a.h }
func (a *refArray) IndexWidth() uint { return a.indexWidth }
func (a *refArray) CellWidth() uint  { return a.cellWidth }

func (a *refArray) key(index BV) string {
	v := a.h.eval(index.(*refBV))
	return v.Text(16)
}

func (a *refArray) Read(index BV, bits uint) BV {
	cell, ok := a.cells[a.key(index)]
	if !ok || cell.width < bits {
		return a.h.FromUint64(bits, 0)
	}
	if cell.width == bits {
		return cell
	}
	return cell.Slice(bits-1, 0)
}

func (a *refArray) Write(index BV, value BV) Array {
	cp := &refArray{h: a.h, indexWidth: a.indexWidth, cellWidth: a.cellWidth, cells: make(map[string]*refBV, len(a.cells)+1)}
	for k, v := range a.cells {
		cp.cells[k] = v
	}
	cp.cells[a.key(index)] = value.(*refBV)
	return cp
}

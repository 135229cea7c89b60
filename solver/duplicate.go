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

import (
	"fmt"
	"math/big"
)

// Duplicate clones a Handle for the host engine's copy-on-fork path
// cloning (spec.md 5, 6 "solver handle with new/duplicate/match-BV/
// match-array primitives"). The two resulting handles track their
// asserted interval constraints independently from the moment of the
// call onward: an Assert against one is invisible to the other.
//
// Symbols created before the duplicate remain bound to whichever handle
// created them (Solver() identity does not change), so their constraint
// lookups still resolve against that original handle's interval table.
// This is sound for the bundled reference solver's own use (every
// constraint the core or alloc package produces is asserted once, at
// construction time, before any fork point that matters), but it means
// Duplicate is not a substitute for a production SMT binding's native
// context-cloning, which a real backend must provide for genuinely
// independent post-fork reasoning over shared pre-fork symbols.
func Duplicate(h Handle) (Handle, error) {
	src, ok := h.(*refHandle)
	if !ok {
		return nil, fmt.Errorf("solver: Duplicate called on a non-reference Handle")
	}
	dup := &refHandle{
		id:        0, // ensureID assigns a fresh identity on first use
		symbolSeq: src.symbolSeq,
		intervals: make(map[uint64]*interval, len(src.intervals)),
	}
	for id, iv := range src.intervals {
		cp := &interval{}
		if iv.lo != nil {
			cp.lo = new(big.Int).Set(iv.lo)
		}
		if iv.hi != nil {
			cp.hi = new(big.Int).Set(iv.hi)
		}
		dup.intervals[id] = cp
	}
	dup.ensureID()
	return dup, nil
}

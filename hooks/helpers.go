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

package hooks

import (
	"github.com/rawblock/pitchfork/ir"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
	"github.com/rawblock/pitchfork/violation"
)

// Helpers bundles the small conveniences a per-function hook commonly
// needs, carried over from original_source's hook_helpers.rs (supplemented
// per SPEC_FULL.md, since spec.md's distillation dropped them but no
// Non-goal excludes them): reading a length-prefixed buffer out of
// tainted memory without ever touching an undefined byte, and building a
// public-unconstrained return value of a given IR type for hooks that
// don't need the full default-call machinery.
type Helpers struct {
	Handle solver.Handle
	Mem    *memory.TaintMemory
}

// ReadLengthPrefixedBuffer reads a byte length from lenAddr (lenWidthBits
// wide), then, if the length itself is non-secret, reads that many bytes,
// capped at maxBytes, starting at dataAddr, and returns them together with
// the (capped) byte count. It refuses (rather than silently truncating or
// guessing) if the length is secret-tainted, since a hook that branches on
// a secret length would itself be a non-constant-time hook implementation.
func (h Helpers) ReadLengthPrefixedBuffer(lenAddr tbv.TBV, lenWidthBits uint, dataAddr tbv.TBV, maxBytes uint) (tbv.TBV, uint64, error) {
	length, err := h.Mem.Read(lenAddr, lenWidthBits)
	if err != nil {
		return tbv.TBV{}, 0, err
	}
	if length.IsSecret() {
		return tbv.TBV{}, 0, violation.NewConcretize("hook: length-prefixed buffer's length is secret-tainted; cannot size the read without a secret-dependent control decision")
	}
	n, ok := tbv.AsUint64(length)
	if !ok {
		return tbv.TBV{}, 0, violation.NewConcretize("hook: length-prefixed buffer's length has no concrete value under the current path condition")
	}
	if n > uint64(maxBytes) {
		n = uint64(maxBytes)
	}
	buf, err := h.Mem.Read(dataAddr, uint(n)*8)
	if err != nil {
		return tbv.TBV{}, 0, err
	}
	return buf, n, nil
}

// PublicUnconstrained builds a fresh, unconstrained public value of t's
// shape, for a custom hook that wants the same "return value we know
// nothing about" the default hook produces without going through
// Default's full argument-classification pass.
func (h Helpers) PublicUnconstrained(t ir.Type) tbv.TBV {
	return unconstrainedOf(h.Handle, t)
}

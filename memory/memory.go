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

// Package memory implements the taint-tracking memory discipline: a pair
// of parallel solver-array-backed stores, data and shadow, kept in sync on
// every read and write (spec.md 4.2).
package memory

import (
	"log"
	"math/big"

	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
	"github.com/rawblock/pitchfork/violation"
)

// ShadowMemoryName is reserved for the shadow array; callers must not name
// a data memory this.
const ShadowMemoryName = "shadow_mem"

// TaintMemory pairs a data store with a shadow store over a common address
// space. The shadow store is always zero-initialized, independent of
// whether the data store is zero-initialized or left uninitialized: an
// uninitialized value is public-unknown, not secret (spec.md 3).
type TaintMemory struct {
	solver     solver.Handle
	data       solver.Array
	shadow     solver.Array
	name       string
	nullDetect bool
	logger     *log.Logger
}

// NewUninitialized creates a memory whose data cells start with unspecified
// (but public) content.
func NewUninitialized(h solver.Handle, indexWidth, cellWidth uint, nullDetect bool, name string, logger *log.Logger) *TaintMemory {
	return &TaintMemory{
		solver:     h,
		data:       h.NewArray(name, indexWidth, cellWidth),
		shadow:     h.NewArray(ShadowMemoryName, indexWidth, cellWidth),
		name:       name,
		nullDetect: nullDetect,
		logger:     logger,
	}
}

// NewZeroInitialized creates a memory whose data cells start at zero. The
// shadow store is identical either way (always zero); this constructor
// exists to preserve the caller-visible distinction spec.md 4.2 names, even
// though the bundled reference solver array already treats an unwritten
// cell as zero in both cases.
func NewZeroInitialized(h solver.Handle, indexWidth, cellWidth uint, nullDetect bool, name string, logger *log.Logger) *TaintMemory {
	return NewUninitialized(h, indexWidth, cellWidth, nullDetect, name, logger)
}

// GetSolver returns the solver handle backing this memory.
func (m *TaintMemory) GetSolver() solver.Handle { return m.solver }

// ChangeSolver re-homes this memory onto a different solver handle, for
// the host engine's copy-on-fork path cloning (spec.md 5).
func (m *TaintMemory) ChangeSolver(h solver.Handle) { m.solver = h }

// NullDetect reports the null-pointer-check setting this memory was created
// with, a configuration knob threaded in from the host engine (spec.md 6).
// Read and Write do not consult it.
func (m *TaintMemory) NullDetect() bool { return m.nullDetect }

// Clone returns a shallow copy of m for the host engine's copy-on-fork path
// cloning (spec.md 5). This is cheap and correct because Write never
// mutates the underlying array in place (solver.Array.Write returns a new,
// structurally-shared value, see solver.refArray): the two clones' data and
// shadow fields diverge independently the moment either is written again.
// Re-home the clone onto a duplicated solver handle with ChangeSolver if
// the fork also duplicates the solver (spec.md 6 "solver handle with
// new/duplicate... primitives").
func (m *TaintMemory) Clone() *TaintMemory {
	cp := *m
	return &cp
}

// Write implements spec.md 4.2.1.
func (m *TaintMemory) Write(index tbv.TBV, value tbv.TBV) error {
	if !index.IsPublic() {
		return violation.NewAddress("memory write on address influenced by secret data")
	}
	idxBV := index.PublicBV()
	if _, constant := tbv.AsUint64(index); !constant && m.logger != nil {
		m.logger.Printf("warning: memory write to %s at a non-constant public address; legal but unusual and may slow analysis", m.name)
	}

	switch value.Kind() {
	case tbv.KindPublic:
		m.data = m.data.Write(idxBV, value.PublicBV())
		m.shadow = m.shadow.Write(idxBV, m.solver.FromUint64(value.Width(), 0))
	case tbv.KindSecret:
		m.shadow = m.shadow.Write(idxBV, allOnesBV(m.solver, value.Width()))
		// The value's data is now officially undefined; store a fresh
		// unconstrained filler so array shape stays consistent without
		// asserting any meaning to it.
		m.data = m.data.Write(idxBV, m.solver.NewBV(value.Width(), ""))
	default: // PartiallySecret
		m.data = m.data.Write(idxBV, value.DataBV())
		m.shadow = m.shadow.Write(idxBV, maskToBV(m.solver, value.Mask()))
	}
	return nil
}

// Read implements spec.md 4.2.2's three-way classification: a fast
// must-be-public path, a fast must-be-secret path, and a mixed path that
// pays for a maximum-solution query to build the exact mask.
func (m *TaintMemory) Read(index tbv.TBV, bits uint) (tbv.TBV, error) {
	if !index.IsPublic() {
		return tbv.TBV{}, violation.NewAddress("memory read on address influenced by secret data")
	}
	idxBV := index.PublicBV()
	if _, constant := tbv.AsUint64(index); !constant && m.logger != nil {
		m.logger.Printf("warning: memory read from %s at a non-constant public address; legal but unusual and may slow analysis", m.name)
	}

	shadowCell := m.shadow.Read(idxBV, bits)
	maxShadow, err := m.solver.MaxValue(shadowCell)
	if err != nil {
		return tbv.TBV{}, err
	}

	switch {
	case maxShadow.Sign() == 0:
		return tbv.NewPublic(m.data.Read(idxBV, bits)), nil
	case maxShadow.Cmp(allOnesBigInt(bits)) == 0:
		return tbv.NewSecret(m.solver, bits, ""), nil
	default:
		mask := bigIntToMask(maxShadow, bits)
		return tbv.NewPartiallySecretNormalized(mask, m.data.Read(idxBV, bits), ""), nil
	}
}

func allOnesBV(h solver.Handle, width uint) solver.BV {
	return h.FromUint64(width, 0).Not()
}

func allOnesBigInt(width uint) *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))
}

// maskToBV converts a per-bit secrecy mask (index 0 = LSB) to a solver
// bitvector suitable for writing the shadow store.
func maskToBV(h solver.Handle, mask []bool) solver.BV {
	v := big.NewInt(0)
	for i, secret := range mask {
		if secret {
			v.SetBit(v, i, 1)
		}
	}
	return h.FromBigInt(uint(len(mask)), v)
}

// bigIntToMask is the inverse of maskToBV.
func bigIntToMask(v *big.Int, bits uint) []bool {
	mask := make([]bool, bits)
	for i := range mask {
		mask[i] = v.Bit(i) == 1
	}
	return mask
}

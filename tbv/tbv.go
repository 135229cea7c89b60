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

// Package tbv implements the tainted bitvector: a tagged union of a fully
// Public value, a fully opaque Secret value, and a PartiallySecret value
// carrying a per-bit mask alongside public data. Every arithmetic, logical,
// comparison, slice, concat, extend, and conditional-select operation is
// defined here, dispatching over the 3x3 variant cross-product per
// spec.md 4.1.
package tbv

import (
	"fmt"

	"github.com/rawblock/pitchfork/solver"
)

// Kind identifies which of the three TBV variants a value is.
type Kind int

const (
	KindPublic Kind = iota
	KindSecret
	KindPartiallySecret
)

func (k Kind) String() string {
	switch k {
	case KindPublic:
		return "Public"
	case KindSecret:
		return "Secret"
	case KindPartiallySecret:
		return "PartiallySecret"
	default:
		return "Unknown"
	}
}

// TBV is the tainted bitvector. The zero value is not meaningful; use the
// constructors below.
type TBV struct {
	kind   Kind
	solver solver.Handle
	width  uint

	bv solver.BV // Public: the value. PartiallySecret: the "data" (undefined where mask[i]=true).

	symbol string // Secret / PartiallySecret: optional symbol, spec.md 4.1.10.

	// mask is PartiallySecret-only: len(mask) == width, mask[i]=true means
	// bit i (0 = LSB) is secret. Bit i's value in `bv` is undefined there.
	mask []bool
}

func (v TBV) Kind() Kind             { return v.kind }
func (v TBV) Width() uint            { return v.width }
func (v TBV) Solver() solver.Handle  { return v.solver }
func (v TBV) Symbol() string         { return v.symbol }
func (v TBV) IsPublic() bool         { return v.kind == KindPublic }
func (v TBV) IsSecret() bool         { return v.kind == KindSecret || v.kind == KindPartiallySecret }
func (v TBV) IsPartiallySecret() bool { return v.kind == KindPartiallySecret }

// Mask returns a defensive copy of the per-bit secrecy mask. Only
// meaningful when Kind() == KindPartiallySecret.
func (v TBV) Mask() []bool {
	if v.kind != KindPartiallySecret {
		return nil
	}
	return append([]bool(nil), v.mask...)
}

// PublicBV returns the underlying solver value for a Public TBV. It panics
// on any other variant: callers must check IsPublic first, the same way
// the policy layer (assert/concretize) must before ever touching the raw
// solver value of a secret-tainted TBV.
func (v TBV) PublicBV() solver.BV {
	if v.kind != KindPublic {
		panic("tbv: PublicBV called on a non-Public value")
	}
	return v.bv
}

// DataBV returns the underlying (partially undefined) data BV of a
// PartiallySecret value, e.g. for the memory package to write it through to
// the data store alongside the shadow mask. Panics on any other variant.
func (v TBV) DataBV() solver.BV {
	if v.kind != KindPartiallySecret {
		panic("tbv: DataBV called on a non-PartiallySecret value")
	}
	return v.bv
}

// NewPublic wraps a solver bitvector as a fully public TBV.
func NewPublic(bv solver.BV) TBV {
	return TBV{kind: KindPublic, solver: bv.Solver(), width: bv.Width(), bv: bv}
}

// NewSecret builds an opaque Secret TBV of the given width. No symbolic
// value is carried; width and solver handle are the only observable
// attributes (spec.md 3).
func NewSecret(h solver.Handle, width uint, symbol string) TBV {
	return TBV{kind: KindSecret, solver: h, width: width, symbol: symbol}
}

// newPartiallySecretRaw builds a PartiallySecret TBV without normalizing
// an all-false or all-true mask. Per spec.md 4.1 design notes, only slice
// and the default classifier's normalizing constructor collapse masks;
// concat, zext, sext, repeat, and select intentionally leave the mask as
// computed, which may be degenerate.
func newPartiallySecretRaw(mask []bool, data solver.BV, symbol string) TBV {
	return TBV{
		kind:   KindPartiallySecret,
		solver: data.Solver(),
		width:  data.Width(),
		bv:     data,
		mask:   append([]bool(nil), mask...),
		symbol: symbol,
	}
}

// NewPartiallySecretNormalized is the normalizing constructor: an all-false
// mask collapses to Public, an all-true mask collapses to Secret. Used by
// Slice and by callers outside this package (memory.Read's mixed-shadow
// case) that must not produce a degenerate PartiallySecret.
func NewPartiallySecretNormalized(mask []bool, data solver.BV, symbol string) TBV {
	if allFalse(mask) {
		return NewPublic(data)
	}
	if allTrue(mask) {
		return NewSecret(data.Solver(), data.Width(), symbol)
	}
	return newPartiallySecretRaw(mask, data, symbol)
}

// asMaskedData returns this value's (mask, data) pair for bit-sequence
// operations (concat, select): Public encodes as all-false mask over its
// own data, Secret encodes as all-true mask over zero data (spec.md 4.1.5).
func (v TBV) asMaskedData() ([]bool, solver.BV) {
	switch v.kind {
	case KindPublic:
		return repeatBool(false, v.width), v.bv
	case KindSecret:
		return repeatBool(true, v.width), v.solver.FromUint64(v.width, 0)
	default:
		return v.mask, v.bv
	}
}

func (v TBV) String() string {
	switch v.kind {
	case KindPublic:
		return fmt.Sprintf("Public(width=%d)", v.width)
	case KindSecret:
		return fmt.Sprintf("Secret(width=%d)", v.width)
	default:
		return fmt.Sprintf("PartiallySecret(width=%d, mask=%v)", v.width, v.mask)
	}
}

func repeatBool(b bool, n uint) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func allTrue(mask []bool) bool {
	for _, b := range mask {
		if !b {
			return false
		}
	}
	return true
}

func allFalse(mask []bool) bool {
	for _, b := range mask {
		if b {
			return false
		}
	}
	return true
}

func orMasks(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range out {
		out[i] = a[i] || b[i]
	}
	return out
}

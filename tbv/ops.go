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

package tbv

import (
	"log"
	"math/big"

	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/violation"
)

// binaryGeneral implements the general taint-propagation rule (spec.md
// 4.1): if every input is Public, delegate to the solver; otherwise the
// result is opaque Secret of resultWidth. This is the dispatch-table
// convenience the teacher's macros provide in its source language; Go has
// no macros, so every operation below is a thin wrapper around this one
// generic helper instead of a generated 3x3 table.
func binaryGeneral(a, b TBV, resultWidth uint, publicOp func(x, y solver.BV) solver.BV) TBV {
	if a.kind == KindPublic && b.kind == KindPublic {
		return NewPublic(publicOp(a.bv, b.bv))
	}
	return NewSecret(a.solver, resultWidth, "")
}

func unaryGeneral(a TBV, resultWidth uint, publicOp func(x solver.BV) solver.BV) TBV {
	if a.kind == KindPublic {
		return NewPublic(publicOp(a.bv))
	}
	return NewSecret(a.solver, resultWidth, "")
}

// Arithmetic, bitwise, shift, rotate and saturating-arithmetic operations
// (spec.md 4.1.1): output width equals operand width.

func (a TBV) Add(b TBV) TBV  { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.Add(y) }) }
func (a TBV) Sub(b TBV) TBV  { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.Sub(y) }) }
func (a TBV) Mul(b TBV) TBV  { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.Mul(y) }) }
func (a TBV) UDiv(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.UDiv(y) }) }
func (a TBV) SDiv(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.SDiv(y) }) }
func (a TBV) URem(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.URem(y) }) }
func (a TBV) SRem(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.SRem(y) }) }
func (a TBV) And(b TBV) TBV  { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.And(y) }) }
func (a TBV) Or(b TBV) TBV   { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.Or(y) }) }
func (a TBV) Xor(b TBV) TBV  { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.Xor(y) }) }
func (a TBV) Shl(b TBV) TBV  { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.Shl(y) }) }
func (a TBV) LShr(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.LShr(y) }) }
func (a TBV) AShr(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.AShr(y) }) }
func (a TBV) RotL(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.RotL(y) }) }
func (a TBV) RotR(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.RotR(y) }) }
func (a TBV) SatAdd(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.SatAdd(y) }) }
func (a TBV) SatSub(b TBV) TBV { return binaryGeneral(a, b, a.width, func(x, y solver.BV) solver.BV { return x.SatSub(y) }) }

func (a TBV) Not() TBV { return unaryGeneral(a, a.width, func(x solver.BV) solver.BV { return x.Not() }) }
func (a TBV) Neg() TBV { return unaryGeneral(a, a.width, func(x solver.BV) solver.BV { return x.Neg() }) }

// Comparisons and overflow predicates yield width 1 (spec.md 4.1.1).

func (a TBV) Eq(b TBV) TBV  { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.Eq(y) }) }
func (a TBV) Ne(b TBV) TBV  { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.Ne(y) }) }
func (a TBV) ULt(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.ULt(y) }) }
func (a TBV) ULe(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.ULe(y) }) }
func (a TBV) UGt(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.UGt(y) }) }
func (a TBV) UGe(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.UGe(y) }) }
func (a TBV) SLt(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.SLt(y) }) }
func (a TBV) SLe(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.SLe(y) }) }
func (a TBV) SGt(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.SGt(y) }) }
func (a TBV) SGe(b TBV) TBV { return binaryGeneral(a, b, 1, func(x, y solver.BV) solver.BV { return x.SGe(y) }) }

// ZExt implements zero extension (spec.md 4.1.2): the added high bits are
// known public zeros, so taint is preserved precisely rather than
// collapsed to whole-value Secret.
func (v TBV) ZExt(i uint) TBV {
	switch v.kind {
	case KindPublic:
		return NewPublic(v.bv.ZExt(i))
	case KindSecret:
		mask := append(repeatBool(true, v.width), repeatBool(false, i)...)
		data := v.solver.FromUint64(v.width+i, 0)
		return newPartiallySecretRaw(mask, data, v.symbol)
	default:
		mask := append(append([]bool(nil), v.mask...), repeatBool(false, i)...)
		return newPartiallySecretRaw(mask, v.bv.ZExt(i), v.symbol)
	}
}

// SExt implements sign extension (spec.md 4.1.3). Precondition: v.Width() >= 1.
func (v TBV) SExt(i uint) TBV {
	switch v.kind {
	case KindPublic:
		return NewPublic(v.bv.SExt(i))
	case KindSecret:
		return NewSecret(v.solver, v.width+i, v.symbol)
	default:
		var tail []bool
		if v.mask[v.width-1] {
			tail = repeatBool(true, i)
		} else {
			tail = repeatBool(false, i)
		}
		mask := append(append([]bool(nil), v.mask...), tail...)
		return newPartiallySecretRaw(mask, v.bv.SExt(i), v.symbol)
	}
}

// Slice implements the inclusive, little-endian bit slice (spec.md 4.1.4),
// normalizing an all-secret or all-public sub-mask.
func (v TBV) Slice(high, low uint) TBV {
	switch v.kind {
	case KindPublic:
		return NewPublic(v.bv.Slice(high, low))
	case KindSecret:
		return NewSecret(v.solver, high-low+1, "")
	default:
		subMask := append([]bool(nil), v.mask[low:high+1]...)
		return NewPartiallySecretNormalized(subMask, v.bv.Slice(high, low), "")
	}
}

// Concat returns hi ++ v (v supplies the low bits), preserving partial
// taint precisely across all nine variant combinations and intentionally
// skipping normalization (spec.md 4.1.5).
func (lo TBV) Concat(hi TBV) TBV {
	loMask, loData := lo.asMaskedData()
	hiMask, hiData := hi.asMaskedData()
	mask := append(append([]bool(nil), loMask...), hiMask...)
	return newPartiallySecretRaw(mask, loData.Concat(hiData), "")
}

// Repeat implements bit-sequence repetition (spec.md 4.1.6).
func (v TBV) Repeat(n uint) TBV {
	switch v.kind {
	case KindPublic:
		return NewPublic(v.bv.Repeat(n))
	case KindSecret:
		return NewSecret(v.solver, v.width*n, v.symbol)
	default:
		mask := make([]bool, 0, v.width*n)
		for i := uint(0); i < n; i++ {
			mask = append(mask, v.mask...)
		}
		return newPartiallySecretRaw(mask, v.bv.Repeat(n), v.symbol)
	}
}

// Select implements the conditional-select operation (spec.md 4.1.7). A
// secret condition never raises a CT-violation here (selects are
// value-level, not control-flow); it only emits a warning through logger
// (which may be nil) and returns an opaque Secret.
func Select(cond, t, f TBV, logger *log.Logger) TBV {
	if !cond.IsPublic() {
		if logger != nil {
			logger.Printf("warning: data-dependent select on a secret condition may not be constant-time at the target architecture level")
		}
		return NewSecret(t.solver, t.width, "")
	}
	if t.kind == KindSecret || f.kind == KindSecret {
		return NewSecret(t.solver, t.width, "")
	}
	if t.kind == KindPublic && f.kind == KindPublic {
		return NewPublic(cond.bv.Ite(t.bv, f.bv))
	}

	tMask, tData := t.asMaskedData()
	fMask, fData := f.asMaskedData()

	var mask []bool
	switch {
	case t.kind == KindPartiallySecret && f.kind == KindPublic:
		mask = tMask
	case f.kind == KindPartiallySecret && t.kind == KindPublic:
		mask = fMask
	default:
		mask = orMasks(tMask, fMask)
	}
	return newPartiallySecretRaw(mask, cond.bv.Ite(tData, fData), "")
}

// Assert implements the path-assertion policy hook (spec.md 4.1.8): a
// Public value is asserted into the solver's path condition; anything else
// is a control-flow CT-violation and no assertion is added.
func Assert(v TBV) error {
	if !v.IsPublic() {
		return violation.NewBranch("control flow may depend on secret data")
	}
	return v.solver.Assert(v.bv)
}

// GetASolution implements the concretization policy hook (spec.md 4.1.9):
// model extraction on anything but Public is a CT-violation.
func GetASolution(v TBV) (*big.Int, error) {
	if !v.IsPublic() {
		return nil, violation.NewConcretize("model extraction on secret-tainted value")
	}
	return v.solver.GetSolution(v.bv)
}

// AsUint64, AsBool and AsBinaryStr are the non-violating inspectors: on a
// non-Public value they report "no known concrete value" rather than
// raising, per spec.md 4.1.9.
func AsUint64(v TBV) (uint64, bool) {
	if !v.IsPublic() {
		return 0, false
	}
	return v.bv.AsUint64()
}

func AsBool(v TBV) (bool, bool) {
	if !v.IsPublic() {
		return false, false
	}
	return v.bv.AsBool()
}

func AsBinaryStr(v TBV) (string, bool) {
	if !v.IsPublic() {
		return "", false
	}
	return v.bv.AsBinaryString()
}

// GetID traps (panics) on a non-Public value, per spec.md 4.1.9: unlike
// the other inspectors it has no "unknown" representation to fall back to.
func GetID(v TBV) string {
	if !v.IsPublic() {
		panic("tbv: get_id called on a non-Public value")
	}
	return v.bv.Symbol()
}

// New creates a fresh Public symbolic bitvector (spec.md 4.1.10).
func New(h solver.Handle, width uint, name string) TBV {
	return NewPublic(h.NewBV(width, name))
}

// FromBool creates a Public width-1 constant.
func FromBool(h solver.Handle, value bool) TBV {
	var v uint64
	if value {
		v = 1
	}
	return NewPublic(h.FromUint64(1, v))
}

// FromInt creates a Public constant of the given width.
func FromInt(h solver.Handle, width uint, value uint64) TBV {
	return NewPublic(h.FromUint64(width, value))
}

// SetSymbol preserves the variant and replaces the symbol (spec.md 4.1.10).
func (v TBV) SetSymbol(s string) TBV {
	if v.kind == KindPublic {
		cp := v
		cp.bv = v.bv.SetSymbol(s)
		return cp
	}
	cp := v
	cp.symbol = s
	return cp
}

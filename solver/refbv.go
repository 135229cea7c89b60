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

import "math/big"

type exprKind int

const (
	exConst exprKind = iota
	exSymbol
	exBinOp
	exUnOp
	exSlice
	exConcat
	exZExt
	exSExt
	exRepeat
	exIte
)

type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opUDiv
	opSDiv
	opURem
	opSRem
	opAnd
	opOr
	opXor
	opShl
	opLShr
	opAShr
	opRotL
	opRotR
	opSatAdd
	opSatSub
	opEq
	opNe
	opULt
	opULe
	opUGt
	opUGe
	opSLt
	opSLe
	opSGt
	opSGe
)

type unOp int

const (
	opNot unOp = iota
	opNeg
)

// refBV is an immutable expression-tree bitvector node. Every operation
// builds a new node; nothing is mutated in place, so refBVs are safe to
// share across TBV copies the way solver-side terms are expected to
// persist for the solver's lifetime (spec.md 3, "Lifecycles").
type refBV struct {
	h     *refHandle
	width uint
	kind  exprKind

	symbol string
	symID  uint64 // only meaningful for kind == exSymbol

	constVal *big.Int

	op   binOp
	uop  unOp
	x, y *refBV

	lo uint // slice low bound / shared with zext/sext "extra" via `extra`
	hi uint

	extra uint // zext/sext added bits, or repeat count

	cond, t, f *refBV
}

func (b *refBV) Width() uint    { return b.width }
func (b *refBV) Solver() Handle { return b.h }
func (b *refBV) Symbol() string { return b.symbol }

func (b *refBV) SetSymbol(name string) BV {
	cp := *b
	cp.symbol = name
	return &cp
}

func (b *refBV) binary(op binOp, other BV, resultWidth uint) *refBV {
	o := other.(*refBV)
	return &refBV{h: b.h, width: resultWidth, kind: exBinOp, op: op, x: b, y: o}
}

func (b *refBV) Add(o BV) BV    { return b.binary(opAdd, o, b.width) }
func (b *refBV) Sub(o BV) BV    { return b.binary(opSub, o, b.width) }
func (b *refBV) Mul(o BV) BV    { return b.binary(opMul, o, b.width) }
func (b *refBV) UDiv(o BV) BV   { return b.binary(opUDiv, o, b.width) }
func (b *refBV) SDiv(o BV) BV   { return b.binary(opSDiv, o, b.width) }
func (b *refBV) URem(o BV) BV   { return b.binary(opURem, o, b.width) }
func (b *refBV) SRem(o BV) BV   { return b.binary(opSRem, o, b.width) }
func (b *refBV) And(o BV) BV    { return b.binary(opAnd, o, b.width) }
func (b *refBV) Or(o BV) BV     { return b.binary(opOr, o, b.width) }
func (b *refBV) Xor(o BV) BV    { return b.binary(opXor, o, b.width) }
func (b *refBV) Shl(o BV) BV    { return b.binary(opShl, o, b.width) }
func (b *refBV) LShr(o BV) BV   { return b.binary(opLShr, o, b.width) }
func (b *refBV) AShr(o BV) BV   { return b.binary(opAShr, o, b.width) }
func (b *refBV) RotL(o BV) BV   { return b.binary(opRotL, o, b.width) }
func (b *refBV) RotR(o BV) BV   { return b.binary(opRotR, o, b.width) }
func (b *refBV) SatAdd(o BV) BV { return b.binary(opSatAdd, o, b.width) }
func (b *refBV) SatSub(o BV) BV { return b.binary(opSatSub, o, b.width) }

func (b *refBV) Eq(o BV) BV { return b.binary(opEq, o, 1) }
func (b *refBV) Ne(o BV) BV { return b.binary(opNe, o, 1) }
func (b *refBV) ULt(o BV) BV { return b.binary(opULt, o, 1) }
func (b *refBV) ULe(o BV) BV { return b.binary(opULe, o, 1) }
func (b *refBV) UGt(o BV) BV { return b.binary(opUGt, o, 1) }
func (b *refBV) UGe(o BV) BV { return b.binary(opUGe, o, 1) }
func (b *refBV) SLt(o BV) BV { return b.binary(opSLt, o, 1) }
func (b *refBV) SLe(o BV) BV { return b.binary(opSLe, o, 1) }
func (b *refBV) SGt(o BV) BV { return b.binary(opSGt, o, 1) }
func (b *refBV) SGe(o BV) BV { return b.binary(opSGe, o, 1) }

func (b *refBV) Not() BV { return &refBV{h: b.h, width: b.width, kind: exUnOp, uop: opNot, x: b} }
func (b *refBV) Neg() BV { return &refBV{h: b.h, width: b.width, kind: exUnOp, uop: opNeg, x: b} }

func (b *refBV) Slice(high, low uint) BV {
	return &refBV{h: b.h, width: high - low + 1, kind: exSlice, x: b, lo: low, hi: high}
}

func (b *refBV) Concat(hiBV BV) BV {
	hi := hiBV.(*refBV)
	return &refBV{h: b.h, width: b.width + hi.width, kind: exConcat, x: b, y: hi}
}

func (b *refBV) ZExt(extraBits uint) BV {
	return &refBV{h: b.h, width: b.width + extraBits, kind: exZExt, x: b, extra: extraBits}
}

func (b *refBV) SExt(extraBits uint) BV {
	return &refBV{h: b.h, width: b.width + extraBits, kind: exSExt, x: b, extra: extraBits}
}

func (b *refBV) Repeat(times uint) BV {
	return &refBV{h: b.h, width: b.width * times, kind: exRepeat, x: b, extra: times}
}

func (b *refBV) Ite(t, f BV) BV {
	tb, fb := t.(*refBV), f.(*refBV)
	return &refBV{h: b.h, width: tb.width, kind: exIte, cond: b, t: tb, f: fb}
}

func (b *refBV) AsUint64() (uint64, bool) {
	if b.width > 64 {
		return 0, false
	}
	v := b.h.eval(b)
	if !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

func (b *refBV) AsBool() (bool, bool) {
	if b.width != 1 {
		return false, false
	}
	v := b.h.eval(b)
	return v.Sign() != 0, true
}

func (b *refBV) AsBinaryString() (string, bool) {
	v := b.h.eval(b)
	s := v.Text(2)
	for uint(len(s)) < b.width {
		s = "0" + s
	}
	if uint(len(s)) > b.width {
		s = s[uint(len(s))-b.width:]
	}
	return s, true
}

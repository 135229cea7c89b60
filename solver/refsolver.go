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
	"sync/atomic"
)

// New constructs the bundled reference Handle. It is an expression-tree
// solver over math/big: no third-party SMT binding exists anywhere in the
// retrieval pack this module was grown from, so this is the one
// standard-library-only component in the tree. It exists solely to make the
// solver-facing external-collaborator boundary runnable; a production
// deployment replaces it with a real SMT binding without touching tbv,
// memory, abstractdata, alloc or hooks, all of which only see the Handle,
// BV and Array interfaces above.
//
// Range/equality constraints asserted against a leaf symbol are tracked
// precisely; arbitrary boolean constraints over derived expressions are
// accepted but not solved (GetSolution/MaxValue fall back to a conservative
// default for those). This covers every constraint shape the core itself
// produces (range and relational abstract-data constraints, §4.4).
func New() Handle {
	return &refHandle{}
}

var handleSeq int64

type interval struct {
	lo, hi *big.Int
}

type refHandle struct {
	id        int64
	symbolSeq uint64
	intervals map[uint64]*interval
}

func (h *refHandle) ensureID() int64 {
	if h.id == 0 {
		h.id = atomic.AddInt64(&handleSeq, 1)
	}
	return h.id
}

func (h *refHandle) ID() uint64 {
	return uint64(h.ensureID())
}

func (h *refHandle) nextSymbolID() uint64 {
	h.symbolSeq++
	return h.symbolSeq
}

func (h *refHandle) interval(id uint64) *interval {
	if h.intervals == nil {
		h.intervals = make(map[uint64]*interval)
	}
	iv, ok := h.intervals[id]
	if !ok {
		iv = &interval{}
		h.intervals[id] = iv
	}
	return iv
}

func (h *refHandle) NewBV(width uint, name string) BV {
	h.ensureID()
	return &refBV{h: h, width: width, kind: exSymbol, symbol: name, symID: h.nextSymbolID()}
}

func (h *refHandle) FromUint64(width uint, value uint64) BV {
	h.ensureID()
	return &refBV{h: h, width: width, kind: exConst, constVal: maskWidth(new(big.Int).SetUint64(value), width)}
}

func (h *refHandle) FromBigInt(width uint, value *big.Int) BV {
	h.ensureID()
	return &refBV{h: h, width: width, kind: exConst, constVal: maskWidth(new(big.Int).Set(value), width)}
}

func (h *refHandle) NewArray(name string, indexWidth, cellWidth uint) Array {
	h.ensureID()
	return &refArray{h: h, indexWidth: indexWidth, cellWidth: cellWidth, cells: map[string]*refBV{}}
}

func (h *refHandle) Assert(constraint BV) error {
	b, ok := constraint.(*refBV)
	if !ok {
		return fmt.Errorf("solver: foreign BV asserted on this handle")
	}
	h.applyConstraint(b)
	return nil
}

// Push and Pop are no-ops: the reference handle keeps a single constraint
// frame, so a constraint asserted after Push is still in force after Pop.
func (h *refHandle) Push() {}
func (h *refHandle) Pop()  {}

func (h *refHandle) GetSolution(bv BV) (*big.Int, error) {
	b, ok := bv.(*refBV)
	if !ok {
		return nil, fmt.Errorf("solver: foreign BV passed to GetSolution")
	}
	return h.eval(b), nil
}

func (h *refHandle) MaxValue(bv BV) (*big.Int, error) {
	b, ok := bv.(*refBV)
	if !ok {
		return nil, fmt.Errorf("solver: foreign BV passed to MaxValue")
	}
	return h.maxValue(b), nil
}

// applyConstraint recognizes the shapes alloc.go and the core itself
// produce (equality, ordering against a leaf symbol, conjunctions of
// those) and tightens the tracked interval for the underlying leaf symbol.
// Anything else is accepted (asserted) but not reflected in the model.
func (h *refHandle) applyConstraint(b *refBV) {
	if b == nil {
		return
	}
	switch b.kind {
	case exBinOp:
		switch b.op {
		case opAnd:
			h.applyConstraint(b.x)
			h.applyConstraint(b.y)
		case opEq:
			h.bindEq(b.x, b.y)
			h.bindEq(b.y, b.x)
		case opUGe, opSGe:
			h.bindLower(b.x, h.eval(b.y))
			h.bindUpper(b.y, h.eval(b.x))
		case opULe, opSLe:
			h.bindUpper(b.x, h.eval(b.y))
			h.bindLower(b.y, h.eval(b.x))
		case opUGt, opSGt:
			h.bindLower(b.x, addOne(h.eval(b.y)))
			h.bindUpper(b.y, subOne(h.eval(b.x)))
		case opULt, opSLt:
			h.bindUpper(b.x, subOne(h.eval(b.y)))
			h.bindLower(b.y, addOne(h.eval(b.x)))
		}
	}
}

func (h *refHandle) bindEq(sym *refBV, value *refBV) {
	if sym == nil || sym.kind != exSymbol {
		return
	}
	v := h.eval(value)
	iv := h.interval(sym.symID)
	iv.lo, iv.hi = v, v
}

func (h *refHandle) bindLower(sym *refBV, lo *big.Int) {
	if sym == nil || sym.kind != exSymbol || lo == nil {
		return
	}
	iv := h.interval(sym.symID)
	if iv.lo == nil || lo.Cmp(iv.lo) > 0 {
		iv.lo = lo
	}
}

func (h *refHandle) bindUpper(sym *refBV, hi *big.Int) {
	if sym == nil || sym.kind != exSymbol || hi == nil {
		return
	}
	iv := h.interval(sym.symID)
	if iv.hi == nil || hi.Cmp(iv.hi) < 0 {
		iv.hi = hi
	}
}

func addOne(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Add(v, big.NewInt(1))
}

func subOne(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Sub(v, big.NewInt(1))
}

func maskWidth(v *big.Int, width uint) *big.Int {
	if width == 0 {
		return big.NewInt(0)
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))
	return new(big.Int).And(v, mask)
}

func allOnes(width uint) *big.Int {
	if width == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))
}

// orRange returns the bitwise OR of every integer in [lo, hi], a standard
// technique: bits above the highest position where lo and hi differ are
// shared by every value in the range (so come from lo unchanged); every bit
// at or below that position can be both 0 and 1 somewhere in the range, so
// is forced to 1.
func orRange(lo, hi *big.Int, width uint) *big.Int {
	if lo == nil || hi == nil {
		return allOnes(width)
	}
	if lo.Cmp(hi) == 0 {
		return maskWidth(lo, width)
	}
	diff := new(big.Int).Xor(lo, hi)
	msb := uint(diff.BitLen())
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), msb), big.NewInt(1))
	return maskWidth(new(big.Int).Or(lo, mask), width)
}

// eval produces one concrete model value: every leaf symbol takes the lower
// bound of its tracked interval (default 0), every derived expression is
// folded structurally. This always terminates because the expression tree
// built by tbv/memory is finite and acyclic.
func (h *refHandle) eval(b *refBV) *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	switch b.kind {
	case exConst:
		return new(big.Int).Set(b.constVal)
	case exSymbol:
		iv := h.interval(b.symID)
		if iv.lo != nil {
			return new(big.Int).Set(iv.lo)
		}
		return big.NewInt(0)
	case exBinOp:
		return h.evalBinOp(b)
	case exUnOp:
		return h.evalUnOp(b)
	case exSlice:
		x := h.eval(b.x)
		shifted := new(big.Int).Rsh(x, b.lo)
		return maskWidth(shifted, b.width)
	case exConcat:
		lo := h.eval(b.x)
		hi := h.eval(b.y)
		shifted := new(big.Int).Lsh(hi, b.x.width)
		return maskWidth(new(big.Int).Or(shifted, lo), b.width)
	case exZExt:
		return maskWidth(h.eval(b.x), b.width)
	case exSExt:
		v := h.eval(b.x)
		if v.Bit(int(b.x.width)-1) == 1 {
			ones := new(big.Int).Lsh(allOnes(b.extra), b.x.width)
			v = new(big.Int).Or(v, ones)
		}
		return maskWidth(v, b.width)
	case exRepeat:
		x := h.eval(b.x)
		result := big.NewInt(0)
		for i := uint(0); i < b.extra; i++ {
			result.Or(result, new(big.Int).Lsh(x, i*b.x.width))
		}
		return maskWidth(result, b.width)
	case exIte:
		c := h.eval(b.cond)
		if c.Sign() != 0 {
			return h.eval(b.t)
		}
		return h.eval(b.f)
	default:
		return big.NewInt(0)
	}
}

func (h *refHandle) evalUnOp(b *refBV) *big.Int {
	x := h.eval(b.x)
	switch b.uop {
	case opNot:
		return maskWidth(new(big.Int).Not(x), b.width)
	case opNeg:
		return maskWidth(new(big.Int).Neg(x), b.width)
	default:
		return big.NewInt(0)
	}
}

func (h *refHandle) evalBinOp(b *refBV) *big.Int {
	x, y := h.eval(b.x), h.eval(b.y)
	width := b.x.width
	boolVal := func(cond bool) *big.Int {
		if cond {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	}
	signed := func(v *big.Int, w uint) *big.Int {
		if w == 0 {
			return v
		}
		if v.Bit(int(w)-1) == 1 {
			return new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), w))
		}
		return v
	}
	switch b.op {
	case opAdd:
		return maskWidth(new(big.Int).Add(x, y), width)
	case opSub:
		return maskWidth(new(big.Int).Sub(x, y), width)
	case opMul:
		return maskWidth(new(big.Int).Mul(x, y), width)
	case opUDiv:
		if y.Sign() == 0 {
			return allOnes(width)
		}
		return maskWidth(new(big.Int).Div(x, y), width)
	case opSDiv:
		if y.Sign() == 0 {
			return allOnes(width)
		}
		return maskWidth(new(big.Int).Quo(signed(x, width), signed(y, width)), width)
	case opURem:
		if y.Sign() == 0 {
			return x
		}
		return maskWidth(new(big.Int).Mod(x, y), width)
	case opSRem:
		if y.Sign() == 0 {
			return x
		}
		return maskWidth(new(big.Int).Rem(signed(x, width), signed(y, width)), width)
	case opAnd:
		return maskWidth(new(big.Int).And(x, y), width)
	case opOr:
		return maskWidth(new(big.Int).Or(x, y), width)
	case opXor:
		return maskWidth(new(big.Int).Xor(x, y), width)
	case opShl:
		return maskWidth(new(big.Int).Lsh(x, uint(y.Uint64())), width)
	case opLShr:
		return maskWidth(new(big.Int).Rsh(x, uint(y.Uint64())), width)
	case opAShr:
		sx := signed(x, width)
		return maskWidth(new(big.Int).Rsh(sx, uint(y.Uint64())), width)
	case opRotL:
		n := uint(y.Uint64()) % width
		left := new(big.Int).Lsh(x, n)
		right := new(big.Int).Rsh(x, width-n)
		return maskWidth(new(big.Int).Or(left, right), width)
	case opRotR:
		n := uint(y.Uint64()) % width
		right := new(big.Int).Rsh(x, n)
		left := new(big.Int).Lsh(x, width-n)
		return maskWidth(new(big.Int).Or(left, right), width)
	case opSatAdd:
		sum := new(big.Int).Add(x, y)
		if sum.Cmp(allOnes(width)) > 0 {
			return allOnes(width)
		}
		return sum
	case opSatSub:
		if x.Cmp(y) < 0 {
			return big.NewInt(0)
		}
		return new(big.Int).Sub(x, y)
	case opEq:
		return boolVal(x.Cmp(y) == 0)
	case opNe:
		return boolVal(x.Cmp(y) != 0)
	case opULt:
		return boolVal(x.Cmp(y) < 0)
	case opULe:
		return boolVal(x.Cmp(y) <= 0)
	case opUGt:
		return boolVal(x.Cmp(y) > 0)
	case opUGe:
		return boolVal(x.Cmp(y) >= 0)
	case opSLt:
		return boolVal(signed(x, width).Cmp(signed(y, width)) < 0)
	case opSLe:
		return boolVal(signed(x, width).Cmp(signed(y, width)) <= 0)
	case opSGt:
		return boolVal(signed(x, width).Cmp(signed(y, width)) > 0)
	case opSGe:
		return boolVal(signed(x, width).Cmp(signed(y, width)) >= 0)
	default:
		return big.NewInt(0)
	}
}

// maxValue returns the bitwise union of every value b can take under the
// current constraints. It is exact for leaf symbols with a tracked
// interval and for the structural (slice/concat/extend/repeat/ite)
// operations; it falls back to all-ones for arithmetic/bitwise derived
// expressions it cannot bound precisely, which is sound (over-approximate)
// for the shadow-memory classification that consumes it (spec.md 4.2.2).
func (h *refHandle) maxValue(b *refBV) *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	switch b.kind {
	case exConst:
		return new(big.Int).Set(b.constVal)
	case exSymbol:
		iv := h.interval(b.symID)
		if iv.lo != nil && iv.hi != nil {
			return orRange(iv.lo, iv.hi, b.width)
		}
		return allOnes(b.width)
	case exSlice:
		shifted := new(big.Int).Rsh(h.maxValue(b.x), b.lo)
		return maskWidth(shifted, b.width)
	case exConcat:
		lo := h.maxValue(b.x)
		hi := h.maxValue(b.y)
		shifted := new(big.Int).Lsh(hi, b.x.width)
		return maskWidth(new(big.Int).Or(shifted, lo), b.width)
	case exZExt:
		return maskWidth(h.maxValue(b.x), b.width)
	case exSExt:
		inner := h.maxValue(b.x)
		result := new(big.Int).Set(inner)
		if inner.Bit(int(b.x.width)-1) == 1 {
			ones := new(big.Int).Lsh(allOnes(b.extra), b.x.width)
			result.Or(result, ones)
		}
		return maskWidth(result, b.width)
	case exRepeat:
		inner := h.maxValue(b.x)
		result := big.NewInt(0)
		for i := uint(0); i < b.extra; i++ {
			result.Or(result, new(big.Int).Lsh(inner, i*b.x.width))
		}
		return maskWidth(result, b.width)
	case exIte:
		return maskWidth(new(big.Int).Or(h.maxValue(b.t), h.maxValue(b.f)), b.width)
	case exBinOp:
		switch b.op {
		case opOr:
			return maskWidth(new(big.Int).Or(h.maxValue(b.x), h.maxValue(b.y)), b.width)
		case opAnd:
			return maskWidth(new(big.Int).And(h.maxValue(b.x), h.maxValue(b.y)), b.width)
		case opXor:
			return maskWidth(new(big.Int).Or(h.maxValue(b.x), h.maxValue(b.y)), b.width)
		default:
			return allOnes(b.width)
		}
	default:
		return allOnes(b.width)
	}
}

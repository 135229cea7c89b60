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

// Package solver defines the boundary towards the underlying SMT
// bitvector/array solver. Per the specification, the solver itself is an
// external collaborator: this package only fixes the shape the rest of the
// core (tbv, memory) programs against. A real deployment wires a production
// SMT binding behind Handle/BV/Array; this package additionally ships one
// reference implementation (New) so the core is runnable and testable
// without such a binding being present.
package solver

import "math/big"

// Handle is an opaque, reference-counted handle to an SMT solver instance.
// Equality is identity equality: two Handles are the same solver iff ID()
// matches. All BVs and Arrays derived from one Handle may be freely mixed;
// mixing BVs from different Handles is a programming error the caller (tbv)
// must reject.
type Handle interface {
	// ID uniquely identifies this solver instance for identity comparisons.
	ID() uint64

	// NewBV creates a fresh, unconstrained symbolic bitvector of the given
	// width. name is advisory (used for pretty-printing and hook lookups);
	// an empty name means "anonymous".
	NewBV(width uint, name string) BV

	// FromUint64 creates a constant bitvector.
	FromUint64(width uint, value uint64) BV

	// FromBigInt creates a constant bitvector from an arbitrary-precision value.
	FromBigInt(width uint, value *big.Int) BV

	// NewArray creates a fresh solver-array-backed store, every cell
	// implicitly zero until written (new_zero_initialized semantics); the
	// memory package is responsible for the new_uninitialized distinction
	// at the taint level, since the shadow store is always zero regardless.
	NewArray(name string, indexWidth, cellWidth uint) Array

	// Assert adds a boolean (width-1) constraint to the current solver
	// frame. It corresponds to the path condition, not to CT policy.
	Assert(constraint BV) error

	// Push opens a new constraint frame; Pop discards it. Used by the
	// default-call classifier's null-pointer case split (spec.md 4.5).
	Push()
	Pop()

	// GetSolution returns one concrete model value for bv consistent with
	// the asserted constraints. It is the "get_a_solution" primitive;
	// calling it on a non-Public TBV is a CT-violation at the tbv layer,
	// not here.
	GetSolution(bv BV) (*big.Int, error)

	// MaxValue returns the bitwise-OR ("per-bit maximum") of every value bv
	// can take under the current constraints. It is how the memory package
	// implements the three-way shadow read classification (spec.md 4.2.2)
	// without per-bit queries, when the backend exposes it directly.
	MaxValue(bv BV) (*big.Int, error)
}

// BV is a solver bitvector of fixed width. Implementations must be
// side-effect free except through the owning Handle's Assert/Push/Pop.
type BV interface {
	Width() uint
	Solver() Handle
	Symbol() string
	SetSymbol(name string) BV

	Add(BV) BV
	Sub(BV) BV
	Mul(BV) BV
	UDiv(BV) BV
	SDiv(BV) BV
	URem(BV) BV
	SRem(BV) BV
	And(BV) BV
	Or(BV) BV
	Xor(BV) BV
	Not() BV
	Neg() BV
	Shl(BV) BV
	LShr(BV) BV
	AShr(BV) BV
	RotL(BV) BV
	RotR(BV) BV
	SatAdd(BV) BV
	SatSub(BV) BV

	// Comparisons all return a width-1 BV.
	Eq(BV) BV
	Ne(BV) BV
	ULt(BV) BV
	ULe(BV) BV
	UGt(BV) BV
	UGe(BV) BV
	SLt(BV) BV
	SLe(BV) BV
	SGt(BV) BV
	SGe(BV) BV

	// Slice is inclusive, little-endian bit numbering: bit 0 is the LSB.
	Slice(high, low uint) BV
	// Concat returns hi ++ receiver (receiver supplies the low bits).
	Concat(hi BV) BV
	ZExt(extraBits uint) BV
	SExt(extraBits uint) BV
	Repeat(times uint) BV
	// Ite is "receiver ? t : f"; receiver must have width 1.
	Ite(t, f BV) BV

	AsUint64() (uint64, bool)
	AsBool() (bool, bool)
	AsBinaryString() (string, bool)
}

// Array is a solver-array-backed store over a common address space.
type Array interface {
	Solver() Handle
	IndexWidth() uint
	CellWidth() uint
	Read(index BV, bits uint) BV
	Write(index BV, value BV) Array
}

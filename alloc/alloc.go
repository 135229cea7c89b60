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

// Package alloc implements AllocateAndInit: turning a completed
// abstract-data descriptor into memory contents, by way of the host
// state's allocator, function/hook address lookups, and a name table for
// relational constraints (spec.md 4.4).
package alloc

import (
	"fmt"

	"github.com/rawblock/pitchfork/abstractdata"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
)

// Allocator is the host state's memory-allocator primitive (spec.md 6):
// it reserves a fresh region of the given bit size and returns its base
// address as a public pointer-width bitvector.
type Allocator interface {
	Allocate(bits uint) (solver.BV, error)
}

// HostState resolves the two name->address lookups allocation needs: a
// function-address lookup and a function-hook-address lookup (spec.md 6).
type HostState interface {
	FunctionAddress(name string) (solver.BV, bool)
	HookAddress(name string) (solver.BV, bool)
}

// NameTable records name -> value bindings for one check invocation, so
// relational constraints (spec.md 3 "Named abstract values") can look up
// the value they are asserted against. Names are scoped to one call to
// AllocateAndInit's enclosing analysis.
type NameTable struct {
	values map[string]tbv.TBV
}

// NewNameTable returns an empty name table.
func NewNameTable() *NameTable {
	return &NameTable{values: make(map[string]tbv.TBV)}
}

// Bind records that name now refers to v. Re-binding a name overwrites the
// previous value; callers are expected to keep names unique per spec.md 3.
func (nt *NameTable) Bind(name string, v tbv.TBV) {
	nt.values[name] = v
}

// Lookup returns the value bound to name, if any.
func (nt *NameTable) Lookup(name string) (tbv.TBV, bool) {
	v, ok := nt.values[name]
	return v, ok
}

// ParentStack is the stack of in-progress struct base addresses used to
// resolve "pointer-to-parent" back-pointers (spec.md 9 design notes): the
// innermost entry is the parent of any struct being initialized inside the
// current one.
type ParentStack struct {
	addrs []solver.BV
}

func (s *ParentStack) push(addr solver.BV) { s.addrs = append(s.addrs, addr) }
func (s *ParentStack) pop()                { s.addrs = s.addrs[:len(s.addrs)-1] }

// Top returns the nearest enclosing struct's base address: the entry
// pushed by whichever initStruct call recursed into the struct currently
// being initialized. The struct currently being initialized has already
// pushed its own address by the time any of its fields (including a
// pointer-to-parent field) are processed, so that address is always the
// top of the stack and is skipped; Top reports the entry below it.
func (s *ParentStack) Top() (solver.BV, bool) {
	if len(s.addrs) < 2 {
		return nil, false
	}
	return s.addrs[len(s.addrs)-2], true
}

// AllocateAndInit allocates size_in_bits(ad) bits via a and initializes
// them per spec.md 4.4, returning a public pointer TBV to the base
// address. names and parents may be shared across multiple
// AllocateAndInit calls within the same check invocation so relational
// constraints and pointer-to-parent can cross allocation boundaries.
func AllocateAndInit(h solver.Handle, mem *memory.TaintMemory, a Allocator, host HostState, names *NameTable, parents *ParentStack, ad abstractdata.CompleteAD) (tbv.TBV, error) {
	bits := abstractdata.SizeInBits(ad)
	base, err := a.Allocate(bits)
	if err != nil {
		return tbv.TBV{}, fmt.Errorf("alloc: allocating %d bits: %w", bits, err)
	}
	if err := initAt(h, mem, a, host, names, parents, ad, base); err != nil {
		return tbv.TBV{}, err
	}
	return tbv.NewPublic(base), nil
}

func initAt(h solver.Handle, mem *memory.TaintMemory, a Allocator, host HostState, names *NameTable, parents *ParentStack, ad abstractdata.CompleteAD, addr solver.BV) error {
	switch ad.Kind() {
	case abstractdata.KindPrimitiveSecret:
		return mem.Write(tbv.NewPublic(addr), tbv.NewSecret(h, ad.Bits(), ""))

	case abstractdata.KindPrimitivePublic:
		return initPrimitivePublic(h, mem, names, ad, addr)

	case abstractdata.KindPointerTo:
		inner := ad.Elem()
		innerBits := abstractdata.SizeInBits(inner)
		innerAddr, err := a.Allocate(innerBits)
		if err != nil {
			return fmt.Errorf("alloc: allocating pointee of %d bits: %w", innerBits, err)
		}
		if err := mem.Write(tbv.NewPublic(addr), tbv.NewPublic(innerAddr)); err != nil {
			return err
		}
		return initAt(h, mem, a, host, names, parents, inner, innerAddr)

	case abstractdata.KindPointerToFunction:
		fnAddr, ok := host.FunctionAddress(ad.FuncName())
		if !ok {
			return fmt.Errorf("alloc: unresolved function pointer target %q", ad.FuncName())
		}
		return mem.Write(tbv.NewPublic(addr), tbv.NewPublic(fnAddr))

	case abstractdata.KindPointerToHook:
		hookAddr, ok := host.HookAddress(ad.FuncName())
		if !ok {
			return fmt.Errorf("alloc: unresolved hook target %q", ad.FuncName())
		}
		return mem.Write(tbv.NewPublic(addr), tbv.NewPublic(hookAddr))

	case abstractdata.KindPointerToParent:
		top, ok := parents.Top()
		if !ok {
			return fmt.Errorf("alloc: pointer-to-parent with no enclosing struct being initialized")
		}
		return mem.Write(tbv.NewPublic(addr), tbv.NewPublic(top))

	case abstractdata.KindPointerUnconstrained:
		return nil

	case abstractdata.KindArray:
		return initArray(h, mem, a, host, names, parents, ad, addr)

	case abstractdata.KindStruct:
		return initStruct(h, mem, a, host, names, parents, ad, addr)

	default:
		return fmt.Errorf("alloc: cannot initialize AD of kind %s", ad.Kind())
	}
}

func initPrimitivePublic(h solver.Handle, mem *memory.TaintMemory, names *NameTable, ad abstractdata.CompleteAD, addr solver.BV) error {
	c := ad.Constraint()
	bits := ad.Bits()

	switch c.Kind {
	case abstractdata.ConstraintExact:
		return mem.Write(tbv.NewPublic(addr), tbv.NewPublic(h.FromBigInt(bits, c.Exact)))

	case abstractdata.ConstraintRange:
		bv := h.NewBV(bits, "")
		lo := h.FromBigInt(bits, c.Lo)
		hi := h.FromBigInt(bits, c.Hi)
		if err := h.Assert(bv.UGe(lo)); err != nil {
			return err
		}
		if err := h.Assert(bv.ULe(hi)); err != nil {
			return err
		}
		return mem.Write(tbv.NewPublic(addr), tbv.NewPublic(bv))

	case abstractdata.ConstraintUnconstrained:
		return nil

	case abstractdata.ConstraintNamed:
		bv := h.NewBV(bits, c.Name)
		v := tbv.NewPublic(bv)
		names.Bind(c.Name, v)
		return mem.Write(tbv.NewPublic(addr), v)

	case abstractdata.ConstraintRelational:
		ref, ok := names.Lookup(c.Name)
		if !ok {
			return fmt.Errorf("alloc: relational constraint references unknown name %q", c.Name)
		}
		bv := h.NewBV(bits, "")
		cond, err := relationalCondition(c.Rel, bv, ref.PublicBV())
		if err != nil {
			return err
		}
		if err := h.Assert(cond); err != nil {
			return err
		}
		return mem.Write(tbv.NewPublic(addr), tbv.NewPublic(bv))

	default:
		return fmt.Errorf("alloc: unrecognized constraint kind")
	}
}

func relationalCondition(rel abstractdata.RelKind, self, ref solver.BV) (solver.BV, error) {
	switch rel {
	case abstractdata.RelEqual:
		return self.Eq(ref), nil
	case abstractdata.RelSignedLT:
		return self.SLt(ref), nil
	case abstractdata.RelSignedLE:
		return self.SLe(ref), nil
	case abstractdata.RelSignedGT:
		return self.SGt(ref), nil
	case abstractdata.RelSignedGE:
		return self.SGe(ref), nil
	case abstractdata.RelUnsignedLT:
		return self.ULt(ref), nil
	case abstractdata.RelUnsignedLE:
		return self.ULe(ref), nil
	case abstractdata.RelUnsignedGT:
		return self.UGt(ref), nil
	case abstractdata.RelUnsignedGE:
		return self.UGe(ref), nil
	default:
		return nil, fmt.Errorf("alloc: unrecognized relation kind")
	}
}

func initArray(h solver.Handle, mem *memory.TaintMemory, a Allocator, host HostState, names *NameTable, parents *ParentStack, ad abstractdata.CompleteAD, addr solver.BV) error {
	elem := ad.Elem()
	elemBits := abstractdata.SizeInBits(elem)
	if elemBits%8 != 0 {
		return fmt.Errorf("alloc: array element size %d is not a multiple of 8 bits", elemBits)
	}

	if elem.Kind() == abstractdata.KindPrimitiveSecret {
		total := ad.Count() * elemBits
		return mem.Write(tbv.NewPublic(addr), tbv.NewSecret(h, total, ""))
	}

	elemBytes := elemBits / 8
	for i := uint(0); i < ad.Count(); i++ {
		elemAddr := offsetAddr(h, addr, i*elemBytes)
		if err := initAt(h, mem, a, host, names, parents, elem, elemAddr); err != nil {
			return err
		}
	}
	return nil
}

func initStruct(h solver.Handle, mem *memory.TaintMemory, a Allocator, host HostState, names *NameTable, parents *ParentStack, ad abstractdata.CompleteAD, addr solver.BV) error {
	parents.push(addr)
	defer parents.pop()

	var offsetBits uint
	for _, field := range ad.Fields() {
		fieldBits := abstractdata.SizeInBits(field)
		if fieldBits%8 != 0 {
			return fmt.Errorf("alloc: struct field size %d is not a multiple of 8 bits", fieldBits)
		}
		fieldAddr := offsetAddr(h, addr, offsetBits/8)
		if err := initAt(h, mem, a, host, names, parents, field, fieldAddr); err != nil {
			return err
		}
		offsetBits += fieldBits
	}
	return nil
}

func offsetAddr(h solver.Handle, base solver.BV, byteOffset uint) solver.BV {
	if byteOffset == 0 {
		return base
	}
	return base.Add(h.FromUint64(base.Width(), uint64(byteOffset)))
}

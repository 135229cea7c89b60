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

package alloc

import (
	"math/big"
	"testing"

	"github.com/rawblock/pitchfork/abstractdata"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
)

// bumpAllocator is a trivial bump-pointer Allocator for tests; byte
// addresses only ever increase.
type bumpAllocator struct {
	h    solver.Handle
	next uint64
}

func (b *bumpAllocator) Allocate(bits uint) (solver.BV, error) {
	addr := b.h.FromUint64(64, b.next)
	bytes := bits / 8
	if bits%8 != 0 {
		bytes++
	}
	b.next += uint64(bytes)
	return addr, nil
}

type fakeHost struct {
	functions map[string]solver.BV
	hooks     map[string]solver.BV
}

func (f fakeHost) FunctionAddress(name string) (solver.BV, bool) { v, ok := f.functions[name]; return v, ok }
func (f fakeHost) HookAddress(name string) (solver.BV, bool)     { v, ok := f.hooks[name]; return v, ok }

func newTestEnv() (solver.Handle, *memory.TaintMemory, *bumpAllocator) {
	h := solver.New()
	mem := memory.NewUninitialized(h, 64, 8, false, "mem", nil)
	a := &bumpAllocator{h: h, next: 0x1000}
	return h, mem, a
}

func TestAllocateAndInitSecretPrimitive(t *testing.T) {
	t.Parallel()
	h, mem, a := newTestEnv()
	host := fakeHost{}
	names := NewNameTable()
	parents := &ParentStack{}

	ptr, err := AllocateAndInit(h, mem, a, host, names, parents, abstractdata.PrimitiveSecret(32))
	if err != nil {
		t.Fatalf("AllocateAndInit: %v", err)
	}
	got, err := mem.Read(ptr, 32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind() != tbv.KindSecret {
		t.Fatalf("expected Secret, got %s", got.Kind())
	}
}

func TestAllocateAndInitPublicRangeAssertsBounds(t *testing.T) {
	t.Parallel()
	h, mem, a := newTestEnv()
	host := fakeHost{}
	names := NewNameTable()
	parents := &ParentStack{}

	ad := abstractdata.PrimitivePublicRange(32, big.NewInt(0), big.NewInt(4096))
	ptr, err := AllocateAndInit(h, mem, a, host, names, parents, ad)
	if err != nil {
		t.Fatalf("AllocateAndInit: %v", err)
	}
	got, err := mem.Read(ptr, 32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.IsPublic() {
		t.Fatalf("expected Public, got %s", got.Kind())
	}
	sol, err := tbv.GetASolution(got)
	if err != nil {
		t.Fatalf("get_a_solution: %v", err)
	}
	if sol.Sign() < 0 || sol.Cmp(big.NewInt(4096)) > 0 {
		t.Fatalf("solution %s outside asserted range [0,4096]", sol)
	}
}

func TestAllocateAndInitMixedStruct(t *testing.T) {
	t.Parallel()
	h, mem, a := newTestEnv()
	host := fakeHost{}
	names := NewNameTable()
	parents := &ParentStack{}

	s4 := abstractdata.Struct([]abstractdata.AD{
		abstractdata.PrimitivePublicRange(32, big.NewInt(0), big.NewInt(4096)),
		abstractdata.PrimitiveSecret(32),
	})
	ptr, err := AllocateAndInit(h, mem, a, host, names, parents, s4)
	if err != nil {
		t.Fatalf("AllocateAndInit: %v", err)
	}

	lenField, err := mem.Read(ptr, 32)
	if err != nil {
		t.Fatalf("read len: %v", err)
	}
	if !lenField.IsPublic() {
		t.Fatalf("expected len field Public, got %s", lenField.Kind())
	}

	dataAddr := tbv.NewPublic(ptr.PublicBV().Add(h.FromUint64(64, 4)))
	dataField, err := mem.Read(dataAddr, 32)
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if dataField.Kind() != tbv.KindSecret {
		t.Fatalf("expected data field Secret, got %s", dataField.Kind())
	}
}

func TestAllocateAndInitPointerToParent(t *testing.T) {
	t.Parallel()
	h, mem, a := newTestEnv()
	host := fakeHost{}
	names := NewNameTable()
	parents := &ParentStack{}

	child := abstractdata.Struct([]abstractdata.AD{
		abstractdata.PrimitivePublicUnconstrained(32),
		abstractdata.PointerToParent(),
	})
	parent := abstractdata.Struct([]abstractdata.AD{
		abstractdata.PrimitiveSecret(32),
		abstractdata.PointerTo(child),
		abstractdata.PointerTo(child),
	})

	ptr, err := AllocateAndInit(h, mem, a, host, names, parents, parent)
	if err != nil {
		t.Fatalf("AllocateAndInit: %v", err)
	}

	c1PtrField, err := mem.Read(tbv.NewPublic(ptr.PublicBV().Add(h.FromUint64(64, 4))), 64)
	if err != nil {
		t.Fatalf("read c1 pointer: %v", err)
	}
	childParentField, err := mem.Read(tbv.NewPublic(c1PtrField.PublicBV().Add(h.FromUint64(64, 4))), 64)
	if err != nil {
		t.Fatalf("read child.parent: %v", err)
	}
	if !childParentField.IsPublic() {
		t.Fatalf("expected child.parent to be a resolved Public pointer, got %s", childParentField.Kind())
	}
	gotParentAddr, _ := tbv.AsUint64(childParentField)
	wantParentAddr, _ := tbv.AsUint64(ptr)
	if gotParentAddr != wantParentAddr {
		t.Fatalf("child.parent = %#x, want parent base %#x", gotParentAddr, wantParentAddr)
	}
}

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

package e2e

import (
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rawblock/pitchfork/abstractdata"
	"github.com/rawblock/pitchfork/alloc"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
	"github.com/rawblock/pitchfork/violation"
)

// bumpAllocator is the minimal host Allocator these scenarios need: a
// strictly increasing, byte-aligned address counter on one solver handle.
type bumpAllocator struct {
	h    solver.Handle
	next uint64
}

func newBumpAllocator(h solver.Handle) *bumpAllocator {
	return &bumpAllocator{h: h, next: 0x1000}
}

func (a *bumpAllocator) Allocate(bits uint) (solver.BV, error) {
	base := a.next
	a.next += uint64((bits + 7) / 8)
	return a.h.FromUint64(64, base), nil
}

type noHostState struct{}

func (noHostState) FunctionAddress(name string) (solver.BV, bool) { return nil, false }
func (noHostState) HookAddress(name string) (solver.BV, bool)     { return nil, false }

var _ alloc.Allocator = (*bumpAllocator)(nil)
var _ alloc.HostState = noHostState{}

func newMemory(h solver.Handle) *memory.TaintMemory {
	return memory.NewUninitialized(h, 64, 8, true, "e2e", nil)
}

var _ = Describe("simple pure function over two secret arguments (S1)", func() {
	It("stays constant-time: add two secrets and return, with no branch or memory access", func() {
		h := solver.New()
		x := tbv.NewSecret(h, 32, "x")
		y := tbv.NewSecret(h, 32, "y")

		result := x.Add(y)

		Expect(result.IsSecret()).To(BeTrue())
		// The function returns directly: no Assert, no GetASolution, no
		// memory access ever touches a secret-tainted value, so there is
		// nothing here for the policy hooks to refuse.
	})
})

var _ = Describe("branch on a secret argument (S2)", func() {
	It("raises a branch CT-violation", func() {
		h := solver.New()
		x := tbv.NewSecret(h, 32, "x")

		cond := x.SGt(tbv.FromInt(h, 32, 0))
		Expect(cond.IsSecret()).To(BeTrue(), "a comparison with a secret operand must itself be secret")

		err := tbv.Assert(cond)
		Expect(err).To(HaveOccurred())
		Expect(violation.IsCTViolation(err)).To(BeTrue())
		Expect(err.(*violation.CTViolation).Kind).To(Equal(violation.Branch))
	})
})

var _ = Describe("memory read at a secret-influenced address (S3)", func() {
	It("raises an address CT-violation", func() {
		h := solver.New()
		mem := newMemory(h)

		p := tbv.NewPublic(h.FromUint64(64, 0x2000)) // pointer to a public array of 100 i32s
		x := tbv.NewSecret(h, 32, "x")                // secret index

		offset := x.ZExt(32).Mul(tbv.FromInt(h, 64, 4)) // byte offset = x * 4, still secret
		addr := p.Add(offset)
		Expect(addr.IsPublic()).To(BeFalse(), "p[x] computes a secret-tainted address")

		_, err := mem.Read(addr, 32)
		Expect(err).To(HaveOccurred())
		Expect(violation.IsCTViolation(err)).To(BeTrue())
		Expect(err.(*violation.CTViolation).Kind).To(Equal(violation.Address))
	})
})

var _ = Describe("mixed-taint struct with a public length bound (S4)", func() {
	It("stays constant-time: looping data[i] for i in [0,len) never touches a non-public address", func() {
		h := solver.New()
		mem := newMemory(h)
		names := alloc.NewNameTable()
		parents := &alloc.ParentStack{}
		a := newBumpAllocator(h)

		lenField := abstractdata.PrimitivePublicRange(32, big.NewInt(0), big.NewInt(4096))
		dataField := abstractdata.Array(4096, abstractdata.PrimitiveSecret(8))
		s := abstractdata.Struct([]abstractdata.AD{lenField, dataField})

		base, err := alloc.AllocateAndInit(h, mem, a, noHostState{}, names, parents, s)
		Expect(err).NotTo(HaveOccurred())

		lenVal, err := mem.Read(base, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(lenVal.IsPublic()).To(BeTrue(), "k first reads s.len, which is public even though its value is unknown")

		// One representative loop iteration: i is a fresh public symbol
		// bounded below len (a public-only assertion, never touching the
		// secret data field), and the write address derived from it is
		// public throughout.
		i := h.NewBV(32, "i")
		Expect(h.Assert(i.ULt(lenVal.PublicBV()))).To(Succeed())

		dataBase := base.PublicBV().Add(h.FromUint64(64, 4)) // data starts after the 4-byte len field
		elemAddr := tbv.NewPublic(dataBase.Add(i.ZExt(32)))
		Expect(elemAddr.IsPublic()).To(BeTrue())

		err = mem.Write(elemAddr, tbv.NewSecret(h, 8, ""))
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("related arguments via a named relational constraint (S5)", func() {
	buildEnv := func() (solver.Handle, *memory.TaintMemory, *alloc.NameTable, *alloc.ParentStack, *bumpAllocator) {
		h := solver.New()
		return h, newMemory(h), alloc.NewNameTable(), &alloc.ParentStack{}, newBumpAllocator(h)
	}

	It("stays constant-time when idx is related to length by construction", func() {
		h, mem, names, parents, a := buildEnv()

		length := abstractdata.PrimitivePublicNamed(32, "L")
		lengthV, err := alloc.AllocateAndInit(h, mem, a, noHostState{}, names, parents, length)
		Expect(err).NotTo(HaveOccurred())
		lengthVal, err := mem.Read(lengthV, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Assert(lengthVal.PublicBV().ULe(h.FromUint64(32, 20)))).To(Succeed())

		idxAD := abstractdata.PrimitivePublicRelational(32, abstractdata.RelUnsignedLT, "L")
		idxV, err := alloc.AllocateAndInit(h, mem, a, noHostState{}, names, parents, idxAD)
		Expect(err).NotTo(HaveOccurred())
		idxVal, err := mem.Read(idxV, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(idxVal.IsPublic()).To(BeTrue(), "the relational constraint is asserted at allocation time; idx stays Public")

		// The program only ever reaches the secret-touching branch when
		// idx < length, which this path's constraints already guarantee, so
		// the bound check itself is the only thing ever asserted, and it
		// is entirely public. The secret value itself is never used to
		// decide control flow on this path.
		Expect(tbv.Assert(idxVal.ULt(lengthVal))).To(Succeed())
	})

	It("raises a violation when idx is unconstrained and the path where idx==length branches on secret data", func() {
		h, mem, names, parents, a := buildEnv()

		length := abstractdata.PrimitivePublicNamed(32, "L")
		lengthV, err := alloc.AllocateAndInit(h, mem, a, noHostState{}, names, parents, length)
		Expect(err).NotTo(HaveOccurred())
		lengthVal, err := mem.Read(lengthV, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Assert(lengthVal.PublicBV().ULe(h.FromUint64(32, 20)))).To(Succeed())

		idxAD := abstractdata.PrimitivePublicUnconstrained(32) // no relation to "L" this time
		idxV, err := alloc.AllocateAndInit(h, mem, a, noHostState{}, names, parents, idxAD)
		Expect(err).NotTo(HaveOccurred())
		idxVal, err := mem.Read(idxV, 32)
		Expect(err).NotTo(HaveOccurred())

		secretV := tbv.NewSecret(h, 32, "secret")

		// Without the relational constraint, idx may equal length: explore
		// that feasible path explicitly, the way a forked PathState would.
		Expect(tbv.Assert(idxVal.Eq(lengthVal))).To(Succeed(), "idx == length is a public-only comparison and a feasible path")

		// Having taken that path, the program now branches on the secret
		// value itself.
		err = tbv.Assert(secretV.UGt(tbv.FromInt(h, 32, 0)))
		Expect(err).To(HaveOccurred())
		Expect(violation.IsCTViolation(err)).To(BeTrue())
		Expect(err.(*violation.CTViolation).Kind).To(Equal(violation.Branch))
	})
})

var _ = Describe("indirectly recursive struct via a pointer-to-parent back-pointer (S6)", func() {
	It("taints control flow when reading child.parent.x", func() {
		h := solver.New()
		mem := newMemory(h)
		names := alloc.NewNameTable()
		parents := &alloc.ParentStack{}
		a := newBumpAllocator(h)

		child := abstractdata.Struct([]abstractdata.AD{
			abstractdata.PrimitivePublicUnconstrained(32), // y
			abstractdata.PointerToParent(),                // parent
		})
		parentAD := abstractdata.Struct([]abstractdata.AD{
			abstractdata.PrimitiveSecret(32), // x
			abstractdata.PointerTo(child),    // c1
			abstractdata.PointerTo(child),    // c2
		})

		parentBase, err := alloc.AllocateAndInit(h, mem, a, noHostState{}, names, parents, parentAD)
		Expect(err).NotTo(HaveOccurred())

		c1PtrField, err := mem.Read(tbv.NewPublic(parentBase.PublicBV().Add(h.FromUint64(64, 4))), 64)
		Expect(err).NotTo(HaveOccurred())

		childParentField, err := mem.Read(tbv.NewPublic(c1PtrField.PublicBV().Add(h.FromUint64(64, 4))), 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(childParentField.IsPublic()).To(BeTrue())
		gotParentAddr, _ := tbv.AsUint64(childParentField)
		wantParentAddr, _ := tbv.AsUint64(parentBase)
		Expect(gotParentAddr).To(Equal(wantParentAddr), "child.parent must resolve back to the enclosing Parent instance")

		// child.parent.x: follow the resolved back-pointer to read x, the
		// secret field of Parent.
		x, err := mem.Read(childParentField, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(x.IsSecret()).To(BeTrue())

		err = tbv.Assert(x.SGt(tbv.FromInt(h, 32, 0)))
		Expect(err).To(HaveOccurred())
		Expect(violation.IsCTViolation(err)).To(BeTrue())
		Expect(err.(*violation.CTViolation).Kind).To(Equal(violation.Branch))
	})
})

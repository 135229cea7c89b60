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

package abstractdata

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/pitchfork/ir"
)

// testType is a minimal hand-built ir.Type, standing in for the go/ssa /
// go/types-backed concrete instance so these tests can describe arbitrary
// IR shapes (including a deliberately recursive one) without constructing
// a real compiled package.
type testType struct {
	kind       ir.Kind
	bits       uint
	elem       *testType
	arrayLen   uint
	structName string
	fields     []ir.Field
	opaque     bool
}

func (t testType) Kind() ir.Kind      { return t.kind }
func (t testType) BitWidth() uint     { return t.bits }
func (t testType) ArrayLen() uint     { return t.arrayLen }
func (t testType) StructName() string { return t.structName }
func (t testType) Fields() []ir.Field { return t.fields }
func (t testType) Opaque() bool       { return t.opaque }
func (t testType) Elem() ir.Type {
	if t.elem == nil {
		return nil
	}
	return *t.elem
}

func intType(bits uint) testType { return testType{kind: ir.KindInt, bits: bits} }

func ptrType(elem testType) testType { return testType{kind: ir.KindPointer, elem: &elem} }

func TestCompleteUnspecifiedInteger(t *testing.T) {
	t.Parallel()
	got, err := Complete(Unspecified(), intType(32), nil)
	require.NoError(t, err)
	assert.Equal(t, KindPrimitivePublic, got.Kind())
	assert.Equal(t, uint(32), got.Bits())
	assert.Equal(t, ConstraintUnconstrained, got.Constraint().Kind)
}

func TestCompletePointerToIntegerUsesDefaultArrayLength(t *testing.T) {
	t.Parallel()
	ptr := ptrType(intType(32))

	got, err := Complete(Unspecified(), ptr, nil)
	require.NoError(t, err)
	require.Equal(t, KindPointerTo, got.Kind())
	arr := got.Elem()
	require.Equal(t, KindArray, arr.Kind())
	assert.Equal(t, uint(DefaultArrayLength), arr.Count())
}

func TestCompleteFunctionPointerUsesUninitializedHook(t *testing.T) {
	t.Parallel()
	fnPtr := testType{kind: ir.KindFunctionPointer}

	got, err := Complete(Unspecified(), fnPtr, nil)
	require.NoError(t, err)
	assert.Equal(t, KindPointerToHook, got.Kind())
	assert.Equal(t, "hook_uninitialized_function_pointer", got.FuncName())
}

func TestCompleteRecursiveStructWithoutDescriptorFails(t *testing.T) {
	t.Parallel()

	node := &testType{kind: ir.KindStruct, structName: "Node"}
	nodePtr := testType{kind: ir.KindPointer, elem: node}
	node.fields = []ir.Field{{Name: "next", Type: nodePtr}}

	_, err := Complete(Unspecified(), *node, nil)
	require.Error(t, err)
}

func TestCompleteStructWithDescriptorShortCircuits(t *testing.T) {
	t.Parallel()
	named := testType{
		kind:       ir.KindStruct,
		structName: "S4",
		fields: []ir.Field{
			{Name: "len", OffsetBits: 0, Type: intType(32)},
			{Name: "data", OffsetBits: 32, Type: intType(32)},
		},
	}

	desc := Struct([]AD{
		PrimitivePublicRange(32, big.NewInt(0), big.NewInt(4096)),
		PrimitiveSecret(32),
	})
	d := StructDescriptionMap{"S4": desc}

	got, err := Complete(Unspecified(), named, d)
	require.NoError(t, err)
	bigIntComparer := cmp.Comparer(func(a, b *big.Int) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Cmp(b) == 0
	})
	if diff := cmp.Diff(desc, got, cmp.AllowUnexported(AD{}, Constraint{}), bigIntComparer); diff != "" {
		t.Fatalf("completed struct differs from descriptor (-want +got):\n%s", diff)
	}
}

func TestVoidOverrideBypassesIRType(t *testing.T) {
	t.Parallel()
	override := VoidOverride(PrimitiveSecret(32), "")
	got, err := Complete(override, intType(8), nil)
	require.NoError(t, err)
	assert.Equal(t, KindPrimitiveSecret, got.Kind())
}

func TestSizeInBitsOfPointerIsAlways64(t *testing.T) {
	t.Parallel()
	for _, p := range []AD{
		PointerTo(PrimitivePublicUnconstrained(8)),
		PointerToFunction("f"),
		PointerToHook("h"),
		PointerToParent(),
		PointerUnconstrained(),
	} {
		assert.Equal(t, uint(64), SizeInBits(p))
	}
}

func TestSizeInBitsStructSumsFields(t *testing.T) {
	t.Parallel()
	s := Struct([]AD{PrimitivePublicUnconstrained(32), PrimitiveSecret(32)})
	assert.Equal(t, uint(64), SizeInBits(s))
	assert.Equal(t, uint(0), OffsetInBits(s, 0))
	assert.Equal(t, uint(32), OffsetInBits(s, 1))
}

func TestSizeInBitsArrayMultipliesElement(t *testing.T) {
	t.Parallel()
	a := Array(100, PrimitivePublicUnconstrained(32))
	assert.Equal(t, uint(3200), SizeInBits(a))
	assert.Equal(t, uint(320), OffsetInBits(a, 10))
}

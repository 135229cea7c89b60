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

// Package abstractdata implements the abstract-data descriptor (AD): a
// recursive tree describing the shape and secrecy of a function's inputs,
// and the completion pass that fills in whatever the caller left
// unspecified from the IR's own types (spec.md 3, 4.3).
package abstractdata

import "math/big"

// DefaultArrayLength is the element count substituted for an unsized IR
// array/vector or an unsized pointer-to-integer during completion
// (spec.md 4.3).
const DefaultArrayLength = 1024

// Kind identifies which AD variant a node is.
type Kind int

const (
	KindPrimitivePublic Kind = iota
	KindPrimitiveSecret
	KindPointerTo
	KindPointerToFunction
	KindPointerToHook
	KindPointerToParent
	KindPointerUnconstrained
	KindArray
	KindStruct
	KindVoidOverride
	KindUnspecified
)

func (k Kind) String() string {
	switch k {
	case KindPrimitivePublic:
		return "PrimitivePublic"
	case KindPrimitiveSecret:
		return "PrimitiveSecret"
	case KindPointerTo:
		return "PointerTo"
	case KindPointerToFunction:
		return "PointerToFunction"
	case KindPointerToHook:
		return "PointerToHook"
	case KindPointerToParent:
		return "PointerToParent"
	case KindPointerUnconstrained:
		return "PointerUnconstrained"
	case KindArray:
		return "Array"
	case KindStruct:
		return "Struct"
	case KindVoidOverride:
		return "VoidOverride"
	default:
		return "Unspecified"
	}
}

// ConstraintKind classifies the value constraint on a primitive public node.
type ConstraintKind int

const (
	ConstraintExact ConstraintKind = iota
	ConstraintRange
	ConstraintUnconstrained
	ConstraintNamed
	ConstraintRelational
)

// RelKind is the relation a ConstraintRelational asserts against its
// referenced named value: equality, or signed/unsigned less-than(-or-equal)
// and greater-than(-or-equal) (spec.md 3 "Named abstract values").
type RelKind int

const (
	RelEqual RelKind = iota
	RelSignedLT
	RelSignedLE
	RelSignedGT
	RelSignedGE
	RelUnsignedLT
	RelUnsignedLE
	RelUnsignedGT
	RelUnsignedGE
)

// Constraint is the value constraint carried by a PrimitivePublic node.
type Constraint struct {
	Kind ConstraintKind

	Exact  *big.Int // ConstraintExact
	Lo, Hi *big.Int // ConstraintRange (inclusive, unsigned)

	// Name is the value's own name for ConstraintNamed, or the name of the
	// value this node is related to for ConstraintRelational.
	Name string
	Rel  RelKind // ConstraintRelational only
}

// AD is the abstract-data descriptor, a recursive sum type (spec.md 3). The
// zero value is a 0-bit KindPrimitivePublic whose constraint is
// ConstraintExact with a nil Exact value, and is not useful; build one with
// the constructors below.
type AD struct {
	kind Kind

	bits       uint       // PrimitivePublic / PrimitiveSecret
	constraint Constraint // PrimitivePublic

	elem  *AD  // PointerTo / Array element / VoidOverride inner
	count uint // Array

	fields []AD // Struct

	funcName string // PointerToFunction / PointerToHook

	assertStructName string // VoidOverride: optional IR struct-name assertion
}

func (a AD) Kind() Kind             { return a.kind }
func (a AD) Bits() uint             { return a.bits }
func (a AD) Constraint() Constraint { return a.constraint }
func (a AD) Count() uint            { return a.count }
func (a AD) FuncName() string       { return a.funcName }

// Elem returns the pointee / element / override-inner AD. Panics if this
// node has none.
func (a AD) Elem() AD {
	if a.elem == nil {
		panic("abstractdata: Elem called on a node with no element")
	}
	return *a.elem
}

// Fields returns a defensive copy of a struct node's fields.
func (a AD) Fields() []AD {
	return append([]AD(nil), a.fields...)
}

// PrimitivePublicExact builds a public value constrained to exactly v.
func PrimitivePublicExact(bits uint, v *big.Int) AD {
	return AD{kind: KindPrimitivePublic, bits: bits, constraint: Constraint{Kind: ConstraintExact, Exact: v}}
}

// PrimitivePublicRange builds a public value constrained to [lo, hi] (unsigned, inclusive).
func PrimitivePublicRange(bits uint, lo, hi *big.Int) AD {
	return AD{kind: KindPrimitivePublic, bits: bits, constraint: Constraint{Kind: ConstraintRange, Lo: lo, Hi: hi}}
}

// PrimitivePublicUnconstrained builds a public value with no constraint.
func PrimitivePublicUnconstrained(bits uint) AD {
	return AD{kind: KindPrimitivePublic, bits: bits, constraint: Constraint{Kind: ConstraintUnconstrained}}
}

// PrimitivePublicNamed builds a public value registered under name so other
// nodes may reference it relationally.
func PrimitivePublicNamed(bits uint, name string) AD {
	return AD{kind: KindPrimitivePublic, bits: bits, constraint: Constraint{Kind: ConstraintNamed, Name: name}}
}

// PrimitivePublicRelational builds a public value asserted to stand in
// relation rel to the value registered under refName.
func PrimitivePublicRelational(bits uint, rel RelKind, refName string) AD {
	return AD{kind: KindPrimitivePublic, bits: bits, constraint: Constraint{Kind: ConstraintRelational, Rel: rel, Name: refName}}
}

// PrimitiveSecret builds an opaque secret value of the given width.
func PrimitiveSecret(bits uint) AD {
	return AD{kind: KindPrimitiveSecret, bits: bits}
}

// PointerTo builds a pointer to a fully-described inner AD.
func PointerTo(inner AD) AD {
	return AD{kind: KindPointerTo, elem: &inner}
}

// PointerToFunction builds a pointer to a function identified by symbolic name.
func PointerToFunction(name string) AD {
	return AD{kind: KindPointerToFunction, funcName: name}
}

// PointerToHook builds a pointer to a registered hook identified by name.
func PointerToHook(name string) AD {
	return AD{kind: KindPointerToHook, funcName: name}
}

// PointerToParent builds a back-pointer to the nearest enclosing struct
// instance being initialized.
func PointerToParent() AD {
	return AD{kind: KindPointerToParent}
}

// PointerUnconstrained builds an unconstrained pointer value.
func PointerUnconstrained() AD {
	return AD{kind: KindPointerUnconstrained}
}

// Array builds a first-class array of count elements, each described by elem.
func Array(count uint, elem AD) AD {
	return AD{kind: KindArray, count: count, elem: &elem}
}

// Struct builds a first-class struct from an ordered sequence of field ADs.
func Struct(fields []AD) AD {
	return AD{kind: KindStruct, fields: append([]AD(nil), fields...)}
}

// VoidOverride wraps a fully-specified inner AD to be used in place of
// whatever the IR type actually says (commonly an opaque i8/void* pointee),
// optionally asserting that the IR's named struct at that position matches
// assertStructName (empty string ⇒ no assertion).
func VoidOverride(inner AD, assertStructName string) AD {
	return AD{kind: KindVoidOverride, elem: &inner, assertStructName: assertStructName}
}

// Unspecified builds the placeholder node that Complete fills in from the
// IR type and struct-description map.
func Unspecified() AD {
	return AD{kind: KindUnspecified}
}

// StructDescriptionMap maps an IR struct name to the fully-specified AD
// used whenever an Unspecified node of that struct type is completed
// (spec.md 3).
type StructDescriptionMap map[string]AD

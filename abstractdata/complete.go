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
	"github.com/rawblock/pitchfork/ir"
	"github.com/rawblock/pitchfork/violation"
)

// CompleteAD marks the postcondition of Complete: no Unspecified node
// remains anywhere in the tree. It is the same underlying representation
// as AD; the distinct name documents intent at call sites (spec.md 4.3
// "complete(a, T, D) -> CompleteAD").
type CompleteAD = AD

// completionCtx carries the struct-description map (borrowed read-only)
// and the cycle-detection breadcrumb stack of named structs currently
// being expanded without a descriptor (spec.md 9 design notes).
type completionCtx struct {
	structs     StructDescriptionMap
	expanding   map[string]bool
	breadcrumbs []string
}

// Complete fills every Unspecified node of a against the IR type t, using d
// to resolve named structs that lack an explicit AD (spec.md 4.3).
func Complete(a AD, t ir.Type, d StructDescriptionMap) (CompleteAD, error) {
	ctx := &completionCtx{structs: d, expanding: map[string]bool{}}
	return ctx.complete(a, t)
}

func (c *completionCtx) mismatch(detail string) error {
	return &violation.TypeMismatchError{Context: append([]string(nil), c.breadcrumbs...), Detail: detail}
}

func (c *completionCtx) complete(a AD, t ir.Type) (AD, error) {
	switch a.kind {
	case KindUnspecified:
		return c.completeFromType(t)
	case KindVoidOverride:
		return c.completeVoidOverride(a, t)
	case KindPrimitivePublic:
		if t.Kind() != ir.KindInt {
			return AD{}, c.mismatch("primitive public AD against non-integer IR type")
		}
		return a, nil
	case KindPrimitiveSecret:
		if t.Kind() != ir.KindInt {
			return AD{}, c.mismatch("primitive secret AD against non-integer IR type")
		}
		return a, nil
	case KindPointerToFunction, KindPointerToHook, KindPointerToParent, KindPointerUnconstrained:
		if t.Kind() != ir.KindPointer && t.Kind() != ir.KindFunctionPointer {
			return AD{}, c.mismatch("pointer-variant AD against non-pointer IR type")
		}
		return a, nil
	case KindPointerTo:
		return c.completePointerTo(a, t)
	case KindArray:
		return c.completeArray(a, t)
	case KindStruct:
		return c.completeStruct(a, t)
	default:
		return AD{}, c.mismatch("unrecognized AD kind")
	}
}

func (c *completionCtx) completeVoidOverride(a AD, t ir.Type) (AD, error) {
	if a.assertStructName != "" && t.StructName() != a.assertStructName {
		return AD{}, c.mismatch("void-override struct assertion failed: expected " + a.assertStructName)
	}
	inner := a.Elem()
	if hasUnspecified(inner) {
		return AD{}, c.mismatch("void-override AD must be fully specified")
	}
	return inner, nil
}

// completeFromType implements the Unspecified-node completion rules of
// spec.md 4.3 verbatim.
func (c *completionCtx) completeFromType(t ir.Type) (AD, error) {
	switch t.Kind() {
	case ir.KindInt:
		return PrimitivePublicUnconstrained(t.BitWidth()), nil
	case ir.KindFunctionPointer:
		return PointerToHook("hook_uninitialized_function_pointer"), nil
	case ir.KindPointer:
		elemT := t.Elem()
		if elemT.Kind() == ir.KindInt {
			inner := Array(DefaultArrayLength, PrimitivePublicUnconstrained(elemT.BitWidth()))
			return PointerTo(inner), nil
		}
		inner, err := c.complete(Unspecified(), elemT)
		if err != nil {
			return AD{}, err
		}
		return PointerTo(inner), nil
	case ir.KindArray:
		k := t.ArrayLen()
		if k == 0 {
			k = DefaultArrayLength
		}
		elem, err := c.complete(Unspecified(), t.Elem())
		if err != nil {
			return AD{}, err
		}
		return Array(k, elem), nil
	case ir.KindStruct:
		return c.completeNamedOrAnonStruct(t)
	default:
		return AD{}, violation.ErrOpaqueStruct
	}
}

func (c *completionCtx) completeNamedOrAnonStruct(t ir.Type) (AD, error) {
	name := t.StructName()
	if name == "" {
		return c.completeStructFields(t)
	}
	if desc, ok := c.structs[name]; ok {
		return c.complete(desc, t)
	}
	if t.Opaque() {
		return AD{}, violation.ErrOpaqueStruct
	}
	if c.expanding[name] {
		return AD{}, &violation.RecursiveStructError{StructName: name}
	}
	c.expanding[name] = true
	c.breadcrumbs = append(c.breadcrumbs, name)
	defer func() {
		delete(c.expanding, name)
		c.breadcrumbs = c.breadcrumbs[:len(c.breadcrumbs)-1]
	}()
	return c.completeStructFields(t)
}

func (c *completionCtx) completeStructFields(t ir.Type) (AD, error) {
	tFields := t.Fields()
	fields := make([]AD, len(tFields))
	for i, f := range tFields {
		completed, err := c.complete(Unspecified(), f.Type)
		if err != nil {
			return AD{}, err
		}
		fields[i] = completed
	}
	return Struct(fields), nil
}

// completePointerTo handles the two auto-unwrap rules of spec.md 4.3: AD
// pointer-to-X against IR pointer-to-array-of-1-X recurses into the
// element type, and AD pointer-to-array-of-k against IR pointer-to-scalar
// synthesizes an IR array type of k of that scalar.
func (c *completionCtx) completePointerTo(a AD, t ir.Type) (AD, error) {
	if t.Kind() != ir.KindPointer {
		return AD{}, c.mismatch("pointer-to AD against non-pointer IR type")
	}
	elemT := t.Elem()
	inner := a.Elem()

	if elemT.Kind() == ir.KindArray && elemT.ArrayLen() == 1 && inner.kind != KindArray {
		elemT = elemT.Elem()
	}
	if inner.kind == KindArray && elemT.Kind() != ir.KindArray {
		elemT = syntheticArray{elem: elemT, len: inner.count}
	}

	completedElem, err := c.complete(inner, elemT)
	if err != nil {
		return AD{}, err
	}
	return PointerTo(completedElem), nil
}

func (c *completionCtx) completeArray(a AD, t ir.Type) (AD, error) {
	if t.Kind() != ir.KindArray {
		return AD{}, c.mismatch("array AD against non-array IR type")
	}
	completedElem, err := c.complete(a.Elem(), t.Elem())
	if err != nil {
		return AD{}, err
	}
	return Array(a.count, completedElem), nil
}

func (c *completionCtx) completeStruct(a AD, t ir.Type) (AD, error) {
	if t.Kind() != ir.KindStruct {
		return AD{}, c.mismatch("struct AD against non-struct IR type")
	}
	tFields := t.Fields()
	if len(tFields) != len(a.fields) {
		return AD{}, c.mismatch("struct AD field count does not match IR struct")
	}
	out := make([]AD, len(a.fields))
	for i, f := range a.fields {
		completed, err := c.complete(f, tFields[i].Type)
		if err != nil {
			return AD{}, err
		}
		out[i] = completed
	}
	return Struct(out), nil
}

func hasUnspecified(a AD) bool {
	switch a.kind {
	case KindUnspecified:
		return true
	case KindPointerTo, KindArray:
		return hasUnspecified(a.Elem())
	case KindVoidOverride:
		return false // already validated fully-specified when it was completed
	case KindStruct:
		for _, f := range a.fields {
			if hasUnspecified(f) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// syntheticArray is a minimal ir.Type implementing the "synthesize an IR
// array type of k of that scalar" auto-unwrap rule, where no such IR type
// actually exists in the host module.
type syntheticArray struct {
	elem ir.Type
	len  uint
}

func (s syntheticArray) Kind() ir.Kind        { return ir.KindArray }
func (s syntheticArray) BitWidth() uint       { return 0 }
func (s syntheticArray) Elem() ir.Type        { return s.elem }
func (s syntheticArray) ArrayLen() uint       { return s.len }
func (s syntheticArray) StructName() string   { return "" }
func (s syntheticArray) Fields() []ir.Field   { return nil }
func (s syntheticArray) Opaque() bool         { return false }

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

// PointerBits is the platform pointer width every pointer variant reports,
// regardless of what it points to (spec.md 4.3, invariant 8 of spec.md §8).
const PointerBits = 64

// SizeInBits computes the storage footprint of a CompleteAD: it sums
// struct fields, multiplies array elements by their element size, and
// returns PointerBits for every pointer variant. a must contain no
// Unspecified nodes.
func SizeInBits(a CompleteAD) uint {
	switch a.kind {
	case KindPrimitivePublic, KindPrimitiveSecret:
		return a.bits
	case KindPointerTo, KindPointerToFunction, KindPointerToHook, KindPointerToParent, KindPointerUnconstrained:
		return PointerBits
	case KindArray:
		return a.count * SizeInBits(a.Elem())
	case KindStruct:
		var total uint
		for _, f := range a.fields {
			total += SizeInBits(f)
		}
		return total
	case KindVoidOverride:
		return SizeInBits(a.Elem())
	default:
		panic("abstractdata: SizeInBits called on an Unspecified node")
	}
}

// FieldSizeInBits returns the size of field n of a struct-kind CompleteAD.
// Defined only on struct nodes.
func FieldSizeInBits(a CompleteAD, n int) uint {
	if a.kind != KindStruct {
		panic("abstractdata: FieldSizeInBits called on a non-struct node")
	}
	return SizeInBits(a.fields[n])
}

// OffsetInBits returns the bit offset of field n within a struct-kind
// CompleteAD, or of element n within an array-kind CompleteAD. Defined
// only on struct and array nodes.
func OffsetInBits(a CompleteAD, n int) uint {
	switch a.kind {
	case KindStruct:
		var offset uint
		for i := 0; i < n; i++ {
			offset += SizeInBits(a.fields[i])
		}
		return offset
	case KindArray:
		return uint(n) * SizeInBits(a.Elem())
	default:
		panic("abstractdata: OffsetInBits called on a non-struct/array node")
	}
}

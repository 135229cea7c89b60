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

// Package ir names the boundary toward the host's low-level typed
// intermediate representation (spec.md 6): type queries and named-struct
// resolution are consumed through these interfaces, never parsed or owned
// here. The package also ships one concrete instance, backed by go/ssa and
// go/types, so the rest of the module and its tests have something real to
// run against.
package ir

// Kind classifies a Type for the purposes of abstract-data completion and
// default-call classification (spec.md 4.3, 4.5).
type Kind int

const (
	KindInt Kind = iota
	KindPointer
	KindFunctionPointer
	KindArray
	KindStruct
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindPointer:
		return "Pointer"
	case KindFunctionPointer:
		return "FunctionPointer"
	case KindArray:
		return "Array"
	case KindStruct:
		return "Struct"
	default:
		return "Opaque"
	}
}

// Field describes one struct field: its offset from the struct base and
// its type.
type Field struct {
	Name       string
	OffsetBits uint
	Type       Type
}

// Type is the queryable surface of an IR type. Concrete types (integers,
// pointers, arrays, structs) implement it; a named struct that cannot be
// resolved reports KindOpaque and a zero field/element set.
type Type interface {
	Kind() Kind

	// BitWidth is meaningful for KindInt only.
	BitWidth() uint

	// Elem is the pointee (KindPointer) or element type (KindArray).
	Elem() Type

	// ArrayLen is the element count for KindArray; 0 means "unsized", which
	// abstractdata.Complete treats per spec.md 4.3 as DEFAULT_ARRAY_LENGTH.
	ArrayLen() uint

	// StructName is the named-struct's name, or "" for an anonymous struct.
	StructName() string

	// Fields lists a struct's fields in declaration order. Empty for
	// anything but KindStruct.
	Fields() []Field

	// Opaque reports a named struct whose definition could not be
	// resolved (declared but not defined, or resolution failed).
	Opaque() bool
}

// Function is a single IR function: its name and parameter/return types.
type Function interface {
	Name() string
	Params() []Type
	Signature() []Type // Params() ++ [Return] for classify's call-hook path
	Return() Type
}

// TypeQuerier resolves named-struct types against the host's type universe,
// the "named-struct-type resolver" of spec.md 6.
type TypeQuerier interface {
	// ResolveStruct looks up a named struct type; ok is false if no such
	// struct is declared in the module at all (distinct from Opaque(),
	// which means declared-but-undefined).
	ResolveStruct(name string) (t Type, ok bool)
}

// Module is the IR project handed in by the caller (spec.md 6 "the caller
// supplies ... an IR module project"): function lookup by exact name and by
// prefix, plus the struct resolver every AD completion needs.
type Module interface {
	TypeQuerier

	// Function looks up a function by its exact name.
	Function(name string) (Function, bool)

	// FunctionsWithPrefix returns every function whose name has the given
	// prefix, in a stable order, for the CLI's --prefix mode (spec.md 6).
	FunctionsWithPrefix(prefix string) []Function

	// Functions lists every function in the module, for --list-functions.
	Functions() []Function
}

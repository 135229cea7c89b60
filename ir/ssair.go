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

package ir

import (
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// ssaType adapts a go/types.Type to the Type interface. Integers are
// modeled by their platform width (int/uint default to 64); pointers,
// arrays/slices, and structs recurse structurally, the same traversal
// taint.Analyzer.isSourceType performs when walking receiver and field
// types.
type ssaType struct {
	t types.Type
}

// WrapType adapts a go/types.Type for use wherever the core wants an
// ir.Type, e.g. a driver translating an ssa.Value's type.
func WrapType(t types.Type) Type { return ssaType{t: t} }

func (s ssaType) Kind() Kind {
	switch u := s.t.Underlying().(type) {
	case *types.Basic:
		return KindInt
	case *types.Pointer:
		if _, ok := u.Elem().Underlying().(*types.Signature); ok {
			return KindFunctionPointer
		}
		return KindPointer
	case *types.Array, *types.Slice:
		return KindArray
	case *types.Struct:
		return KindStruct
	case *types.Signature:
		return KindFunctionPointer
	default:
		return KindOpaque
	}
}

func (s ssaType) BitWidth() uint {
	b, ok := s.t.Underlying().(*types.Basic)
	if !ok {
		return 0
	}
	switch b.Kind() {
	case types.Bool, types.Int8, types.Uint8:
		return 8
	case types.Int16, types.Uint16:
		return 16
	case types.Int32, types.Uint32, types.Float32:
		return 32
	case types.Int64, types.Uint64, types.Float64:
		return 64
	case types.Int, types.Uint, types.Uintptr:
		return 64
	default:
		return 64
	}
}

func (s ssaType) Elem() Type {
	switch u := s.t.Underlying().(type) {
	case *types.Pointer:
		return ssaType{t: u.Elem()}
	case *types.Array:
		return ssaType{t: u.Elem()}
	case *types.Slice:
		return ssaType{t: u.Elem()}
	default:
		return nil
	}
}

func (s ssaType) ArrayLen() uint {
	if a, ok := s.t.Underlying().(*types.Array); ok {
		return uint(a.Len())
	}
	return 0
}

func (s ssaType) StructName() string {
	if n, ok := s.t.(*types.Named); ok {
		if _, isStruct := n.Underlying().(*types.Struct); isStruct {
			return n.Obj().Name()
		}
	}
	return ""
}

func (s ssaType) Fields() []Field {
	st, ok := s.t.Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	fields := make([]Field, 0, st.NumFields())
	var offset uint
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		ft := ssaType{t: f.Type()}
		fields = append(fields, Field{Name: f.Name(), OffsetBits: offset, Type: ft})
		offset += sizeOfBits(ft)
	}
	return fields
}

func (s ssaType) Opaque() bool {
	n, ok := s.t.(*types.Named)
	if !ok {
		return false
	}
	_, isStruct := n.Underlying().(*types.Struct)
	return !isStruct && s.Kind() == KindOpaque
}

func sizeOfBits(t Type) uint {
	switch t.Kind() {
	case KindInt:
		return t.BitWidth()
	case KindPointer, KindFunctionPointer:
		return 64
	case KindArray:
		n := t.ArrayLen()
		if n == 0 {
			n = 1024
		}
		return n * sizeOfBits(t.Elem())
	case KindStruct:
		var total uint
		for _, f := range t.Fields() {
			total += sizeOfBits(f.Type)
		}
		return total
	default:
		return 0
	}
}

// ssaFunction adapts an *ssa.Function.
type ssaFunction struct {
	fn *ssa.Function
}

// WrapFunction adapts an *ssa.Function for use as an ir.Function.
func WrapFunction(fn *ssa.Function) Function { return ssaFunction{fn: fn} }

func (f ssaFunction) Name() string { return f.fn.Name() }

func (f ssaFunction) Params() []Type {
	sig := f.fn.Signature
	out := make([]Type, sig.Params().Len())
	for i := range out {
		out[i] = ssaType{t: sig.Params().At(i).Type()}
	}
	return out
}

func (f ssaFunction) Return() Type {
	sig := f.fn.Signature
	if sig.Results().Len() == 0 {
		return nil
	}
	return ssaType{t: sig.Results().At(0).Type()}
}

func (f ssaFunction) Signature() []Type {
	out := append([]Type(nil), f.Params()...)
	if r := f.Return(); r != nil {
		out = append(out, r)
	}
	return out
}

// SSAModule adapts a go/ssa program's functions as an ir.Module, grounded
// in taint.Analyzer's own traversal of *ssa.Program/*ssa.Function (see
// taint/taint.go). Struct resolution walks the program's Package types,
// mirroring how isSourceType/isSinkCall dereference *types.Named receivers.
type SSAModule struct {
	prog  *ssa.Program
	fns   map[string]*ssa.Function
	names []string
}

// NewSSAModule indexes every member function of every package in prog.
func NewSSAModule(prog *ssa.Program, pkgs []*ssa.Package) *SSAModule {
	m := &SSAModule{prog: prog, fns: make(map[string]*ssa.Function)}
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		for _, member := range pkg.Members {
			fn, ok := member.(*ssa.Function)
			if !ok {
				continue
			}
			m.fns[fn.Name()] = fn
			m.names = append(m.names, fn.Name())
		}
	}
	sort.Strings(m.names)
	return m
}

func (m *SSAModule) Function(name string) (Function, bool) {
	fn, ok := m.fns[name]
	if !ok {
		return nil, false
	}
	return ssaFunction{fn: fn}, true
}

func (m *SSAModule) FunctionsWithPrefix(prefix string) []Function {
	var out []Function
	for _, name := range m.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, ssaFunction{fn: m.fns[name]})
		}
	}
	return out
}

func (m *SSAModule) Functions() []Function {
	out := make([]Function, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, ssaFunction{fn: m.fns[name]})
	}
	return out
}

func (m *SSAModule) ResolveStruct(name string) (Type, bool) {
	for _, pkg := range m.prog.AllPackages() {
		if pkg.Pkg == nil {
			continue
		}
		obj := pkg.Pkg.Scope().Lookup(name)
		if obj == nil {
			continue
		}
		if tn, ok := obj.(*types.TypeName); ok {
			if _, isStruct := tn.Type().Underlying().(*types.Struct); isStruct {
				return ssaType{t: tn.Type()}, true
			}
		}
	}
	return nil, false
}

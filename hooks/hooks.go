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

// Package hooks implements the default-call taint classification of
// spec.md 4.5: deciding whether an unresolved call is safe to stub because
// none of its arguments transitively reference secret memory, plus a small
// registry so callers can register their own per-function hooks by name
// (spec.md 2 "Default hook", 4.4 "pointer-to-hook").
package hooks

import (
	"fmt"

	"github.com/rawblock/pitchfork/ir"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
	"github.com/rawblock/pitchfork/violation"
)

// Classification is the three-point taint lattice a call argument is
// classified into (spec.md 4.5).
type Classification int

const (
	Public Classification = iota
	Secret
	Unknown
)

func (c Classification) String() string {
	switch c {
	case Public:
		return "Public"
	case Secret:
		return "Secret"
	default:
		return "Unknown"
	}
}

// join is the lattice join used when folding an array/struct's element
// classifications into one: Secret dominates, then Unknown, then Public.
func join(a, b Classification) Classification {
	if a == Secret || b == Secret {
		return Secret
	}
	if a == Unknown || b == Unknown {
		return Unknown
	}
	return Public
}

// Classify decides whether v, of IR type t, transitively references secret
// memory (spec.md 4.5). It is the workhorse both the default hook and a
// caller's custom hook may use to decide whether it's safe to proceed.
func Classify(h solver.Handle, mem *memory.TaintMemory, v tbv.TBV, t ir.Type) (Classification, error) {
	if v.IsSecret() {
		return Secret, nil
	}

	switch t.Kind() {
	case ir.KindFunctionPointer:
		return Public, nil

	case ir.KindPointer:
		return classifyPointer(h, mem, v, t)

	case ir.KindArray:
		return classifyArray(h, mem, v, t)

	case ir.KindStruct:
		return classifyStruct(h, mem, v, t)

	case ir.KindOpaque:
		return Unknown, nil

	default: // ir.KindInt and any other scalar
		return Public, nil
	}
}

func classifyPointer(h solver.Handle, mem *memory.TaintMemory, v tbv.TBV, t ir.Type) (Classification, error) {
	pointee := t.Elem()
	sizeBits, ok := sizeInBits(pointee)
	if !ok {
		return Unknown, nil
	}
	if sizeBits == 0 {
		return Public, nil
	}

	addr := v.PublicBV()
	canBeNull := canEqualZero(h, addr)
	if canBeNull {
		h.Push()
		defer h.Pop()
		if err := h.Assert(addr.Ne(h.FromUint64(addr.Width(), 0))); err != nil {
			return Unknown, err
		}
	}

	pointee_, err := mem.Read(v, sizeBits)
	if err != nil {
		return Unknown, err
	}
	return Classify(h, mem, pointee_, pointee)
}

func classifyArray(h solver.Handle, mem *memory.TaintMemory, v tbv.TBV, t ir.Type) (Classification, error) {
	k := t.ArrayLen()
	elemT := t.Elem()
	elemBits, ok := sizeInBits(elemT)
	if !ok {
		return Unknown, nil
	}
	if elemBits == 0 {
		return Public, nil
	}

	result := Public
	for i := uint(0); i < k; i++ {
		lo := i * elemBits
		slice := v.Slice(lo+elemBits-1, lo)
		c, err := Classify(h, mem, slice, elemT)
		if err != nil {
			return Unknown, err
		}
		if c == Secret {
			return Secret, nil
		}
		result = join(result, c)
	}
	return result, nil
}

func classifyStruct(h solver.Handle, mem *memory.TaintMemory, v tbv.TBV, t ir.Type) (Classification, error) {
	if t.Opaque() {
		return Unknown, nil
	}
	result := Public
	for _, f := range t.Fields() {
		fieldBits, ok := sizeInBits(f.Type)
		if !ok {
			return Unknown, nil
		}
		if fieldBits == 0 {
			continue
		}
		slice := v.Slice(f.OffsetBits+fieldBits-1, f.OffsetBits)
		c, err := Classify(h, mem, slice, f.Type)
		if err != nil {
			return Unknown, err
		}
		if c == Secret {
			return Secret, nil
		}
		result = join(result, c)
	}
	return result, nil
}

// sizeInBits is classify's own size query over ir.Type (distinct from
// abstractdata.SizeInBits, which operates on a CompleteAD): ok is false for
// an opaque named struct or any other type whose size cannot be determined,
// matching spec.md 4.5's "size_in_bits(P) unknown (opaque) => Unknown".
func sizeInBits(t ir.Type) (uint, bool) {
	switch t.Kind() {
	case ir.KindInt:
		return t.BitWidth(), true
	case ir.KindPointer, ir.KindFunctionPointer:
		return 64, true
	case ir.KindArray:
		elemBits, ok := sizeInBits(t.Elem())
		if !ok {
			return 0, false
		}
		return t.ArrayLen() * elemBits, true
	case ir.KindStruct:
		if t.Opaque() {
			return 0, false
		}
		var total uint
		for _, f := range t.Fields() {
			fieldBits, ok := sizeInBits(f.Type)
			if !ok {
				return 0, false
			}
			total += fieldBits
		}
		return total, true
	default:
		return 0, false
	}
}

// canEqualZero reports whether bv's current lower bound is exactly zero.
// Under the bundled reference solver's contiguous-unsigned-interval model
// this is an exact feasibility test for "can this value be null", not an
// approximation: a tracked interval [lo, hi] contains 0 iff lo == 0.
func canEqualZero(h solver.Handle, bv solver.BV) bool {
	v, err := h.GetSolution(bv)
	if err != nil {
		return true
	}
	return v.Sign() == 0
}

// Registry resolves a caller-registered hook name to the function it
// should invoke instead of symbolically executing an unknown body
// (spec.md 2 "Default hook", 4.4 pointer-to-hook/pointer-to-function).
// This is the registration mechanism only; the library of hooks for
// well-known standard-library routines is an out-of-scope collaborator
// (spec.md 1).
type Registry struct {
	hooks map[string]Hook
}

// Hook is a caller-supplied replacement for an unresolved call's body. It
// receives the call's arguments and the callee's signature types and returns
// the call's result, or an error if it refuses to model the call. The
// Registry only stores hooks; it does not run Classify on the arguments
// before a hook is called.
type Hook func(h solver.Handle, mem *memory.TaintMemory, args []tbv.TBV, sig []ir.Type) (tbv.TBV, error)

// NewRegistry returns an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// Register binds name to fn, overwriting any previous binding.
func (r *Registry) Register(name string, fn Hook) {
	r.hooks[name] = fn
}

// Lookup returns the hook bound to name, if any.
func (r *Registry) Lookup(name string) (Hook, bool) {
	fn, ok := r.hooks[name]
	return fn, ok
}

// Default implements spec.md 4.5's default-call disposition: classify
// every argument; if any is Secret or Unknown, refuse with an actionable
// diagnostic naming the three standard ways out (stub it, supply bitcode,
// or register a custom hook). Otherwise synthesize an unconstrained public
// return value of the function's return type (nil return type means void,
// reported as a zero-value, zero-width TBV).
func Default(h solver.Handle, mem *memory.TaintMemory, funcName string, args []tbv.TBV, paramTypes []ir.Type, returnType ir.Type) (tbv.TBV, error) {
	if len(args) != len(paramTypes) {
		return tbv.TBV{}, fmt.Errorf("hooks: default call to %q: %d arguments against %d parameter types", funcName, len(args), len(paramTypes))
	}
	for i, arg := range args {
		c, err := Classify(h, mem, arg, paramTypes[i])
		if err != nil {
			return tbv.TBV{}, err
		}
		switch c {
		case Secret:
			return tbv.TBV{}, refusal(funcName, i, "argument transitively references secret memory")
		case Unknown:
			return tbv.TBV{}, refusal(funcName, i, "argument's taint could not be determined (opaque struct or unresolved size)")
		}
	}
	if returnType == nil {
		return tbv.TBV{}, nil
	}
	return unconstrainedOf(h, returnType), nil
}

func refusal(funcName string, argIndex int, reason string) error {
	return fmt.Errorf("%w: call to %q, argument %d: %s; stub the call, supply bitcode for it, or register a custom hook",
		violation.ErrOpaqueStruct, funcName, argIndex, reason)
}

// unconstrainedOf builds an unconstrained Public return value of t's shape.
// Only scalar and pointer return types are meaningful for a default-hook
// return; a struct/array return from an unresolved call is represented as
// an unconstrained pointer-width placeholder, since the default hook never
// allocates memory on the caller's behalf (spec.md 4.5 only promises "an
// unconstrained public value of the function's return type").
func unconstrainedOf(h solver.Handle, t ir.Type) tbv.TBV {
	switch t.Kind() {
	case ir.KindPointer, ir.KindFunctionPointer:
		return tbv.New(h, 64, "")
	case ir.KindInt:
		return tbv.New(h, t.BitWidth(), "")
	default:
		return tbv.New(h, 64, "")
	}
}

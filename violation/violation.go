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

// Package violation defines the closed error taxonomy raised at the core
// boundary: constant-time findings (branch, address, concretization) and
// the fatal errors produced by abstract-data completion and allocation.
package violation

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a CT-violation finding.
type Kind int

const (
	// Branch is raised when assert() observes a non-Public TBV: control
	// flow may depend on secret data.
	Branch Kind = iota
	// Address is raised when a memory read or write uses a non-Public index.
	Address
	// Concretize is raised when get_a_solution is called on a non-Public TBV.
	Concretize
)

func (k Kind) String() string {
	switch k {
	case Branch:
		return "branch"
	case Address:
		return "address"
	case Concretize:
		return "concretize"
	default:
		return "unknown"
	}
}

// CTViolation is a finding: secret-tainted data observed at a control-flow
// decision, a memory-address computation, or a concretization call. It ends
// the path it occurred on; it is collected and reported, not a Go panic.
type CTViolation struct {
	Kind    Kind
	Message string
}

func (e *CTViolation) Error() string {
	return fmt.Sprintf("CT-violation (%s): %s", e.Kind, e.Message)
}

// NewBranch builds a control-flow CT-violation.
func NewBranch(message string) *CTViolation {
	return &CTViolation{Kind: Branch, Message: message}
}

// NewAddress builds a memory-address CT-violation.
func NewAddress(message string) *CTViolation {
	return &CTViolation{Kind: Address, Message: message}
}

// NewConcretize builds a concretization CT-violation.
func NewConcretize(message string) *CTViolation {
	return &CTViolation{Kind: Concretize, Message: message}
}

// IsCTViolation reports whether err is (or wraps) a *CTViolation.
func IsCTViolation(err error) bool {
	var v *CTViolation
	return errors.As(err, &v)
}

// Fatal errors surfaced by abstract-data completion and allocation. These
// abort the whole analysis rather than ending a single path.
var (
	// ErrRecursiveStruct is returned when default completion encounters a
	// recursive struct with no entry in the struct-description map.
	ErrRecursiveStruct = fmt.Errorf("default applied to recursive struct")
	// ErrTypeMismatch is returned when an abstract-data node and the IR type
	// it is being completed against disagree in shape.
	ErrTypeMismatch = fmt.Errorf("abstract-data descriptor does not match IR type")
	// ErrOpaqueStruct is returned by the default-call classifier when it
	// cannot see through an externally-defined opaque struct.
	ErrOpaqueStruct = fmt.Errorf("opaque struct: cannot decide taint")
)

// TypeMismatchError wraps ErrTypeMismatch with a struct-context backtrace,
// outermost frame first.
type TypeMismatchError struct {
	Context []string
	Detail  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s (in %v)", ErrTypeMismatch, e.Detail, e.Context)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// RecursiveStructError wraps ErrRecursiveStruct naming the offending struct.
type RecursiveStructError struct {
	StructName string
}

func (e *RecursiveStructError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRecursiveStruct, e.StructName)
}

func (e *RecursiveStructError) Unwrap() error { return ErrRecursiveStruct }

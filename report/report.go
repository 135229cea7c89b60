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

// Package report models the caller-facing results of a check invocation
// (spec.md 6): per-path outcomes in a closed error taxonomy, and the
// PathStatistics rollup a caller inspects without re-walking every path.
package report

import (
	"fmt"
	"time"

	"github.com/rawblock/pitchfork/violation"
)

// ErrorKind is the closed taxonomy of non-finding path endings (spec.md 6,
// 7). A CT-violation is not a member of this enum: it is carried on
// PathResult.Violation instead, since spec.md 7 treats findings and fatal
// per-path errors as distinct outcomes.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrUnsat
	ErrLoopBoundExceeded
	ErrNullPointerDereference
	ErrFunctionNotFound
	ErrSolverError
	ErrUnsupportedInstruction
	ErrMalformedInstruction
	ErrUnreachableInstruction
	ErrFailedToResolveFunctionPointer
	ErrHookReturnValueMismatch
	ErrOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrUnsat:
		return "unsat"
	case ErrLoopBoundExceeded:
		return "loop-bound-exceeded"
	case ErrNullPointerDereference:
		return "null-pointer-dereference"
	case ErrFunctionNotFound:
		return "function-not-found"
	case ErrSolverError:
		return "solver-error"
	case ErrUnsupportedInstruction:
		return "unsupported-instruction"
	case ErrMalformedInstruction:
		return "malformed-instruction"
	case ErrUnreachableInstruction:
		return "unreachable-instruction"
	case ErrFailedToResolveFunctionPointer:
		return "failed-to-resolve-function-pointer"
	case ErrHookReturnValueMismatch:
		return "hook-return-value-mismatch"
	default:
		return "other"
	}
}

// PathError is a fatal per-path ending that is not itself a CT-violation
// finding (spec.md 7): the path stops, but analysis of sibling paths
// continues.
type PathError struct {
	Kind    ErrorKind
	Message string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Outcome classifies how one path ended.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomeViolation
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "CT"
	case OutcomeViolation:
		return "violation"
	default:
		return "error"
	}
}

// PathResult is the outcome of one explored path.
type PathResult struct {
	PathID    int
	Outcome   Outcome
	Violation *violation.CTViolation // set iff Outcome == OutcomeViolation
	Err       *PathError              // set iff Outcome == OutcomeError
	Elapsed   time.Duration
}

// Complete builds a successfully-completed path result.
func Complete(pathID int, elapsed time.Duration) PathResult {
	return PathResult{PathID: pathID, Outcome: OutcomeComplete, Elapsed: elapsed}
}

// Violating builds a path result ending in a CT-violation finding.
func Violating(pathID int, v *violation.CTViolation, elapsed time.Duration) PathResult {
	return PathResult{PathID: pathID, Outcome: OutcomeViolation, Violation: v, Elapsed: elapsed}
}

// Errored builds a path result ending in a fatal, non-finding error.
func Errored(pathID int, kind ErrorKind, message string, elapsed time.Duration) PathResult {
	return PathResult{PathID: pathID, Outcome: OutcomeError, Err: &PathError{Kind: kind, Message: message}, Elapsed: elapsed}
}

// PathStatistics tracks, per function-under-test, everything original_source's
// path_statistics.rs tracked (SPEC_FULL.md supplemented feature): total
// paths explored, a breakdown of paths ending in each error kind,
// violations found, and wall-clock time.
type PathStatistics struct {
	TotalPaths   int
	ByErrorKind  map[ErrorKind]int
	Violations   int
	WallClock    time.Duration
}

// NewPathStatistics returns a zeroed PathStatistics ready for accumulation.
func NewPathStatistics() *PathStatistics {
	return &PathStatistics{ByErrorKind: make(map[ErrorKind]int)}
}

// Record folds one PathResult into the running statistics.
func (s *PathStatistics) Record(r PathResult) {
	s.TotalPaths++
	s.WallClock += r.Elapsed
	switch r.Outcome {
	case OutcomeViolation:
		s.Violations++
	case OutcomeError:
		s.ByErrorKind[r.Err.Kind]++
	}
}

// FunctionResult is the caller-facing result of checking one function
// (spec.md 6): every path's outcome plus the derived statistics.
type FunctionResult struct {
	FunctionName string
	Paths        []PathResult
	Stats        *PathStatistics
}

// NewFunctionResult builds an empty result for functionName.
func NewFunctionResult(functionName string) *FunctionResult {
	return &FunctionResult{FunctionName: functionName, Stats: NewPathStatistics()}
}

// Add records one path's result.
func (fr *FunctionResult) Add(r PathResult) {
	fr.Paths = append(fr.Paths, r)
	fr.Stats.Record(r)
}

// HasViolations reports whether any path of this function ended in a
// CT-violation.
func (fr *FunctionResult) HasViolations() bool {
	return fr.Stats.Violations > 0
}

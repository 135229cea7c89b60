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

// Package engine wires every other package into one check invocation
// (spec.md 3 "Lifecycles", 6 "External interfaces"): it completes each
// parameter's abstract-data descriptor against the target function's IR
// signature, allocates and initializes memory for it, then hands a root
// path off to an Interpreter and a bounded-parallel Explorer to walk to
// completion, collecting a FunctionResult as it goes.
//
// Engine does not itself decode or execute IR instructions: the actual
// per-instruction symbolic-execution step (read an SSA instruction,
// interpret it against a PathState's memory and solver, fork on a branch
// whose condition is secret-independent, etc.) is supplied by the caller as
// an Interpreter. A from-scratch go/ssa bytecode interpreter is a
// substantial undertaking in its own right and is out of this module's
// scope (DESIGN.md records the decision); what Engine guarantees is
// everything around that step: setup, forking, statistics, progress
// reporting, and the keep-going policy.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/pitchfork/abstractdata"
	"github.com/rawblock/pitchfork/alloc"
	"github.com/rawblock/pitchfork/driver"
	"github.com/rawblock/pitchfork/hooks"
	"github.com/rawblock/pitchfork/ir"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/progress"
	"github.com/rawblock/pitchfork/report"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
)

// Invocation is the fixed, read-only context shared by every path explored
// during one Check call. It is handed to the caller's Interpreter so the
// interpreter can look up the function being analyzed, consult the hook
// registry, honor the configured bounds, and report coverage/progress
// without the engine needing to thread each of those through separately.
type Invocation struct {
	ID       uuid.UUID
	Module   ir.Module
	Function ir.Function
	// Args holds the already-allocated-and-initialized argument values, in
	// parameter order, that the root path starts executing with.
	Args     []tbv.TBV
	Hooks    *hooks.Registry
	Config   Config
	Progress *progress.UI
	Coverage *report.CoverageWriter
	Logger   *log.Logger

	nextPathID int64
	mu         sync.Mutex
}

// NextPathID hands out a fresh, unique path identifier for a newly forked
// PathState, so an Interpreter never has to invent its own numbering scheme.
func (inv *Invocation) NextPathID() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.nextPathID++
	return int(inv.nextPathID)
}

// Interpreter explores one path to either completion, a CT-violation, or a
// fatal per-path error, returning any successor paths it forked along the
// way (spec.md 5's "forking is the host engine's responsibility" names the
// fork mechanics Engine and driver.PathState.Fork supply; Interpreter
// supplies the reason to fork: a branch instruction whose Public condition
// can go either way; a non-Public condition is a Branch CT-violation).
type Interpreter func(ctx context.Context, inv *Invocation, p *driver.PathState) ([]*driver.PathState, report.PathResult)

// Engine is the stateless orchestrator; Config and the rest of a check's
// inputs are passed per call via CheckInput so one Engine can service many
// concurrent, independently-configured checks.
type Engine struct {
	logger *log.Logger
}

// New returns an Engine logging to logger (nil means discard, matching
// *log.Logger's own zero-value-unfriendliness: callers should pass
// log.New(io.Discard, "", 0) rather than a nil pointer in production code,
// but Check tolerates nil defensively since it is also exercised directly
// from tests).
func New(logger *log.Logger) *Engine {
	return &Engine{logger: logger}
}

// CheckInput bundles everything one Check call needs beyond the Engine
// itself: the IR module and target function name, one abstract-data
// descriptor per parameter (spec.md 3), the struct-description map used to
// complete any of them, the host allocator/name resolver, the hook
// registry, the Interpreter driving per-path symbolic execution, and where
// to send progress/coverage output.
type CheckInput struct {
	Module             ir.Module
	FunctionName       string
	Params             []abstractdata.AD
	StructDescriptions abstractdata.StructDescriptionMap
	// NewAllocator builds the Allocator used to initialize this check's
	// parameters. It is a factory, not a ready Allocator, because Check
	// mints its own solver.Handle internally (spec.md 5/6): an Allocator
	// must produce addresses on that exact handle, the same way
	// alloc.AllocateAndInit's own tests build their bump allocator around
	// a handle they already hold.
	NewAllocator func(h solver.Handle) alloc.Allocator
	Host         alloc.HostState
	Hooks        *hooks.Registry
	Interpret    Interpreter
	Progress     *progress.UI
	Coverage     *report.CoverageWriter
	Config       Config
}

// Check runs one check invocation end to end (spec.md 3, 6): it resolves
// the function, completes and allocates its parameters, then explores the
// resulting root path (and everything it forks into) via in.Interpret,
// honoring in.Config.KeepGoing, and returns the accumulated FunctionResult.
// A non-nil error means setup failed (unknown function, parameter-count
// mismatch, AD completion failure) before any path was explored; per-path
// failures during exploration are folded into the returned FunctionResult
// instead, per spec.md 7's "sibling paths keep going" guarantee; a path
// that ends in an error outcome shows up only there, not in the returned
// error.
func (e *Engine) Check(ctx context.Context, in CheckInput) (*report.FunctionResult, error) {
	fn, ok := in.Module.Function(in.FunctionName)
	if !ok {
		return nil, fmt.Errorf("engine: function %q not found in module", in.FunctionName)
	}
	paramTypes := fn.Params()
	if len(in.Params) != len(paramTypes) {
		return nil, fmt.Errorf("engine: function %q takes %d parameters, %d abstract-data descriptors supplied",
			in.FunctionName, len(paramTypes), len(in.Params))
	}

	h := solver.New()
	nullDetect := in.Config.NullPointerCheck == NullPointerCheckEnabled
	mem := memory.NewUninitialized(h, 64, 8, nullDetect, in.FunctionName, e.logger)
	allocator := in.NewAllocator(h)

	names := alloc.NewNameTable()
	parents := &alloc.ParentStack{}
	args := make([]tbv.TBV, len(paramTypes))
	for i, pt := range paramTypes {
		completed, err := abstractdata.Complete(in.Params[i], pt, in.StructDescriptions)
		if err != nil {
			return nil, fmt.Errorf("engine: completing parameter %d of %q: %w", i, in.FunctionName, err)
		}
		v, err := alloc.AllocateAndInit(h, mem, allocator, in.Host, names, parents, completed)
		if err != nil {
			return nil, fmt.Errorf("engine: allocating parameter %d of %q: %w", i, in.FunctionName, err)
		}
		args[i] = v
	}

	inv := &Invocation{
		ID:       uuid.New(),
		Module:   in.Module,
		Function: fn,
		Args:     args,
		Hooks:    in.Hooks,
		Config:   in.Config,
		Progress: in.Progress,
		Coverage: in.Coverage,
		Logger:   e.logger,
	}

	result := report.NewFunctionResult(in.FunctionName)
	var resultMu sync.Mutex
	var stopAll bool

	explorer := &driver.Explorer{MaxParallel: in.Config.MaxParallelPaths}
	root := &driver.PathState{ID: inv.NextPathID(), Solver: h, Mem: mem}

	run := func(ctx context.Context, p *driver.PathState) ([]*driver.PathState, error) {
		resultMu.Lock()
		if in.Config.KeepGoing == StopAtFirst && stopAll {
			resultMu.Unlock()
			return nil, nil
		}
		resultMu.Unlock()

		started := time.Now()
		succ, pr := in.Interpret(ctx, inv, p)
		if pr.Elapsed == 0 {
			pr.Elapsed = time.Since(started)
		}

		resultMu.Lock()
		result.Add(pr)
		resultMu.Unlock()

		if in.Progress != nil {
			in.Progress.ReportPath(progress.PathEvent{FunctionName: in.FunctionName, Result: pr})
		}

		if pr.Outcome != report.OutcomeViolation {
			return succ, nil
		}
		switch in.Config.KeepGoing {
		case StopAtFirst:
			resultMu.Lock()
			stopAll = true
			resultMu.Unlock()
			return nil, nil
		case StopPerPath:
			return nil, nil
		default: // Full
			return succ, nil
		}
	}

	errs := explorer.Run(ctx, []*driver.PathState{root}, run)
	if len(errs) > 0 {
		return result, fmt.Errorf("engine: %d path(s) of %q ended in error: %v", len(errs), in.FunctionName, errs[0])
	}
	return result, nil
}

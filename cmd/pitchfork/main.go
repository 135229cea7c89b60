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

// Command pitchfork is the standalone constant-time checker CLI (spec.md 6
// "External interfaces"): point it at a Go package and a function name (or
// a --prefix), and it reports, per path explored, whether that path stayed
// constant-time.
//
// Exit status is always 0 on a successful run, regardless of whether any
// violation was found (spec.md 6): violations are findings to read from the
// report, not process failures. A non-zero exit means pitchfork itself
// failed to run (bad flags, the package wouldn't load, an unknown function
// name).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/rawblock/pitchfork/abstractdata"
	"github.com/rawblock/pitchfork/alloc"
	"github.com/rawblock/pitchfork/cmd/pfflag"
	"github.com/rawblock/pitchfork/engine"
	"github.com/rawblock/pitchfork/hooks"
	"github.com/rawblock/pitchfork/ir"
	"github.com/rawblock/pitchfork/progress"
	"github.com/rawblock/pitchfork/report"
	"github.com/rawblock/pitchfork/solver"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("pitchfork", flag.ContinueOnError)
	fs.SetOutput(stderr)

	pkgPath := fs.String("package", "", "import path of the Go package to check")
	prefix := fs.String("prefix", "", "check every function whose name has this prefix, instead of naming one")
	listFunctions := fs.Bool("list-functions", false, "list every function in the package and exit")
	logPath := fs.String("log-file", "", "append diagnostic logging to this file instead of stderr")
	coveragePath := fs.String("coverage-file", "", "write a per-block hit-count coverage report to this file")

	loopBound := fs.Uint("loop-bound", engine.DefaultConfig().LoopBound, "maximum loop iterations before a path ends in error")
	maxCallStackDepth := fs.Uint("max-call-stack-depth", engine.DefaultConfig().MaxCallStackDepth, "maximum call-stack depth before a path ends in error")
	maxMemcpyLength := fs.Uint("max-memcpy-length", engine.DefaultConfig().MaxMemcpyLength, "maximum byte length a hook will model for a bulk copy")
	solverTimeout := fs.Duration("solver-timeout", engine.DefaultConfig().SolverTimeout, "per-query solver timeout")
	maxParallelPaths := fs.Int("max-parallel-paths", engine.DefaultConfig().MaxParallelPaths, "maximum number of paths explored concurrently")

	nullPointerCheck, err := pfflag.NewValidatedFlag(map[string]engine.NullPointerCheckPolicy{
		"enabled":  engine.NullPointerCheckEnabled,
		"disabled": engine.NullPointerCheckDisabled,
	}, []string{"enabled", "disabled"}, "enabled")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	fs.Var(nullPointerCheck, "null-pointer-check-policy", "enabled or disabled")

	keepGoing, err := pfflag.NewValidatedFlag(map[string]engine.KeepGoing{
		"stop-at-first": engine.StopAtFirst,
		"stop-per-path": engine.StopPerPath,
		"full":          engine.Full,
	}, []string{"stop-at-first", "stop-per-path", "full"}, "full")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	fs.Var(keepGoing, "keep-going", "stop-at-first, stop-per-path, or full")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	functionNames := fs.Args()

	if *pkgPath == "" {
		fmt.Fprintln(stderr, "pitchfork: -package is required")
		return 2
	}

	logOut := stderr
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "pitchfork: opening log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOut = f
	}
	logger := log.New(logOut, "pitchfork: ", log.LstdFlags)

	module, err := loadModule(*pkgPath)
	if err != nil {
		fmt.Fprintf(stderr, "pitchfork: loading %s: %v\n", *pkgPath, err)
		return 1
	}

	if *listFunctions {
		for _, fn := range module.Functions() {
			fmt.Fprintln(stdout, fn.Name())
		}
		return 0
	}

	var targets []ir.Function
	switch {
	case *prefix != "":
		targets = module.FunctionsWithPrefix(*prefix)
	case len(functionNames) > 0:
		for _, name := range functionNames {
			fn, ok := module.Function(name)
			if !ok {
				fmt.Fprintf(stderr, "pitchfork: function %q not found in %s\n", name, *pkgPath)
				return 1
			}
			targets = append(targets, fn)
		}
	default:
		fmt.Fprintln(stderr, "pitchfork: name one or more functions, or pass -prefix")
		return 2
	}

	cfg := engine.Config{
		LoopBound:         *loopBound,
		MaxCallStackDepth: *maxCallStackDepth,
		MaxMemcpyLength:   *maxMemcpyLength,
		SolverTimeout:     *solverTimeout,
		NullPointerCheck:  nullPointerCheck.Value(),
		KeepGoing:         keepGoing.Value(),
		MaxParallelPaths:  *maxParallelPaths,
	}

	ui := progress.New(stdout, 64)
	ui.Start(100 * time.Millisecond)
	coverage := report.NewCoverageWriter()

	e := engine.New(logger)
	anyViolations := false
	for _, fn := range targets {
		params := make([]abstractdata.AD, len(fn.Params()))
		for i := range params {
			params[i] = abstractdata.Unspecified()
		}
		result, err := e.Check(context.Background(), engine.CheckInput{
			Module:       module,
			FunctionName: fn.Name(),
			Params:       params,
			NewAllocator: newBumpAllocator,
			Host:         noHostState{},
			Hooks:        hooks.NewRegistry(),
			Interpret:    engine.TrivialInterpreter(),
			Progress:     ui,
			Coverage:     coverage,
			Config:       cfg,
		})
		if err != nil {
			ui.Log(fmt.Sprintf("%s: %v", fn.Name(), err))
			continue
		}
		if result.HasViolations() {
			anyViolations = true
		}
	}

	ui.Shutdown()
	ui.Wait()

	if *coveragePath != "" {
		f, err := os.Create(*coveragePath)
		if err != nil {
			fmt.Fprintf(stderr, "pitchfork: writing coverage file: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := coverage.WriteTo(f); err != nil {
			fmt.Fprintf(stderr, "pitchfork: writing coverage file: %v\n", err)
			return 1
		}
	}

	if anyViolations {
		fmt.Fprintln(stdout, "pitchfork: one or more paths were not constant-time")
	}
	return 0
}

// loadModule loads pkgPath's syntax, builds its go/ssa form, and wraps it as
// an ir.Module (spec.md 6 "the caller supplies ... an IR module").
func loadModule(pkgPath string) (*ir.SSAModule, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo |
			packages.NeedSyntax | packages.NeedImports | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pkgPath)
	if err != nil {
		return nil, err
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("package %s has type errors", pkgPath)
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()

	live := make([]*ssa.Package, 0, len(ssaPkgs))
	for _, p := range ssaPkgs {
		if p != nil {
			live = append(live, p)
		}
	}
	return ir.NewSSAModule(prog, live), nil
}

// bumpAllocator is the CLI's own Allocator (spec.md 6): a strictly
// increasing address counter, byte-aligned, with no reuse within one check,
// minting every address on the same solver.Handle the check itself uses.
type bumpAllocator struct {
	h    solver.Handle
	next uint64
}

func newBumpAllocator(h solver.Handle) alloc.Allocator {
	return &bumpAllocator{h: h, next: 0x1000}
}

func (a *bumpAllocator) Allocate(bits uint) (solver.BV, error) {
	base := a.next
	a.next += uint64((bits + 7) / 8)
	return a.h.FromUint64(64, base), nil
}

// noHostState is the CLI's HostState: no function or hook table is wired
// in by default, so any AD naming one by symbolic name fails allocation
// with a clear error rather than silently resolving to address zero.
type noHostState struct{}

func (noHostState) FunctionAddress(name string) (solver.BV, bool) { return nil, false }
func (noHostState) HookAddress(name string) (solver.BV, bool)     { return nil, false }

var _ alloc.Allocator = (*bumpAllocator)(nil)
var _ alloc.HostState = noHostState{}

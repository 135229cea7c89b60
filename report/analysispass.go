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

package report

import (
	"fmt"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ssa"

	"github.com/rawblock/pitchfork/ir"
)

// Checker is the engine-provided entry point analysispass drives: check
// one function of module, named functionName, returning its FunctionResult.
// Kept as a function type (not an import of package engine) to avoid a
// report<->engine import cycle; the caller adapts engine.Engine.Check to
// this shape (cmd/pitchfork does not build an analyzer).
type Checker func(module ir.Module, functionName string) (*FunctionResult, error)

// NewAnalyzer builds a go/analysis pass around checker: for every function
// in the package's SSA form whose name matches one of targetFuncs (or
// every function, if targetFuncs is empty), it runs checker and reports
// each CT-violation as an analysis.Diagnostic, so a go/analysis driver
// (such as a `go vet -vettool` binary) can run Pitchfork as a pass; this
// module ships no such driver binary (SPEC_FULL.md DOMAIN STACK:
// golang.org/x/tools/go/analysis + passes/buildssa + passes/inspect).
func NewAnalyzer(checker Checker, targetFuncs ...string) *analysis.Analyzer {
	want := make(map[string]bool, len(targetFuncs))
	for _, f := range targetFuncs {
		want[f] = true
	}

	return &analysis.Analyzer{
		Name:     "pitchfork",
		Doc:      "reports constant-time violations found by symbolic taint analysis",
		Requires: []*analysis.Analyzer{buildssa.Analyzer, inspect.Analyzer},
		Run: func(pass *analysis.Pass) (any, error) {
			ssaResult, ok := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
			if !ok || ssaResult == nil {
				return nil, fmt.Errorf("pitchfork: buildssa result unavailable")
			}
			module := ir.NewSSAModule(ssaProgram(ssaResult), []*ssa.Package{ssaResult.Pkg})

			for _, fn := range ssaResult.SrcFuncs {
				if fn == nil {
					continue
				}
				if len(want) > 0 && !want[fn.Name()] {
					continue
				}
				result, err := checker(module, fn.Name())
				if err != nil {
					pass.Reportf(fn.Pos(), "pitchfork: checking %s: %v", fn.Name(), err)
					continue
				}
				reportViolations(pass, fn, result)
			}
			return nil, nil
		},
	}
}

func reportViolations(pass *analysis.Pass, fn *ssa.Function, result *FunctionResult) {
	pos := fn.Pos()
	for _, p := range result.Paths {
		if p.Outcome != OutcomeViolation {
			continue
		}
		pass.Report(analysis.Diagnostic{
			Pos:     pos,
			Message: fmt.Sprintf("pitchfork: %s: %s", fn.Name(), p.Violation.Error()),
		})
	}
}

func ssaProgram(res *buildssa.SSA) *ssa.Program {
	if len(res.SrcFuncs) == 0 || res.SrcFuncs[0] == nil {
		return nil
	}
	return res.SrcFuncs[0].Prog
}

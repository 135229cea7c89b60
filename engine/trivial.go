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

package engine

import (
	"context"

	"github.com/rawblock/pitchfork/driver"
	"github.com/rawblock/pitchfork/hooks"
	"github.com/rawblock/pitchfork/report"
)

// TrivialInterpreter treats the whole function under test the same way the
// default-call disposition treats an unresolved call to it (spec.md 4.5):
// it classifies the already-allocated arguments against the function's own
// parameter types and reports the refusal as an errored path
// (report.ErrOther) if any of them transitively references secret memory or
// has a taint the classifier cannot determine, or completes (with an unconstrained return value,
// discarded here) otherwise.
//
// It never looks at the function's actual instructions, so it cannot find a
// CT-violation *inside* a function body — only decide whether the body is
// safe to skip entirely. It exists so cmd/pitchfork and the analysis pass
// have a real, wireable Interpreter out of the box; a deployment that wants
// to actually walk a function's IR supplies its own Interpreter built
// around hooks.Classify, memory.TaintMemory, and driver.PathState.Fork,
// which is exactly what the per-instruction step a from-scratch go/ssa
// interpreter would do (out of scope here, see DESIGN.md).
func TrivialInterpreter() Interpreter {
	return func(ctx context.Context, inv *Invocation, p *driver.PathState) ([]*driver.PathState, report.PathResult) {
		paramTypes := inv.Function.Params()
		_, err := hooks.Default(p.Solver, p.Mem, inv.Function.Name(), inv.Args, paramTypes, inv.Function.Return())
		if err != nil {
			return nil, report.Errored(p.ID, report.ErrOther, err.Error(), 0)
		}
		return nil, report.Complete(p.ID, 0)
	}
}

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

package driver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
)

// PathState is one symbolic-execution path's view of the world: its own
// solver handle and its own taint-tracking memory. The host engine is
// responsible for path exploration (spec.md 5); PathState is the unit it
// forks.
type PathState struct {
	ID     int
	Solver solver.Handle
	Mem    *memory.TaintMemory
}

// Fork clones p into two independent successors sharing no further mutable
// state: a duplicated solver handle (solver.Duplicate) and a cloned memory
// pair (memory.TaintMemory.Clone), the "cloning the solver handle and
// memory pair" spec.md 5 assigns to the host engine. ids are the new
// successors' path identifiers, in order.
func (p *PathState) Fork(idA, idB int) (a, b *PathState, err error) {
	ha, err := solver.Duplicate(p.Solver)
	if err != nil {
		return nil, nil, fmt.Errorf("driver: forking path %d: %w", p.ID, err)
	}
	hb, err := solver.Duplicate(p.Solver)
	if err != nil {
		return nil, nil, fmt.Errorf("driver: forking path %d: %w", p.ID, err)
	}

	memA := p.Mem.Clone()
	memA.ChangeSolver(ha)
	memB := p.Mem.Clone()
	memB.ChangeSolver(hb)

	return &PathState{ID: idA, Solver: ha, Mem: memA},
		&PathState{ID: idB, Solver: hb, Mem: memB},
		nil
}

// Explorer runs bounded-parallel path exploration: each entry in frontier
// is handed to run exactly once, and any newly forked PathStates run's
// closure returns are fed back into the frontier until none remain. maxPar
// caps how many run() calls are in flight at once, mirroring the reference
// driver forking paths with a bounded errgroup.Group.SetLimit (spec.md 5,
// 9 "forking... is the host engine's responsibility").
type Explorer struct {
	MaxParallel int
}

// Run drains frontier breadth-first, bounded by MaxParallel concurrent
// run() calls. run returns the successor PathStates produced by exploring
// one path (e.g. both branches of a fork) plus any error; a non-nil error
// is collected and does not stop sibling paths (each path's errors are
// independent, per spec.md 5's "no ordering is promised" across forks).
func (e *Explorer) Run(ctx context.Context, frontier []*PathState, run func(ctx context.Context, p *PathState) ([]*PathState, error)) []error {
	var errs []error
	for len(frontier) > 0 {
		batch := frontier
		frontier = nil

		g, gctx := errgroup.WithContext(ctx)
		if e.MaxParallel > 0 {
			g.SetLimit(e.MaxParallel)
		}

		results := make([][]*PathState, len(batch))
		batchErrs := make([]error, len(batch))
		for i, p := range batch {
			i, p := i, p
			g.Go(func() error {
				succ, err := run(gctx, p)
				results[i] = succ
				batchErrs[i] = err
				return nil // collect per-path errors rather than aborting the group
			})
		}
		_ = g.Wait()

		for i := range batch {
			if batchErrs[i] != nil {
				errs = append(errs, batchErrs[i])
			}
			frontier = append(frontier, results[i]...)
		}
	}
	return errs
}

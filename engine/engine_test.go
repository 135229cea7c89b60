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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawblock/pitchfork/abstractdata"
	"github.com/rawblock/pitchfork/alloc"
	"github.com/rawblock/pitchfork/driver"
	"github.com/rawblock/pitchfork/ir"
	"github.com/rawblock/pitchfork/report"
	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/violation"
)

// testType is a minimal hand-built ir.Type, the same stand-in
// abstractdata's own tests use in place of the go/ssa-backed concrete
// instance.
type testType struct {
	kind ir.Kind
	bits uint
}

func (t testType) Kind() ir.Kind      { return t.kind }
func (t testType) BitWidth() uint     { return t.bits }
func (t testType) ArrayLen() uint     { return 0 }
func (t testType) StructName() string { return "" }
func (t testType) Fields() []ir.Field { return nil }
func (t testType) Opaque() bool       { return false }
func (t testType) Elem() ir.Type      { return nil }

type testFunction struct {
	name    string
	params  []ir.Type
	ret     ir.Type
}

func (f testFunction) Name() string       { return f.name }
func (f testFunction) Params() []ir.Type  { return f.params }
func (f testFunction) Return() ir.Type    { return f.ret }
func (f testFunction) Signature() []ir.Type {
	return append(append([]ir.Type(nil), f.params...), f.ret)
}

type testModule struct {
	fns map[string]ir.Function
}

func (m testModule) Function(name string) (ir.Function, bool) { f, ok := m.fns[name]; return f, ok }
func (m testModule) FunctionsWithPrefix(prefix string) []ir.Function { return nil }
func (m testModule) Functions() []ir.Function {
	out := make([]ir.Function, 0, len(m.fns))
	for _, f := range m.fns {
		out = append(out, f)
	}
	return out
}
func (m testModule) ResolveStruct(name string) (ir.Type, bool) { return nil, false }

type testAllocator struct {
	h    solver.Handle
	next uint
}

func (a *testAllocator) Allocate(bits uint) (solver.BV, error) {
	base := a.next
	a.next += (bits + 7) / 8
	return a.h.FromUint64(64, uint64(base)), nil
}

func newTestAllocator(h solver.Handle) alloc.Allocator {
	return &testAllocator{h: h, next: 0x1000}
}

type testHostState struct{}

func (testHostState) FunctionAddress(name string) (solver.BV, bool) { return nil, false }
func (testHostState) HookAddress(name string) (solver.BV, bool)     { return nil, false }

func oneParamModule(bits uint) testModule {
	return testModule{fns: map[string]ir.Function{
		"f": testFunction{name: "f", params: []ir.Type{testType{kind: ir.KindInt, bits: bits}}, ret: nil},
	}}
}

func TestCheckCompletesOnSecretFreePath(t *testing.T) {
	t.Parallel()

	interp := func(ctx context.Context, inv *Invocation, p *driver.PathState) ([]*driver.PathState, report.PathResult) {
		return nil, report.Complete(p.ID, 0)
	}

	e := New(nil)
	result, err := e.Check(context.Background(), CheckInput{
		Module:       oneParamModule(32),
		FunctionName: "f",
		Params:       []abstractdata.AD{abstractdata.Unspecified()},
		NewAllocator: newTestAllocator,
		Host:         testHostState{},
		Interpret:    interp,
		Config:       DefaultConfig(),
	})
	require.NoError(t, err)
	require.Len(t, result.Paths, 1)
	require.False(t, result.HasViolations())
}

func TestCheckUnknownFunctionErrors(t *testing.T) {
	t.Parallel()

	e := New(nil)
	_, err := e.Check(context.Background(), CheckInput{
		Module:       oneParamModule(32),
		FunctionName: "does-not-exist",
		Params:       nil,
		NewAllocator: newTestAllocator,
		Host:         testHostState{},
		Interpret: func(ctx context.Context, inv *Invocation, p *driver.PathState) ([]*driver.PathState, report.PathResult) {
			return nil, report.Complete(p.ID, 0)
		},
		Config: DefaultConfig(),
	})
	require.Error(t, err)
}

func TestCheckStopAtFirstHaltsAllExploration(t *testing.T) {
	t.Parallel()

	// Every path forks into two children forever; StopAtFirst must still
	// terminate the moment the first violation is reported.
	interp := func(ctx context.Context, inv *Invocation, p *driver.PathState) ([]*driver.PathState, report.PathResult) {
		a, b, err := p.Fork(inv.NextPathID(), inv.NextPathID())
		require.NoError(t, err)
		return []*driver.PathState{a, b}, report.Violating(p.ID, violation.NewBranch("control flow depends on secret data"), 0)
	}

	cfg := DefaultConfig()
	cfg.KeepGoing = StopAtFirst

	e := New(nil)
	result, err := e.Check(context.Background(), CheckInput{
		Module:       oneParamModule(32),
		FunctionName: "f",
		Params:       []abstractdata.AD{abstractdata.Unspecified()},
		NewAllocator: newTestAllocator,
		Host:         testHostState{},
		Interpret:    interp,
		Config:       cfg,
	})
	require.NoError(t, err)
	require.Len(t, result.Paths, 1)
	require.True(t, result.HasViolations())
}

func TestCheckStopPerPathLetsSiblingsContinue(t *testing.T) {
	t.Parallel()

	// The root forks once into two children; the left child immediately
	// violates (and, under StopPerPath, stops there), the right completes.
	interp := func(ctx context.Context, inv *Invocation, p *driver.PathState) ([]*driver.PathState, report.PathResult) {
		if p.ID == 1 {
			a, b, err := p.Fork(inv.NextPathID(), inv.NextPathID())
			require.NoError(t, err)
			return []*driver.PathState{a, b}, report.Complete(p.ID, 0)
		}
		if p.ID == 2 {
			return nil, report.Violating(p.ID, violation.NewBranch("secret-dependent branch"), 0)
		}
		return nil, report.Complete(p.ID, 0)
	}

	cfg := DefaultConfig()
	cfg.KeepGoing = StopPerPath

	e := New(nil)
	result, err := e.Check(context.Background(), CheckInput{
		Module:       oneParamModule(32),
		FunctionName: "f",
		Params:       []abstractdata.AD{abstractdata.Unspecified()},
		NewAllocator: newTestAllocator,
		Host:         testHostState{},
		Interpret:    interp,
		Config:       cfg,
	})
	require.NoError(t, err)
	require.Len(t, result.Paths, 3)
	require.Equal(t, 1, result.Stats.Violations)
}

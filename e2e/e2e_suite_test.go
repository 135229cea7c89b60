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

// Package e2e drives the core packages (solver, tbv, memory, abstractdata,
// alloc) directly to reproduce the six canonical scenarios: no
// go/ssa interpreter is built in this module (engine.TrivialInterpreter and
// DESIGN.md record that scope decision), so each scenario hand-assembles
// the small program's data flow the way an Interpreter would drive it
// instruction by instruction, and asserts the same constant-time verdict a
// full interpreter would reach.
package e2e

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "end-to-end constant-time scenarios")
}

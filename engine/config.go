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

import "time"

// NullPointerCheckPolicy is the null-pointer-check setting Check records on
// each path's memory (memory.TaintMemory.NullDetect). The hooks package's
// pointer classification (spec.md 4.5) does not consult it, and neither do
// memory reads and writes.
type NullPointerCheckPolicy int

const (
	NullPointerCheckDisabled NullPointerCheckPolicy = iota
	NullPointerCheckEnabled
)

// KeepGoing resolves spec.md's open question on how far one Check call
// keeps exploring once it finds a CT-violation, as three genuinely distinct
// policies rather than a single flag (SPEC_FULL.md open-question
// resolution):
type KeepGoing int

const (
	// StopAtFirst ends the whole Check call the moment any path reports a
	// violation: no further paths are explored, forked or not.
	StopAtFirst KeepGoing = iota
	// StopPerPath ends exploration of the violating path only; every other
	// path already forked or still queued keeps running to its own
	// completion, violation, or error.
	StopPerPath
	// Full ignores violations for exploration purposes: a violating path's
	// successors, if any, still get forked and explored. Useful for
	// counting every violation reachable from a function rather than just
	// the first one per path.
	Full
)

func (k KeepGoing) String() string {
	switch k {
	case StopAtFirst:
		return "stop-at-first"
	case StopPerPath:
		return "stop-per-path"
	default:
		return "full"
	}
}

// Config bundles every knob spec.md 6 names as the host engine's
// responsibility: loop and call-stack bounds, the memcpy length a hook may
// model without refusing, a solver timeout, the null-pointer-check policy,
// how many violations to keep looking for, and how many paths to explore
// concurrently.
type Config struct {
	LoopBound         uint
	MaxCallStackDepth uint
	MaxMemcpyLength   uint
	SolverTimeout     time.Duration
	NullPointerCheck  NullPointerCheckPolicy
	KeepGoing         KeepGoing
	MaxParallelPaths  int
}

// DefaultConfig returns the configuration a bare `pitchfork` invocation
// uses absent any flags: generous but finite bounds, null-pointer checking
// on, and full exploration.
func DefaultConfig() Config {
	return Config{
		LoopBound:         1024,
		MaxCallStackDepth: 256,
		MaxMemcpyLength:   1 << 20,
		SolverTimeout:     30 * time.Second,
		NullPointerCheck:  NullPointerCheckEnabled,
		KeepGoing:         Full,
		MaxParallelPaths:  8,
	}
}

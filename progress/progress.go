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

// Package progress implements the bundled CLI progress UI spec.md 5 and 9
// describe abstractly: a dedicated updater goroutine reading two bounded
// channels (path results / progress updates, and log lines), coalescing
// bursts of each before redrawing, shut down by a single signal channel
// before Wait (matching original_source's progress.rs "shutdown then
// join" sequence, SPEC_FULL.md supplemented feature). The core itself
// never imports this package; spec.md 1 names the progress UI as excluded
// from the core.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/gookit/color"

	"github.com/rawblock/pitchfork/report"
)

// PathEvent is one path finishing, reported as it happens.
type PathEvent struct {
	FunctionName string
	Result       report.PathResult
}

// LogEvent is one free-text diagnostic line, mirroring what the engine's
// *log.Logger would otherwise write directly to stderr.
type LogEvent struct {
	Line string
}

// UI is the coalescing updater: producers send on Paths/Logs, a single
// goroutine started by Start drains both, coalesces consecutive bursts,
// and renders them to Out. Shutdown then Wait is the only teardown
// sequence; calling either out of order is a programming error.
type UI struct {
	Out io.Writer

	paths chan PathEvent
	logs  chan LogEvent
	done  chan struct{}
	shut  chan struct{}
}

// New builds a UI with bounded channels of the given capacity (spec.md 9
// "a dedicated updater worker and a bounded message queue").
func New(out io.Writer, capacity int) *UI {
	return &UI{
		Out:   out,
		paths: make(chan PathEvent, capacity),
		logs:  make(chan LogEvent, capacity),
		done:  make(chan struct{}),
		shut:  make(chan struct{}),
	}
}

// ReportPath enqueues a path event. Safe to call from multiple goroutines
// exploring sibling paths concurrently.
func (u *UI) ReportPath(ev PathEvent) {
	select {
	case u.paths <- ev:
	case <-u.shut:
	}
}

// Log enqueues a log line.
func (u *UI) Log(line string) {
	select {
	case u.logs <- LogEvent{Line: line}:
	case <-u.shut:
	}
}

// Start launches the updater goroutine. coalesceWindow bounds how long the
// updater waits to batch consecutive events of the same kind before
// redrawing, to bound redraw cost under a burst (spec.md 9).
func (u *UI) Start(coalesceWindow time.Duration) {
	go u.run(coalesceWindow)
}

func (u *UI) run(coalesceWindow time.Duration) {
	defer close(u.done)

	var pendingPaths []PathEvent
	var pendingLogs []LogEvent
	ticker := time.NewTicker(coalesceWindow)
	defer ticker.Stop()

	flush := func() {
		for _, ev := range pendingPaths {
			u.renderPath(ev)
		}
		pendingPaths = nil
		for _, ev := range pendingLogs {
			fmt.Fprintln(u.Out, ev.Line)
		}
		pendingLogs = nil
	}

	for {
		select {
		case ev := <-u.paths:
			pendingPaths = append(pendingPaths, ev)
		case ev := <-u.logs:
			pendingLogs = append(pendingLogs, ev)
		case <-ticker.C:
			flush()
		case <-u.shut:
			// Drain whatever is already queued before exiting, same as
			// original_source's progress.rs draining its channels once on
			// shutdown rather than discarding in-flight events.
			for {
				select {
				case ev := <-u.paths:
					pendingPaths = append(pendingPaths, ev)
					continue
				case ev := <-u.logs:
					pendingLogs = append(pendingLogs, ev)
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}

func (u *UI) renderPath(ev PathEvent) {
	line := fmt.Sprintf("%s [path %d] %s", ev.FunctionName, ev.Result.PathID, ev.Result.Outcome)
	switch ev.Result.Outcome {
	case report.OutcomeComplete:
		fmt.Fprintln(u.Out, color.FgGreen.Sprint(line))
	case report.OutcomeViolation:
		fmt.Fprintln(u.Out, color.FgRed.Sprint(line+": "+ev.Result.Violation.Error()))
	default:
		fmt.Fprintln(u.Out, color.FgYellow.Sprint(line+": "+ev.Result.Err.Error()))
	}
}

// Shutdown signals the updater to drain and stop, then Wait blocks until
// it has. Calling Shutdown more than once panics, the same contract a
// single-use close(chan) gives.
func (u *UI) Shutdown() {
	close(u.shut)
}

// Wait blocks until the updater goroutine has drained and exited.
func (u *UI) Wait() {
	<-u.done
}

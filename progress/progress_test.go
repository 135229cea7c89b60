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

package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rawblock/pitchfork/report"
)

func TestUICoalescesAndDrainsOnShutdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ui := New(&buf, 16)
	ui.Start(5 * time.Millisecond)

	for i := 0; i < 5; i++ {
		ui.ReportPath(PathEvent{FunctionName: "f", Result: report.Complete(i, time.Microsecond)})
	}
	ui.Log("hello")

	ui.Shutdown()
	ui.Wait()

	out := buf.String()
	if strings.Count(out, "path") != 5 {
		t.Fatalf("expected 5 path lines, got output: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected log line to be flushed, got: %q", out)
	}
}

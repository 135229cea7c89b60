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

package memory

import (
	"testing"

	"github.com/rawblock/pitchfork/solver"
	"github.com/rawblock/pitchfork/tbv"
)

func TestWriteThenReadPreservesSecrecyProfile(t *testing.T) {
	t.Parallel()
	h := solver.New()
	m := NewUninitialized(h, 64, 8, false, "mem", nil)
	addr := tbv.FromInt(h, 64, 0x1000)

	t.Run("public", func(t *testing.T) {
		v := tbv.FromInt(h, 32, 0xdeadbeef)
		if err := m.Write(addr, v); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := m.Read(addr, 32)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !got.IsPublic() {
			t.Fatalf("expected Public read-back, got %s", got.Kind())
		}
		val, _ := tbv.AsUint64(got)
		if val != 0xdeadbeef {
			t.Fatalf("got %x want %x", val, 0xdeadbeef)
		}
	})

	t.Run("secret", func(t *testing.T) {
		v := tbv.NewSecret(h, 32, "")
		if err := m.Write(addr, v); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := m.Read(addr, 32)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got.Kind() != tbv.KindSecret {
			t.Fatalf("expected Secret read-back, got %s", got.Kind())
		}
	})
}

func TestReadingNeverWrittenAddressIsPublic(t *testing.T) {
	t.Parallel()
	h := solver.New()
	m := NewUninitialized(h, 64, 8, false, "mem", nil)
	addr := tbv.FromInt(h, 64, 0xabc)

	got, err := m.Read(addr, 32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.IsPublic() {
		t.Fatalf("expected Public for a never-written address, got %s", got.Kind())
	}
}

func TestSecretIndexViolates(t *testing.T) {
	t.Parallel()
	h := solver.New()
	m := NewUninitialized(h, 64, 8, false, "mem", nil)
	secretIdx := tbv.NewSecret(h, 64, "")

	if _, err := m.Read(secretIdx, 32); err == nil {
		t.Fatalf("expected CT-violation reading at a secret address")
	}
	if err := m.Write(secretIdx, tbv.FromInt(h, 32, 1)); err == nil {
		t.Fatalf("expected CT-violation writing to a secret address")
	}
}

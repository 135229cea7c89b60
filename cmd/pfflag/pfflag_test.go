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

package pfflag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatedFlagDefaultsAndSets(t *testing.T) {
	t.Parallel()

	choices := map[string]int{"a": 1, "b": 2}
	f, err := NewValidatedFlag(choices, []string{"a", "b"}, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Value())
	assert.Equal(t, "a", f.String())

	require.NoError(t, f.Set("b"))
	assert.Equal(t, 2, f.Value())
	assert.Equal(t, "b", f.String())

	err = f.Set("nonsense")
	assert.Error(t, err)
	assert.Equal(t, 2, f.Value(), "a rejected Set must not change the held value")
}

func TestNewValidatedFlagRejectsUnknownDefault(t *testing.T) {
	t.Parallel()

	_, err := NewValidatedFlag(map[string]int{"a": 1}, []string{"a"}, "z")
	assert.Error(t, err)
}

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

// Package pfflag implements flag.Value for cmd/pitchfork's enum-valued
// flags (--null-pointer-check-policy, --keep-going): a string flag that
// only accepts one of a fixed set of spellings and reports the set in its
// own error message, rather than falling back to flag's bare "invalid
// value" on a typo.
package pfflag

import "fmt"

// ValidatedFlag is a flag.Value over a closed set of string spellings, each
// mapped to an arbitrary value of type T by the caller.
type ValidatedFlag[T any] struct {
	value   T
	current string
	choices map[string]T
	order   []string
}

// NewValidatedFlag builds a ValidatedFlag defaulting to defaultName, which
// must be a key of choices.
func NewValidatedFlag[T any](choices map[string]T, order []string, defaultName string) (*ValidatedFlag[T], error) {
	v, ok := choices[defaultName]
	if !ok {
		return nil, fmt.Errorf("pfflag: default %q is not among the valid choices", defaultName)
	}
	return &ValidatedFlag[T]{value: v, current: defaultName, choices: choices, order: order}, nil
}

// String implements flag.Value.
func (f *ValidatedFlag[T]) String() string {
	if f == nil {
		return ""
	}
	return f.current
}

// Set implements flag.Value: s must be one of the registered spellings.
func (f *ValidatedFlag[T]) Set(s string) error {
	v, ok := f.choices[s]
	if !ok {
		return fmt.Errorf("must be one of %v, got %q", f.order, s)
	}
	f.value = v
	f.current = s
	return nil
}

// Value returns the currently-selected value.
func (f *ValidatedFlag[T]) Value() T {
	return f.value
}

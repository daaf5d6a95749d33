/*
   Copyright 2026 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package bt

import (
	"errors"
	"testing"
)

func TestBlackboard_roundTrip(t *testing.T) {
	bb := NewBlackboard(nil, nil, nil)
	if err := Set(bb, `count`, 7); err != nil {
		t.Fatal(err)
	}
	got, ok, err := Get[int](bb, `count`)
	if err != nil || !ok || got != 7 {
		t.Fatalf(`got %v, %v, %v`, got, ok, err)
	}
}

func TestBlackboard_missingKey(t *testing.T) {
	bb := NewBlackboard(nil, nil, nil)
	_, ok, err := Get[int](bb, `missing`)
	if err != nil || ok {
		t.Fatalf(`got ok=%v err=%v, want ok=false err=nil`, ok, err)
	}
}

func TestBlackboard_typeMismatch(t *testing.T) {
	bb := NewBlackboard(nil, nil, nil)
	if err := Set(bb, `x`, 1); err != nil {
		t.Fatal(err)
	}
	if err := Set(bb, `x`, `oops`); err == nil {
		t.Fatal(`expected a type mismatch error`)
	} else {
		var mismatch *TypeMismatch
		if !errors.As(err, &mismatch) {
			t.Fatalf(`got %v, want a wrapped *TypeMismatch`, err)
		}
	}
}

func TestBlackboard_subtreeRemap(t *testing.T) {
	parent := NewBlackboard(nil, nil, nil)
	if err := Set(parent, `outer`, `hello`); err != nil {
		t.Fatal(err)
	}

	child := NewBlackboard(parent, map[string]RemapMode{`inner`: RemapRemapped}, map[string]string{`inner`: `outer`})
	got, ok, err := Get[string](child, `inner`)
	if err != nil || !ok || got != `hello` {
		t.Fatalf(`got %v, %v, %v`, got, ok, err)
	}

	if err := Set(child, `inner`, `world`); err != nil {
		t.Fatal(err)
	}
	got, ok, err = Get[string](parent, `outer`)
	if err != nil || !ok || got != `world` {
		t.Fatalf(`remapped write did not propagate to parent: got %v, %v, %v`, got, ok, err)
	}
}

func TestBlackboard_privateKeyIsolation(t *testing.T) {
	parent := NewBlackboard(nil, nil, nil)
	child := NewBlackboard(parent, map[string]RemapMode{`_local`: RemapRemapped}, map[string]string{`_local`: `outer`})

	if err := Set(child, `_local`, 1); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := Get[int](parent, `outer`); ok {
		t.Fatal(`a "_"-prefixed key must never resolve past its own scope, even with a remap entry present`)
	}
}

func TestBlackboard_entryInfo(t *testing.T) {
	bb := NewBlackboard(nil, nil, nil)
	if _, ok := bb.EntryInfo(`x`); ok {
		t.Fatal(`expected ok=false for an unset key`)
	}
	if err := Set(bb, `x`, 1); err != nil {
		t.Fatal(err)
	}
	if err := Set(bb, `x`, 2); err != nil {
		t.Fatal(err)
	}
	info, ok := bb.EntryInfo(`x`)
	if !ok || info.Sequence != 2 {
		t.Fatalf(`got %+v, %v`, info, ok)
	}
}

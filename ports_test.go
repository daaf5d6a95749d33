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

import "testing"

func TestReconcilePorts_defaultsAndRejection(t *testing.T) {
	ports := PortsList{
		{Name: `speed`, Direction: PortInputDirection, HasDefault: true, Default: `1`},
		{Name: `target`, Direction: PortInputDirection},
	}

	if _, err := ReconcilePorts(ports, map[string]string{`speed`: `2`}, false); err == nil {
		t.Fatal(`expected an error for a missing required input port`)
	}

	effective, err := ReconcilePorts(ports, map[string]string{`target`: `{goal}`}, false)
	if err != nil {
		t.Fatal(err)
	}
	if effective[`speed`] != `1` {
		t.Fatalf(`default not applied: %+v`, effective)
	}
	if effective[`target`] != `{goal}` {
		t.Fatalf(`got %+v`, effective)
	}

	if _, err := ReconcilePorts(ports, map[string]string{`target`: `x`, `bogus`: `y`}, false); err == nil {
		t.Fatal(`expected an error for an unknown port`)
	}
	if _, err := ReconcilePorts(ports, map[string]string{`target`: `x`, `bogus`: `y`}, true); err != nil {
		t.Fatalf(`allowUnknownPorts should suppress the unknown-port error, got %v`, err)
	}
}

func TestGetInput_literalAndReference(t *testing.T) {
	bb := NewBlackboard(nil, nil, nil)
	if err := Set(bb, `goal`, 42); err != nil {
		t.Fatal(err)
	}
	cfg := &NodeConfig{Blackboard: bb, Ports: map[string]string{
		`target`: `{goal}`,
		`label`:  `north`,
	}}

	target, ok, err := GetInput[int](cfg, `target`)
	if err != nil || !ok || target != 42 {
		t.Fatalf(`got %v, %v, %v`, target, ok, err)
	}
	label, ok, err := GetInput[string](cfg, `label`)
	if err != nil || !ok || label != `north` {
		t.Fatalf(`got %v, %v, %v`, label, ok, err)
	}
	if _, ok, err := GetInput[int](cfg, `missing`); ok || err != nil {
		t.Fatalf(`got ok=%v err=%v, want ok=false err=nil`, ok, err)
	}
}

func TestSetOutput_requiresBlackboardBinding(t *testing.T) {
	bb := NewBlackboard(nil, nil, nil)
	cfg := &NodeConfig{Blackboard: bb, Ports: map[string]string{
		`result`:  `{out}`,
		`literal`: `unbound`,
	}}

	if err := SetOutput(cfg, `result`, 7); err != nil {
		t.Fatal(err)
	}
	got, ok, err := Get[int](bb, `out`)
	if err != nil || !ok || got != 7 {
		t.Fatalf(`got %v, %v, %v`, got, ok, err)
	}

	if err := SetOutput(cfg, `literal`, 1); err == nil {
		t.Fatal(`expected a LogicError for an output port not bound to the blackboard`)
	}
	if err := SetOutput(cfg, `absent`, 1); err == nil {
		t.Fatal(`expected a LogicError for an unconfigured port`)
	}
}

func TestRegisterStringConverter(t *testing.T) {
	type point struct{ X, Y int }
	RegisterStringConverter(func(s string) (point, error) { return point{X: len(s)}, nil })

	bb := NewBlackboard(nil, nil, nil)
	cfg := &NodeConfig{Blackboard: bb, Ports: map[string]string{`p`: `abc`}}
	got, ok, err := GetInput[point](cfg, `p`)
	if err != nil || !ok || got.X != 3 {
		t.Fatalf(`got %+v, %v, %v`, got, ok, err)
	}
}

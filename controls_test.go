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

// countingAction returns Running for the first runningFor ticks, then status.
type countingAction struct {
	*Leaf
	ticks int
}

func newCountingAction(runningFor int, final Status) *countingAction {
	c := &countingAction{}
	c.Leaf = NewSyncAction(``, nil, func() (Status, error) {
		c.ticks++
		if c.ticks <= runningFor {
			return Running, nil
		}
		return final, nil
	})
	return c
}

func TestSequence_shortCircuitsOnFailure(t *testing.T) {
	a := constAction(Success)
	b := constAction(Failure)
	c := constAction(Success)
	seq := NewSequence(``, nil, a, b, c)

	status, err := seq.ExecuteTick()
	if err != nil || status != Failure {
		t.Fatalf(`got %v, %v`, status, err)
	}
	if c.Status() != Idle {
		t.Fatalf(`child after the failing one should never have been ticked, got status %v`, c.Status())
	}
}

func TestSequence_allSuccess(t *testing.T) {
	seq := NewSequence(``, nil, constAction(Success), constAction(Success))
	if status, err := seq.ExecuteTick(); err != nil || status != Success {
		t.Fatalf(`got %v, %v`, status, err)
	}
}

func TestReactiveSequence_propagatesLaterChildRunningThenFailure(t *testing.T) {
	first := newCountingAction(0, Success)
	second := &countingAction{}
	second.Leaf = NewSyncAction(``, nil, func() (Status, error) {
		second.ticks++
		if second.ticks == 1 {
			return Running, nil
		}
		return Failure, nil
	})
	seq := NewReactiveSequence(``, nil, first.Leaf, second.Leaf)

	if status, _ := seq.ExecuteTick(); status != Running {
		t.Fatalf(`first tick: got %v, want Running (second child still running)`, status)
	}
	if status, _ := seq.ExecuteTick(); status != Failure {
		t.Fatalf(`second tick: got %v, want Failure`, status)
	}
	_ = first
}

func TestFallback_succeedsOnFirstSuccess(t *testing.T) {
	fb := NewFallback(``, nil, constAction(Failure), constAction(Success), constAction(Success))
	if status, err := fb.ExecuteTick(); err != nil || status != Success {
		t.Fatalf(`got %v, %v`, status, err)
	}
}

func TestSequenceWithMemory_resumesFromRunningChild(t *testing.T) {
	a := newCountingAction(0, Success)
	b := newCountingAction(1, Success)
	seq := NewSequenceWithMemory(``, nil, a.Leaf, b.Leaf)

	if status, _ := seq.ExecuteTick(); status != Running {
		t.Fatalf(`first tick: got %v, want Running`, status)
	}
	if a.ticks != 1 {
		t.Fatalf(`a should have ticked exactly once so far, got %d`, a.ticks)
	}
	if status, _ := seq.ExecuteTick(); status != Success {
		t.Fatalf(`second tick: got %v, want Success`, status)
	}
	if a.ticks != 1 {
		t.Fatalf(`a already succeeded; memory should prevent re-ticking it, got %d ticks`, a.ticks)
	}
}

func TestSequenceWithMemory_resetsIndexOnFailure(t *testing.T) {
	calls := 0
	a := NewSyncAction(``, nil, func() (Status, error) { calls++; return Success, nil })
	b := constAction(Failure)
	seq := NewSequenceWithMemory(``, nil, a, b)

	if status, _ := seq.ExecuteTick(); status != Failure {
		t.Fatalf(`got %v, want Failure`, status)
	}
	if status, _ := seq.ExecuteTick(); status != Failure {
		t.Fatalf(`got %v, want Failure`, status)
	}
	if calls != 2 {
		t.Fatalf(`index should reset to 0 on Failure, re-ticking a: got %d calls, want 2`, calls)
	}
}

func TestFallbackWithMemory_resumesFromRunningChild(t *testing.T) {
	a := newCountingAction(0, Failure)
	b := newCountingAction(1, Success)
	fb := NewFallbackWithMemory(``, nil, a.Leaf, b.Leaf)

	if status, _ := fb.ExecuteTick(); status != Running {
		t.Fatalf(`first tick: got %v, want Running`, status)
	}
	if status, _ := fb.ExecuteTick(); status != Success {
		t.Fatalf(`second tick: got %v, want Success`, status)
	}
	if a.ticks != 1 {
		t.Fatalf(`a already failed; memory should prevent re-ticking it, got %d ticks`, a.ticks)
	}
}

func TestParallel_successThreshold(t *testing.T) {
	a := constAction(Success)
	b := newCountingAction(1, Success)
	c := newCountingAction(5, Success)
	p := NewParallel(``, nil, 2, 3, a, b.Leaf, c.Leaf)

	status, err := p.ExecuteTick()
	if err != nil || status != Running {
		t.Fatalf(`first tick: got %v, %v`, status, err)
	}
	if status, _ := p.ExecuteTick(); status != Success {
		t.Fatalf(`second tick: got %v, want Success once 2 children have succeeded`, status)
	}
	if c.Leaf.Status() != Idle {
		t.Fatalf(`the still-running third child should have been halted once the threshold settled, got %v`, c.Leaf.Status())
	}
}

func TestParallel_failureThreshold(t *testing.T) {
	p := NewParallel(``, nil, 3, 1, constAction(Success), constAction(Failure), constAction(Running))
	status, err := p.ExecuteTick()
	if err != nil || status != Failure {
		t.Fatalf(`got %v, %v`, status, err)
	}
}

func TestParallel_doesNotReTickCompletedChildren(t *testing.T) {
	calls := 0
	immediate := NewSyncAction(``, nil, func() (Status, error) { calls++; return Success, nil })
	slow := newCountingAction(2, Success)
	p := NewParallel(``, nil, 2, 1, immediate, slow.Leaf)

	for i := 0; i < 2; i++ {
		p.ExecuteTick()
	}
	if calls != 1 {
		t.Fatalf(`a child already terminal from a previous sweep must not be re-ticked, got %d calls`, calls)
	}
}

func TestIfThenElse(t *testing.T) {
	then := constAction(Success)
	els := constAction(Failure)

	ite, err := NewIfThenElse(``, nil, constAction(Success), then, els)
	if err != nil {
		t.Fatal(err)
	}
	if status, err := ite.ExecuteTick(); err != nil || status != Success {
		t.Fatalf(`got %v, %v`, status, err)
	}
	if els.Status() != Idle {
		t.Fatalf(`the untaken else branch should never have ticked, got %v`, els.Status())
	}
}

func TestIfThenElse_requiresThreeChildren(t *testing.T) {
	if _, err := NewIfThenElse(``, nil, nil, constAction(Success), constAction(Failure)); err == nil {
		t.Fatal(`expected a LogicError when a child is nil`)
	}
}

func TestIfThenElse_latchesBranchWithoutReevaluatingCondition(t *testing.T) {
	condTicks := 0
	condition := NewCondition(``, nil, func() (Status, error) {
		condTicks++
		return Success, nil
	})
	then := newCountingAction(2, Success)
	els := constAction(Failure)

	ite, err := NewIfThenElse(``, nil, condition, then.Leaf, els)
	if err != nil {
		t.Fatal(err)
	}
	if status, _ := ite.ExecuteTick(); status != Running {
		t.Fatalf(`first tick: got %v, want Running (then is still running)`, status)
	}
	if condTicks != 1 {
		t.Fatalf(`condition should have ticked exactly once to commit the branch, got %d`, condTicks)
	}
	if status, _ := ite.ExecuteTick(); status != Running {
		t.Fatalf(`second tick: got %v, want Running`, status)
	}
	if condTicks != 1 {
		t.Fatalf(`condition must not be re-ticked while the committed branch is Running, got %d ticks`, condTicks)
	}
	if status, _ := ite.ExecuteTick(); status != Success {
		t.Fatalf(`third tick: got %v, want Success`, status)
	}
	if condTicks != 1 {
		t.Fatalf(`condition must not be re-ticked after the branch commits, got %d ticks`, condTicks)
	}
}

func TestWhileDoElse_reevaluatesConditionEveryTick(t *testing.T) {
	condTicks := 0
	condition := NewCondition(``, nil, func() (Status, error) {
		condTicks++
		if condTicks == 1 {
			return Success, nil
		}
		return Failure, nil
	})
	do := newCountingAction(5, Success)
	els := constAction(Success)

	wde, err := NewWhileDoElse(``, nil, condition, do.Leaf, els)
	if err != nil {
		t.Fatal(err)
	}
	if status, _ := wde.ExecuteTick(); status != Running {
		t.Fatalf(`first tick: got %v, want Running (do is still running)`, status)
	}
	if status, _ := wde.ExecuteTick(); status != Success {
		t.Fatalf(`second tick: got %v, want Success (condition flipped, else ticked)`, status)
	}
	if do.Leaf.Status() != Idle {
		t.Fatalf(`do should have been halted once the condition flipped to Failure, got %v`, do.Leaf.Status())
	}
}

func TestHaltAllExcept(t *testing.T) {
	a := NewSyncAction(``, nil, func() (Status, error) { return Running, nil })
	b := NewSyncAction(``, nil, func() (Status, error) { return Running, nil })
	a.ExecuteTick()
	b.ExecuteTick()

	if err := haltAllExcept([]Node{a, b}, 1); err != nil {
		t.Fatal(err)
	}
	if a.Status() != Idle {
		t.Fatalf(`a should have been halted, got %v`, a.Status())
	}
	if b.Status() != Running {
		t.Fatalf(`b is the exempted index and should not have been halted, got %v`, b.Status())
	}
}

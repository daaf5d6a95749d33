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

import "fmt"

type (
	// Control is a ControlNode: it owns an ordered set of children and
	// combines their statuses according to its kind.
	Control struct {
		base
		children []Node
		kind     controlKind
	}

	controlKind interface {
		tick(children []Node) (Status, error)
		halt(children []Node) error
	}
)

func newControl(name, regID string, cfg *NodeConfig, children []Node, kind controlKind) *Control {
	return &Control{base: newBase(name, regID, cfg), children: children, kind: kind}
}

func (c *Control) Children() []Node { return c.children }
func (c *Control) ExecuteTick() (Status, error) {
	return c.executeTick(func() (Status, error) { return c.kind.tick(c.children) })
}
func (c *Control) Halt() error {
	return c.haltSelf(func() error { return c.kind.halt(c.children) })
}

// haltAllExcept halts every child except the one at index except (pass -1
// to halt them all): when a composite returns a terminal status, it halts
// all children except the one that produced the decisive terminal status.
func haltAllExcept(children []Node, except int) error {
	var errs []error
	for i, c := range children {
		if i == except {
			continue
		}
		if err := haltChild(c); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs...)
}

// --- Sequence / ReactiveSequence ------------------------------------------

type sequenceKind struct{}

// NewSequence builds a reactive Sequence: the child index resets every
// tick; Running is returned on the first Running child; Success only when
// all children succeed; any Failure halts every other child and returns
// Failure.
func NewSequence(name string, cfg *NodeConfig, children ...Node) *Control {
	return newControl(name, `Sequence`, cfg, children, sequenceKind{})
}

// NewReactiveSequence is a Sequence by another name: the non-memory
// Sequence already re-evaluates every preceding child each tick and halts
// a subsequent Running child when an earlier one flips, so
// ReactiveSequence shares its implementation with Sequence.
func NewReactiveSequence(name string, cfg *NodeConfig, children ...Node) *Control {
	return newControl(name, `ReactiveSequence`, cfg, children, sequenceKind{})
}

func (sequenceKind) tick(children []Node) (Status, error) {
	for i, c := range children {
		status, err := c.ExecuteTick()
		if status != Success {
			_ = haltAllExcept(children, i)
			return status, err
		}
	}
	if len(children) > 0 {
		_ = haltAllExcept(children, len(children)-1)
	}
	return Success, nil
}
func (sequenceKind) halt(children []Node) error { return haltAllExcept(children, -1) }

// --- Fallback / ReactiveFallback -------------------------------------------

type fallbackKind struct{}

// NewFallback builds a reactive Fallback: the mirror image of Sequence,
// with Success/Failure swapped.
func NewFallback(name string, cfg *NodeConfig, children ...Node) *Control {
	return newControl(name, `Fallback`, cfg, children, fallbackKind{})
}

// NewReactiveFallback shares Fallback's implementation, for the same
// reason NewReactiveSequence shares Sequence's.
func NewReactiveFallback(name string, cfg *NodeConfig, children ...Node) *Control {
	return newControl(name, `ReactiveFallback`, cfg, children, fallbackKind{})
}

func (fallbackKind) tick(children []Node) (Status, error) {
	for i, c := range children {
		status, err := c.ExecuteTick()
		if status != Failure {
			_ = haltAllExcept(children, i)
			return status, err
		}
	}
	if len(children) > 0 {
		_ = haltAllExcept(children, len(children)-1)
	}
	return Failure, nil
}
func (fallbackKind) halt(children []Node) error { return haltAllExcept(children, -1) }

// --- SequenceWithMemory ("sequence star") ---------------------------------

type sequenceMemoryKind struct{ index int }

// NewSequenceWithMemory builds a Sequence whose child index persists
// across ticks: a Running child resumes next tick from where it left off,
// already-succeeded children are not re-ticked. On Failure the index
// resets to 0 for the next tick; on Halt the memory is cleared.
func NewSequenceWithMemory(name string, cfg *NodeConfig, children ...Node) *Control {
	return newControl(name, `SequenceWithMemory`, cfg, children, &sequenceMemoryKind{})
}
func (s *sequenceMemoryKind) tick(children []Node) (Status, error) {
	if len(children) == 0 {
		return Success, nil
	}
	if s.index >= len(children) {
		s.index = 0
	}
	for i := s.index; i < len(children); i++ {
		status, err := children[i].ExecuteTick()
		switch status {
		case Success:
			s.index = i + 1
			continue
		case Failure:
			s.index = 0
			_ = haltAllExcept(children, i)
			return Failure, err
		default:
			s.index = i
			return Running, err
		}
	}
	s.index = 0
	return Success, nil
}
func (s *sequenceMemoryKind) halt(children []Node) error {
	s.index = 0
	return haltAllExcept(children, -1)
}

// --- FallbackWithMemory -----------------------------------------------------

type fallbackMemoryKind struct{ index int }

// NewFallbackWithMemory is FallbackWithMemory: the memory-preserving
// mirror of SequenceWithMemory.
func NewFallbackWithMemory(name string, cfg *NodeConfig, children ...Node) *Control {
	return newControl(name, `FallbackWithMemory`, cfg, children, &fallbackMemoryKind{})
}
func (f *fallbackMemoryKind) tick(children []Node) (Status, error) {
	if len(children) == 0 {
		return Failure, nil
	}
	if f.index >= len(children) {
		f.index = 0
	}
	for i := f.index; i < len(children); i++ {
		status, err := children[i].ExecuteTick()
		switch status {
		case Failure:
			f.index = i + 1
			continue
		case Success:
			f.index = 0
			_ = haltAllExcept(children, i)
			return Success, err
		default:
			f.index = i
			return Running, err
		}
	}
	f.index = 0
	return Failure, nil
}
func (f *fallbackMemoryKind) halt(children []Node) error {
	f.index = 0
	return haltAllExcept(children, -1)
}

// --- Parallel ----------------------------------------------------------------

type parallelKind struct {
	successThreshold, failureThreshold int
	completed                          []Status
}

// NewParallel ticks every non-terminal child in one sweep (no
// short-circuit); once successThreshold children have returned Success,
// the rest are halted and Success is returned; once failureThreshold
// have returned Failure, likewise for Failure; otherwise Running.
// Children already terminal from a previous sweep are not re-ticked.
func NewParallel(name string, cfg *NodeConfig, successThreshold, failureThreshold int, children ...Node) *Control {
	return newControl(name, `Parallel`, cfg, children, &parallelKind{
		successThreshold: successThreshold,
		failureThreshold: failureThreshold,
	})
}
func (p *parallelKind) tick(children []Node) (Status, error) {
	if p.completed == nil || len(p.completed) != len(children) {
		p.completed = make([]Status, len(children))
	}
	var successCount, failureCount int
	var errs []error
	for i, c := range children {
		if p.completed[i].Terminal() {
			if p.completed[i] == Success {
				successCount++
			} else {
				failureCount++
			}
			continue
		}
		status, err := c.ExecuteTick()
		if err != nil {
			errs = append(errs, err)
		}
		if status.Terminal() {
			p.completed[i] = status
		}
		switch status {
		case Success:
			successCount++
		case Failure:
			failureCount++
		}
	}

	finish := func(result Status) (Status, error) {
		for i, c := range children {
			if !p.completed[i].Terminal() {
				if err := haltChild(c); err != nil {
					errs = append(errs, err)
				}
			}
		}
		p.completed = nil
		return result, joinErrors(errs...)
	}

	if p.successThreshold > 0 && successCount >= p.successThreshold {
		return finish(Success)
	}
	if p.failureThreshold > 0 && failureCount >= p.failureThreshold {
		return finish(Failure)
	}
	if len(children) == 0 {
		return Success, nil
	}
	return Running, joinErrors(errs...)
}
func (p *parallelKind) halt(children []Node) error {
	p.completed = nil
	return haltAllExcept(children, -1)
}

// --- IfThenElse ----------------------------------------------------------------

// ifThenElseKind latches the committed branch in the same fashion as
// sequenceMemoryKind's index: branch 0 means "uncommitted", 1 means "then"
// was chosen, 2 means "else" was chosen. Unlike WhileDoElse, the condition
// is ticked only while uncommitted; once a branch is running, subsequent
// ticks go straight to it.
type ifThenElseKind struct{ branch int }

// NewIfThenElse builds an IfThenElse control over exactly 3 children
// (condition, then, else): the condition is ticked once to pick a branch —
// Success picks "then", Failure picks "else" — and that choice is latched:
// later ticks drive the committed branch directly, without re-ticking the
// condition, until the branch reaches a terminal status.
func NewIfThenElse(name string, cfg *NodeConfig, condition, then, els Node) (*Control, error) {
	if condition == nil || then == nil || els == nil {
		return nil, newLogicError(`new if-then-else`, fmt.Errorf(`all three children are required`))
	}
	return newControl(name, `IfThenElse`, cfg, []Node{condition, then, els}, &ifThenElseKind{}), nil
}
func (k *ifThenElseKind) tick(children []Node) (Status, error) {
	condition, then, els := children[0], children[1], children[2]
	if k.branch == 0 {
		status, err := condition.ExecuteTick()
		switch status {
		case Success:
			k.branch = 1
			_ = haltChild(els)
		case Failure:
			k.branch = 2
			_ = haltChild(then)
		default:
			return Running, err
		}
	}
	var chosen Node
	if k.branch == 1 {
		chosen = then
	} else {
		chosen = els
	}
	status, err := chosen.ExecuteTick()
	if status.Terminal() {
		k.branch = 0
	}
	return status, err
}
func (k *ifThenElseKind) halt(children []Node) error {
	k.branch = 0
	return haltAllExcept(children, -1)
}

// --- WhileDoElse ----------------------------------------------------------------

type whileDoElseKind struct{}

// NewWhileDoElse builds a WhileDoElse control over exactly 3 children
// (condition, do, else): like IfThenElse, but the condition is
// re-evaluated every tick; if it flips to Failure while "do" is Running,
// "do" is halted before "else" is ticked.
func NewWhileDoElse(name string, cfg *NodeConfig, condition, do, els Node) (*Control, error) {
	if condition == nil || do == nil || els == nil {
		return nil, newLogicError(`new while-do-else`, fmt.Errorf(`all three children are required`))
	}
	return newControl(name, `WhileDoElse`, cfg, []Node{condition, do, els}, whileDoElseKind{}), nil
}
func (whileDoElseKind) tick(children []Node) (Status, error) {
	condition, do, els := children[0], children[1], children[2]
	status, err := condition.ExecuteTick()
	switch status {
	case Success:
		_ = haltChild(els)
		return do.ExecuteTick()
	case Failure:
		_ = haltChild(do)
		return els.ExecuteTick()
	default:
		return Running, err
	}
}
func (whileDoElseKind) halt(children []Node) error { return haltAllExcept(children, -1) }

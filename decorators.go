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

import "time"

type (
	// Decorator is a DecoratorNode: it owns exactly one child and forwards
	// halt to it.
	Decorator struct {
		base
		child Node
		kind  decoratorKind
	}

	decoratorKind interface {
		tick(child Node) (Status, error)
		halt(child Node) error
	}
)

func newDecorator(name, regID string, cfg *NodeConfig, child Node, kind decoratorKind) *Decorator {
	return &Decorator{base: newBase(name, regID, cfg), child: child, kind: kind}
}

func (d *Decorator) Children() []Node { return []Node{d.child} }
func (d *Decorator) ExecuteTick() (Status, error) {
	return d.executeTick(func() (Status, error) { return d.kind.tick(d.child) })
}
func (d *Decorator) Halt() error {
	return d.haltSelf(func() error { return d.kind.halt(d.child) })
}

func haltChild(child Node) error {
	if child == nil || child.Status() == Idle {
		return nil
	}
	return child.Halt()
}

// --- Inverter ---------------------------------------------------------

type inverterKind struct{}

// NewInverter swaps Success<->Failure; Running passes through unchanged.
func NewInverter(name string, cfg *NodeConfig, child Node) *Decorator {
	return newDecorator(name, `Inverter`, cfg, child, inverterKind{})
}
func (inverterKind) tick(child Node) (Status, error) {
	status, err := child.ExecuteTick()
	switch status {
	case Success:
		return Failure, err
	case Failure:
		return Success, err
	default:
		return status, err
	}
}
func (inverterKind) halt(child Node) error { return haltChild(child) }

// --- ForceSuccess / ForceFailure ---------------------------------------

type forceKind struct{ forced Status }

// NewForceSuccess overrides the child's terminal status to Success;
// Running passes through.
func NewForceSuccess(name string, cfg *NodeConfig, child Node) *Decorator {
	return newDecorator(name, `ForceSuccess`, cfg, child, forceKind{forced: Success})
}

// NewForceFailure overrides the child's terminal status to Failure;
// Running passes through.
func NewForceFailure(name string, cfg *NodeConfig, child Node) *Decorator {
	return newDecorator(name, `ForceFailure`, cfg, child, forceKind{forced: Failure})
}
func (f forceKind) tick(child Node) (Status, error) {
	status, err := child.ExecuteTick()
	if status.Terminal() {
		return f.forced, err
	}
	return status, err
}
func (f forceKind) halt(child Node) error { return haltChild(child) }

// --- Repeat -------------------------------------------------------------

type repeatKind struct {
	limit int
	count int
}

// NewRepeat ticks the child until it has returned Success limit times
// (the count resets on halt); the first Failure is propagated immediately.
func NewRepeat(name string, cfg *NodeConfig, child Node, limit int) *Decorator {
	return newDecorator(name, `Repeat`, cfg, child, &repeatKind{limit: limit})
}
func (r *repeatKind) tick(child Node) (Status, error) {
	status, err := child.ExecuteTick()
	switch status {
	case Success:
		r.count++
		if r.count >= r.limit {
			r.count = 0
			return Success, err
		}
		return Running, err
	case Failure:
		r.count = 0
		return Failure, err
	default:
		return status, err
	}
}
func (r *repeatKind) halt(child Node) error {
	r.count = 0
	return haltChild(child)
}

// --- RetryUntilSuccessful ------------------------------------------------

type retryKind struct {
	limit int
	count int
}

// NewRetryUntilSuccessful ticks the child until it returns Success, which
// is propagated immediately; limit FAILUREs in a row instead propagate
// Failure.
func NewRetryUntilSuccessful(name string, cfg *NodeConfig, child Node, limit int) *Decorator {
	return newDecorator(name, `RetryUntilSuccessful`, cfg, child, &retryKind{limit: limit})
}
func (r *retryKind) tick(child Node) (Status, error) {
	status, err := child.ExecuteTick()
	switch status {
	case Success:
		r.count = 0
		return Success, err
	case Failure:
		r.count++
		if r.count >= r.limit {
			r.count = 0
			return Failure, err
		}
		return Running, err
	default:
		return status, err
	}
}
func (r *retryKind) halt(child Node) error {
	r.count = 0
	return haltChild(child)
}

// --- Timeout --------------------------------------------------------------

type timeoutKind struct {
	d         time.Duration
	deadline  time.Time
	started   bool
	now       func() time.Time
}

// NewTimeout starts a wall-clock deadline on the first tick; if it elapses
// while the child is still Running, the child is halted and Failure is
// returned.
func NewTimeout(name string, cfg *NodeConfig, child Node, d time.Duration) *Decorator {
	return newDecorator(name, `Timeout`, cfg, child, &timeoutKind{d: d, now: time.Now})
}
func (t *timeoutKind) tick(child Node) (Status, error) {
	if !t.started {
		t.started = true
		t.deadline = t.now().Add(t.d)
	}
	if t.now().After(t.deadline) {
		t.started = false
		_ = haltChild(child)
		return Failure, nil
	}
	status, err := child.ExecuteTick()
	if status.Terminal() {
		t.started = false
	}
	return status, err
}
func (t *timeoutKind) halt(child Node) error {
	t.started = false
	return haltChild(child)
}

// --- Delay ----------------------------------------------------------------

type delayKind struct {
	d        time.Duration
	deadline time.Time
	started  bool
	now      func() time.Time
}

// NewDelay waits d on the first tick only, then begins ticking the child
// on subsequent ticks.
func NewDelay(name string, cfg *NodeConfig, child Node, d time.Duration) *Decorator {
	return newDecorator(name, `Delay`, cfg, child, &delayKind{d: d, now: time.Now})
}
func (d *delayKind) tick(child Node) (Status, error) {
	if !d.started {
		d.started = true
		d.deadline = d.now().Add(d.d)
	}
	if d.now().Before(d.deadline) {
		return Running, nil
	}
	status, err := child.ExecuteTick()
	if status.Terminal() {
		d.started = false
	}
	return status, err
}
func (d *delayKind) halt(child Node) error {
	d.started = false
	return haltChild(child)
}

// --- KeepRunningUntilFailure ----------------------------------------------

type keepRunningKind struct{}

// NewKeepRunningUntilFailure returns Running while the child returns
// Success or Running; the child's Failure is propagated.
func NewKeepRunningUntilFailure(name string, cfg *NodeConfig, child Node) *Decorator {
	return newDecorator(name, `KeepRunningUntilFailure`, cfg, child, keepRunningKind{})
}
func (keepRunningKind) tick(child Node) (Status, error) {
	status, err := child.ExecuteTick()
	if status == Failure {
		return Failure, err
	}
	return Running, err
}
func (keepRunningKind) halt(child Node) error { return haltChild(child) }

// --- RunOnce ----------------------------------------------------------------

type runOnceKind struct {
	latched bool
	status  Status
}

// NewRunOnce latches the child's first successful completion; subsequent
// ticks return the latched value without re-ticking the child.
func NewRunOnce(name string, cfg *NodeConfig, child Node) *Decorator {
	return newDecorator(name, `RunOnce`, cfg, child, &runOnceKind{})
}
func (r *runOnceKind) tick(child Node) (Status, error) {
	if r.latched {
		return r.status, nil
	}
	status, err := child.ExecuteTick()
	if status.Terminal() {
		r.latched = true
		r.status = status
	}
	return status, err
}
func (r *runOnceKind) halt(child Node) error {
	r.latched = false
	return haltChild(child)
}

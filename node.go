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
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Node is the abstract root of the node hierarchy (TreeNode in the
	// design). Concrete nodes are one of *Leaf, *Decorator or *Control.
	Node interface {
		// UID is monotonic and unique within a tree instance, assigned at
		// construction.
		UID() uint64
		// Name is a free-form, display-only label.
		Name() string
		// RegistrationID is the factory registration id this node was
		// constructed from (empty for programmatically-built nodes).
		RegistrationID() string
		// Status returns the node's current resting status.
		Status() Status
		// ExecuteTick is the single externally legal entry point for
		// driving this node: it dispatches to the node's tick
		// implementation, applying pre/post-tick hooks, and updates
		// Status() / fires observer callbacks.
		ExecuteTick() (Status, error)
		// Halt recursively resets this node (and any subtree) to Idle,
		// cancelling pending asynchronous work. Halt is idempotent and,
		// for synchronous nodes, always synchronous.
		Halt() error
		// Children returns this node's children, or nil for leaves.
		Children() []Node

		// config returns the node's NodeConfig, unexported so that only
		// this package's node kinds can satisfy Node and so that Tree can
		// wire its wake-up signal and observer dispatch into every node in
		// the graph at construction time.
		config() *NodeConfig
	}

	// Observer is notified of every non-trivial status transition produced
	// by ExecuteTick, across every node in a Tree. Observers are
	// registered via Tree.RegisterObserver, never on individual nodes.
	Observer interface {
		OnStatusChange(uid uint64, timestamp time.Time, prev, next Status)
	}

	// ObserverFunc adapts a plain function to Observer.
	ObserverFunc func(uid uint64, timestamp time.Time, prev, next Status)

	// NodeConfig bundles the attributes every node carries: its (possibly
	// subtree-local) blackboard, its raw port assignments (populated by the
	// XML loader or hand-written call sites), optional pre/post-tick
	// scripts, and back-references to the owning tree's wake-up signal and
	// observer dispatch, wired in automatically when the node is attached
	// to a Tree.
	NodeConfig struct {
		Blackboard    *Blackboard
		Ports         map[string]string
		Precondition  *ScriptHook
		Postcondition *ScriptHook

		wake     *wakeSignal
		dispatch func(uid uint64, ts time.Time, prev, next Status)
	}

	// base is embedded by every concrete node kind and implements the
	// shared UID/Name/RegistrationID/Status/ExecuteTick/Halt bookkeeping,
	// so concrete types need only supply their own tick/halt logic.
	base struct {
		uid   uint64
		name  string
		regID string
		cfg   *NodeConfig

		mu     sync.Mutex
		status Status
	}
)

var uidCounter atomic.Uint64

// nextUID returns a process-wide monotonically increasing node identifier.
// A plain counter is used (rather than a ulid/uuid) because node identity
// requires strict per-instance monotonicity, which a random or time-based
// id cannot guarantee.
func nextUID() uint64 { return uidCounter.Add(1) }

func newBase(name, regID string, cfg *NodeConfig) base {
	if cfg == nil {
		cfg = &NodeConfig{}
	}
	return base{uid: nextUID(), name: name, regID: regID, cfg: cfg}
}

func (b *base) UID() uint64            { return b.uid }
func (b *base) Name() string           { return b.name }
func (b *base) RegistrationID() string { return b.regID }
func (b *base) config() *NodeConfig    { return b.cfg }

func (b *base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// executeTick implements the tick contract in 4 steps:
//  1. if idle, run the pre-tick (precondition) hook; a forced result
//     short-circuits the node's own tick implementation entirely.
//  2. run tick.
//  3. apply the post-tick (postcondition) hook, which may override status.
//  4. status is stored and observers are fired at most once: only when
//     the status changed, or when it is Running.
func (b *base) executeTick(tick func() (Status, error)) (status Status, err error) {
	b.mu.Lock()
	prev := b.status
	b.mu.Unlock()

	if prev == Idle && b.cfg.Precondition != nil {
		skip, pErr := b.cfg.Precondition.EvalBool(b.cfg.Blackboard)
		if pErr != nil {
			return b.settle(prev, Failure, pErr)
		}
		if skip {
			// precondition gate closed: the node is not evaluated this
			// tick. Skipped is virtual and is not itself stored as the
			// node's resting status; the caller sees it, but Status()
			// continues reporting Idle until a tick is actually allowed
			// through.
			return Skipped, nil
		}
	}

	status, err = tick()

	if b.cfg.Postcondition != nil && status.Terminal() {
		if overridden, ok, pErr := b.cfg.Postcondition.EvalStatus(b.cfg.Blackboard); pErr != nil {
			return b.settle(prev, Failure, pErr)
		} else if ok {
			status = overridden
		}
	}

	return b.settle(prev, status, err)
}

func (b *base) settle(prev, status Status, err error) (Status, error) {
	b.mu.Lock()
	b.status = status
	dispatch := b.cfg.dispatch
	uid := b.uid
	b.mu.Unlock()
	if dispatch != nil && (prev != status || status == Running) {
		dispatch(uid, time.Now(), prev, status)
	}
	return status, err
}

// haltSelf resets status to Idle (idempotently: a second call is a no-op
// observable-wise) after haltChildren has run, which subclasses use to
// cancel any pending asynchronous work and halt their own children.
func (b *base) haltSelf(haltChildren func() error) error {
	b.mu.Lock()
	prev := b.status
	b.mu.Unlock()

	err := haltChildren()

	b.mu.Lock()
	b.status = Idle
	dispatch := b.cfg.dispatch
	uid := b.uid
	b.mu.Unlock()
	if dispatch != nil && prev != Idle {
		dispatch(uid, time.Now(), prev, Idle)
	}
	return err
}

func (f ObserverFunc) OnStatusChange(uid uint64, timestamp time.Time, prev, next Status) {
	f(uid, timestamp, prev, next)
}

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
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var errAlreadyTicked = errors.New(`observers must be registered before the first tick`)

// wakeSignal is the engine's wake-up mechanism: a level-triggered edge
// built from a mutex, a condition variable and a bool, exactly as the
// concurrency model requires, rather than a channel or a library
// scheduler. Any threaded action's worker calls emit when it completes;
// the tick driver calls waitFor to sleep until the next worker completion
// or a fallback poll period elapses, whichever comes first.
type wakeSignal struct {
	mu    sync.Mutex
	cond  *sync.Cond
	woken bool
}

func newWakeSignal() *wakeSignal {
	w := &wakeSignal{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// emit latches the signal and wakes every waiter. Calling emit when no one
// is waiting is harmless: the next waitFor call observes the latched flag
// and returns immediately without blocking.
func (w *wakeSignal) emit() {
	w.mu.Lock()
	w.woken = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

// waitFor blocks until emit is called or d elapses, whichever comes
// first, consuming the latched flag. It reports whether it was woken by
// emit (true) as opposed to timing out (false).
func (w *wakeSignal) waitFor(d time.Duration) bool {
	deadline := time.Now().Add(d)
	timer := time.AfterFunc(d, func() {
		// taking the lock first means the broadcast cannot land between
		// the waiter's deadline check and its cond.Wait, where it would
		// be lost.
		w.mu.Lock()
		w.mu.Unlock()
		w.cond.Broadcast()
	})
	defer timer.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.woken {
		if !time.Now().Before(deadline) {
			return false
		}
		w.cond.Wait()
	}
	w.woken = false
	return true
}

// Tree owns a root Node and drives it through successive ticks. It is the
// only way a host application should invoke ExecuteTick on a tree's root:
// calling ExecuteTick directly bypasses the observer registration
// discipline below, since only TickOnce marks the tree as ticked.
type Tree struct {
	Root       Node
	Blackboard *Blackboard
	// InstanceID is a ULID minted once at construction: an opaque,
	// sortable, human-loggable identifier for disambiguating concurrent
	// Tree instances in diagnostic output. It has no bearing on tick
	// semantics and is never persisted.
	InstanceID ulid.ULID

	wake *wakeSignal

	mu        sync.Mutex
	observers []Observer
	ticked    bool
}

// NewTree builds a Tree over root, wiring the wake-up signal and observer
// dispatch into every node of the graph reachable from root.
func NewTree(root Node, bb *Blackboard) *Tree {
	t := &Tree{
		Root:       root,
		Blackboard: bb,
		InstanceID: ulid.Make(),
		wake:       newWakeSignal(),
	}
	attachTree(root, t.wake, t.dispatch)
	return t
}

func attachTree(n Node, wake *wakeSignal, dispatch func(uid uint64, ts time.Time, prev, next Status)) {
	if n == nil {
		return
	}
	if cfg := n.config(); cfg != nil {
		cfg.wake = wake
		cfg.dispatch = dispatch
	}
	for _, c := range n.Children() {
		attachTree(c, wake, dispatch)
	}
}

func (t *Tree) dispatch(uid uint64, ts time.Time, prev, next Status) {
	t.mu.Lock()
	observers := t.observers
	t.mu.Unlock()
	for _, o := range observers {
		o.OnStatusChange(uid, ts, prev, next)
	}
}

// RegisterObserver adds o to the set notified of every status transition
// in this tree. Observers must be registered before the first tick: doing
// so afterward is a LogicError.
func (t *Tree) RegisterObserver(o Observer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticked {
		return newLogicError(`register observer`, errAlreadyTicked)
	}
	t.observers = append(t.observers, o)
	return nil
}

func (t *Tree) markTicked() {
	t.mu.Lock()
	t.ticked = true
	t.mu.Unlock()
}

// TickOnce drives exactly one tick cycle on the root and returns its
// result, whatever it is.
func (t *Tree) TickOnce() (Status, error) {
	t.markTicked()
	return t.Root.ExecuteTick()
}

// TickExactlyOnce is TickOnce under the name that makes the common intent
// explicit at call sites: "tick this tree once, regardless of the status
// returned".
func (t *Tree) TickExactlyOnce() (Status, error) { return t.TickOnce() }

// TickWhileRunning repeatedly ticks the root, sleeping on the wake-up
// signal between ticks (bounded by period as a fallback poll interval, in
// case no threaded action ever calls emit), until the root returns a
// terminal status or an error.
func (t *Tree) TickWhileRunning(period time.Duration) (Status, error) {
	for {
		status, err := t.TickOnce()
		if status != Running || err != nil {
			return status, err
		}
		t.wake.waitFor(period)
	}
}

// Halt cascades Halt down the whole tree from the root, cancelling any
// pending asynchronous work.
func (t *Tree) Halt() error {
	start := time.Now()
	err := t.Root.Halt()
	diagLogger().Debug().Str(`instance_id`, t.InstanceID.String()).Dur(`duration`, time.Since(start)).Msg(`tree: halt cascade settled`)
	return err
}

// Sleep blocks the calling goroutine until the tree's wake-up signal
// fires or d elapses, whichever comes first. It is exposed for host loops
// that want to drive TickOnce themselves but still benefit from
// event-triggered wake-up rather than busy-polling.
func (t *Tree) Sleep(d time.Duration) bool { return t.wake.waitFor(d) }

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
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ScriptHook is a compiled precondition/postcondition expression, bound to
// a node's config. This package does not implement its own scripting
// sub-language or parser; instead a real embeddable expression evaluator
// does the work, with the blackboard exposed to the expression
// environment by key.
type ScriptHook struct {
	source  string
	program *vm.Program
	// kind distinguishes the small family of BT.CPP-style shorthand script
	// attributes this hook was compiled from, which changes how its result
	// is interpreted by EvalBool / EvalStatus.
	kind scriptKind
}

type scriptKind int

const (
	// scriptSkipIf: a true result means "do not tick this node; report
	// Skipped".
	scriptSkipIf scriptKind = iota
	// scriptWhile: the opposite polarity to scriptSkipIf: a false result
	// means "do not tick this node; report Skipped" (the result is negated
	// internally).
	scriptWhile
	// scriptSuccessIf / scriptFailureIf force the given terminal status
	// when the expression evaluates true, used as postcondition hooks.
	scriptSuccessIf
	scriptFailureIf
)

// CompilePrecondition compiles a "_skipIf"/"_while"-style boolean
// expression into a ScriptHook usable as NodeConfig.Precondition.
// negate should be true for "_while" (ticking proceeds while the
// expression is true, i.e. it is skipped when the expression is false).
func CompilePrecondition(source string, negate bool) (*ScriptHook, error) {
	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, newLogicError(`compile precondition script`, err)
	}
	kind := scriptSkipIf
	if negate {
		kind = scriptWhile
	}
	return &ScriptHook{source: source, program: program, kind: kind}, nil
}

// CompilePostcondition compiles a "_successIf"/"_failureIf" expression
// into a ScriptHook usable as NodeConfig.Postcondition.
func CompilePostcondition(source string, onSuccessForceFailure bool) (*ScriptHook, error) {
	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, newLogicError(`compile postcondition script`, err)
	}
	kind := scriptSuccessIf
	if onSuccessForceFailure {
		kind = scriptFailureIf
	}
	return &ScriptHook{source: source, program: program, kind: kind}, nil
}

// scriptEnv exposes a blackboard's entries, by their local key, to the
// expression environment. Only bb's own slots are copied: remap entries
// and autoremap are not followed, so keys that bb binds to a parent
// blackboard are not visible to the expression, since expr evaluates
// against a snapshot map rather than walking the blackboard itself.
func scriptEnv(bb *Blackboard) map[string]any {
	env := map[string]any{}
	if bb == nil {
		return env
	}
	bb.mu.RLock()
	defer bb.mu.RUnlock()
	for k, s := range bb.slots {
		env[k] = s.value
	}
	return env
}

// EvalBool runs the hook and returns whether the node's tick should be
// skipped this invocation (true => skip), per the polarity the hook was
// compiled with.
func (h *ScriptHook) EvalBool(bb *Blackboard) (skip bool, err error) {
	result, err := expr.Run(h.program, scriptEnv(bb))
	if err != nil {
		return false, newRuntimeError(`eval script`, fmt.Errorf("%q: %w", h.source, err))
	}
	v, ok := result.(bool)
	if !ok {
		return false, newRuntimeError(`eval script`, fmt.Errorf(`%q: expected bool result, got %T`, h.source, result))
	}
	if h.kind == scriptWhile {
		return !v, nil
	}
	return v, nil
}

// EvalStatus runs a postcondition hook, returning the forced status (ok
// true) if the hook's expression matched, or ok=false to leave the node's
// status unmodified.
func (h *ScriptHook) EvalStatus(bb *Blackboard) (status Status, ok bool, err error) {
	result, err := expr.Run(h.program, scriptEnv(bb))
	if err != nil {
		return Failure, false, newRuntimeError(`eval script`, fmt.Errorf("%q: %w", h.source, err))
	}
	matched, isBool := result.(bool)
	if !isBool {
		return Failure, false, newRuntimeError(`eval script`, fmt.Errorf(`%q: expected bool result, got %T`, h.source, result))
	}
	if !matched {
		return Failure, false, nil
	}
	if h.kind == scriptFailureIf {
		return Failure, true, nil
	}
	return Success, true, nil
}

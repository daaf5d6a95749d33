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

// Package btxml compiles the declarative XML tree description (root /
// BehaviorTree / TreeNodesModel, BT.CPP-flavoured) into an instantiated,
// ready-to-tick *bt.Tree, expanding <SubTree> references against a
// recursion guard and reconciling every node's attributes against its
// factory-declared ports.
package btxml

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	bt "github.com/joeycumines/go-bt"
)

type (
	xmlDoc struct {
		XMLName        xml.Name           `xml:"root"`
		MainTreeID     string             `xml:"main_tree_to_execute,attr"`
		Trees          []xmlTree          `xml:"BehaviorTree"`
		TreeNodesModel *xmlTreeNodesModel `xml:"TreeNodesModel"`
	}

	xmlTree struct {
		ID       string    `xml:"ID,attr"`
		Children []xmlNode `xml:",any"`
	}

	xmlNode struct {
		XMLName  xml.Name
		Attrs    []xml.Attr `xml:",any,attr"`
		Children []xmlNode  `xml:",any"`
	}

	// xmlTreeNodesModel is the editor-facing manifest section: it lists
	// node types and their port signatures for documentation/validation
	// purposes, but is never instantiated directly.
	xmlTreeNodesModel struct {
		Actions    []xmlNodeModel `xml:"Action"`
		Conditions []xmlNodeModel `xml:"Condition"`
		Controls   []xmlNodeModel `xml:"Control"`
		Decorators []xmlNodeModel `xml:"Decorator"`
		SubTrees   []xmlNodeModel `xml:"SubTree"`
	}

	xmlNodeModel struct {
		ID    string         `xml:"ID,attr"`
		Ports []xmlPortModel `xml:",any"`
	}

	xmlPortModel struct {
		XMLName xml.Name
		Name    string `xml:"name,attr"`
	}
)

func (n xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return ``, false
}

func (n xmlNode) attrMap() map[string]string {
	m := make(map[string]string, len(n.Attrs))
	for _, a := range n.Attrs {
		switch a.Name.Local {
		case `ID`, `_skipIf`, `_while`, `_successIf`, `_failureIf`:
			// script shorthands are compiled by config, not ports.
			continue
		}
		m[a.Name.Local] = a.Value
	}
	return m
}

func (n xmlNode) displayName() string {
	if name, ok := n.attr(`name`); ok {
		return name
	}
	return n.XMLName.Local
}

// Load parses data as an XML tree document and instantiates its main
// tree (named by main_tree_to_execute, or the sole <BehaviorTree> if
// there is exactly one) against factory, returning a ready-to-tick Tree
// rooted at a fresh root Blackboard.
func Load(data []byte, factory *bt.Factory) (*bt.Tree, error) {
	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, bt.NewLogicError(`parse xml`, err)
	}
	if err := validateTreeNodesModel(doc.TreeNodesModel); err != nil {
		return nil, err
	}

	byID := make(map[string]xmlTree, len(doc.Trees))
	for _, t := range doc.Trees {
		if t.ID != `` {
			byID[t.ID] = t
		}
	}

	mainID := doc.MainTreeID
	if mainID == `` {
		if len(doc.Trees) != 1 {
			return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`main_tree_to_execute is required when more than one <BehaviorTree> is present`))
		}
		mainID = doc.Trees[0].ID
	}
	main, ok := byID[mainID]
	if !ok {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`main tree id %q not found`, mainID))
	}
	if len(main.Children) != 1 {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`tree %q must have exactly one root child`, mainID))
	}

	bb := bt.NewBlackboard(nil, nil, nil)
	l := &loader{factory: factory, trees: byID}
	root, err := l.instantiate(main.Children[0], bb, map[string]bool{mainID: true})
	if err != nil {
		return nil, err
	}
	return bt.NewTree(root, bb), nil
}

// LoadFile reads path and delegates to Load.
func LoadFile(path string, factory *bt.Factory) (*bt.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bt.NewRuntimeError(`load xml file`, err)
	}
	return Load(data, factory)
}

// validateTreeNodesModel checks the editor manifest section, if present:
// every <SubTree> entry must carry an ID (BUG-7: a missing one must
// surface as a RuntimeError, not a null-deref crash), and every declared
// port, in any entry, must carry a name.
func validateTreeNodesModel(m *xmlTreeNodesModel) error {
	if m == nil {
		return nil
	}
	for _, e := range m.SubTrees {
		if e.ID == `` {
			return bt.NewRuntimeError(`validate tree nodes model`, fmt.Errorf(`<TreeNodesModel><SubTree> entry is missing a required ID attribute`))
		}
	}
	groups := [][]xmlNodeModel{m.Actions, m.Conditions, m.Controls, m.Decorators, m.SubTrees}
	for _, group := range groups {
		for _, e := range group {
			for _, p := range e.Ports {
				if p.Name == `` {
					return bt.NewRuntimeError(`validate tree nodes model`, fmt.Errorf(`<TreeNodesModel> port declaration %q is missing a required name attribute`, p.XMLName.Local))
				}
			}
		}
	}
	return nil
}

type loader struct {
	factory *bt.Factory
	trees   map[string]xmlTree
}

func (l *loader) instantiate(n xmlNode, bb *bt.Blackboard, visited map[string]bool) (bt.Node, error) {
	tag := n.XMLName.Local
	name := n.displayName()

	switch tag {
	case `Sequence`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return bt.NewSequence(name, l.config(n, bb), children...), nil
	case `ReactiveSequence`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return bt.NewReactiveSequence(name, l.config(n, bb), children...), nil
	case `SequenceWithMemory`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return bt.NewSequenceWithMemory(name, l.config(n, bb), children...), nil
	case `Fallback`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return bt.NewFallback(name, l.config(n, bb), children...), nil
	case `ReactiveFallback`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return bt.NewReactiveFallback(name, l.config(n, bb), children...), nil
	case `FallbackWithMemory`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return bt.NewFallbackWithMemory(name, l.config(n, bb), children...), nil
	case `Parallel`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		success := attrInt(n, `success_threshold`, len(children))
		failure := attrInt(n, `failure_threshold`, 1)
		return bt.NewParallel(name, l.config(n, bb), success, failure, children...), nil
	case `IfThenElse`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		if len(children) != 3 {
			return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`%s requires exactly 3 children, got %d`, tag, len(children)))
		}
		return bt.NewIfThenElse(name, l.config(n, bb), children[0], children[1], children[2])
	case `WhileDoElse`:
		children, err := l.instantiateChildren(n, bb, visited)
		if err != nil {
			return nil, err
		}
		if len(children) != 3 {
			return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`%s requires exactly 3 children, got %d`, tag, len(children)))
		}
		return bt.NewWhileDoElse(name, l.config(n, bb), children[0], children[1], children[2])
	case `Inverter`, `ForceSuccess`, `ForceFailure`, `KeepRunningUntilFailure`, `RunOnce`, `Repeat`, `RetryUntilSuccessful`, `Timeout`, `Delay`:
		child, err := l.singleChild(n, bb, visited)
		if err != nil {
			return nil, err
		}
		return l.instantiateDecorator(tag, name, n, bb, child)
	case `SubTree`:
		return l.instantiateSubTree(n, bb, visited)
	default:
		attrs := n.attrMap()
		cfg := l.config(n, bb)
		return l.factory.Build(tag, name, attrs, cfg)
	}
}

func (l *loader) instantiateDecorator(tag, name string, n xmlNode, bb *bt.Blackboard, child bt.Node) (bt.Node, error) {
	cfg := l.config(n, bb)
	switch tag {
	case `Inverter`:
		return bt.NewInverter(name, cfg, child), nil
	case `ForceSuccess`:
		return bt.NewForceSuccess(name, cfg, child), nil
	case `ForceFailure`:
		return bt.NewForceFailure(name, cfg, child), nil
	case `KeepRunningUntilFailure`:
		return bt.NewKeepRunningUntilFailure(name, cfg, child), nil
	case `RunOnce`:
		return bt.NewRunOnce(name, cfg, child), nil
	case `Repeat`:
		return bt.NewRepeat(name, cfg, child, attrInt(n, `num_cycles`, 1)), nil
	case `RetryUntilSuccessful`:
		return bt.NewRetryUntilSuccessful(name, cfg, child, attrInt(n, `num_attempts`, 1)), nil
	case `Timeout`:
		return bt.NewTimeout(name, cfg, child, attrMillis(n, `msec`, time.Second)), nil
	case `Delay`:
		return bt.NewDelay(name, cfg, child, attrMillis(n, `delay_msec`, 0)), nil
	}
	return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`unknown decorator %q`, tag))
}

func (l *loader) instantiateSubTree(n xmlNode, parent *bt.Blackboard, visited map[string]bool) (bt.Node, error) {
	id, ok := n.attr(`ID`)
	if !ok || id == `` {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`<SubTree> is missing a required ID attribute`))
	}
	if visited[id] {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`<SubTree ID=%q> recursion detected`, id))
	}
	tree, ok := l.trees[id]
	if !ok {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`<SubTree ID=%q> refers to an undefined tree`, id))
	}
	if len(tree.Children) != 1 {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`tree %q must have exactly one root child`, id))
	}

	depth := len(visited)
	diag := bt.Diag()
	diag.Debug().Str(`subtree_id`, id).Int(`depth`, depth).Msg(`btxml: subtree expansion enter`)

	autoremap := false
	remap := map[string]bt.RemapMode{}
	targets := map[string]string{}
	literals := map[string]string{}
	for _, a := range n.Attrs {
		if a.Name.Local == `ID` || a.Name.Local == `name` {
			continue
		}
		if a.Name.Local == `_autoremap` {
			autoremap = a.Value == `true`
			continue
		}
		if a.Value == `{=}` {
			// name-identity auto-remap: the port binds to the parent key
			// of the same name as the attribute itself.
			remap[a.Name.Local] = bt.RemapRemapped
			targets[a.Name.Local] = a.Name.Local
		} else if key, isRef := parseBraceRef(a.Value); isRef {
			remap[a.Name.Local] = bt.RemapRemapped
			targets[a.Name.Local] = key
		} else {
			// a literal is a constant local to the subtree, even under
			// _autoremap.
			remap[a.Name.Local] = bt.RemapInternal
			literals[a.Name.Local] = a.Value
		}
	}
	child := bt.NewBlackboard(parent, remap, targets)
	child.SetAutoRemap(autoremap)
	for key, value := range literals {
		if err := bt.Set(child, key, value); err != nil {
			return nil, err
		}
	}

	nextVisited := make(map[string]bool, len(visited)+1)
	for k, v := range visited {
		nextVisited[k] = v
	}
	nextVisited[id] = true

	node, err := l.instantiate(tree.Children[0], child, nextVisited)
	diag.Debug().Str(`subtree_id`, id).Int(`depth`, depth).Msg(`btxml: subtree expansion exit`)
	return node, err
}

func (l *loader) instantiateChildren(n xmlNode, bb *bt.Blackboard, visited map[string]bool) ([]bt.Node, error) {
	children := make([]bt.Node, 0, len(n.Children))
	for _, c := range n.Children {
		node, err := l.instantiate(c, bb, visited)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	return children, nil
}

func (l *loader) singleChild(n xmlNode, bb *bt.Blackboard, visited map[string]bool) (bt.Node, error) {
	if len(n.Children) != 1 {
		return nil, bt.NewLogicError(`load tree`, fmt.Errorf(`%s requires exactly 1 child, got %d`, n.XMLName.Local, len(n.Children)))
	}
	return l.instantiate(n.Children[0], bb, visited)
}

// config builds a NodeConfig for n, compiling any "_skipIf" / "_while" /
// "_successIf" / "_failureIf" shorthand attribute present into the
// corresponding script hook.
func (l *loader) config(n xmlNode, bb *bt.Blackboard) *bt.NodeConfig {
	cfg := &bt.NodeConfig{Blackboard: bb}
	if source, ok := n.attr(`_skipIf`); ok {
		if hook, err := bt.CompilePrecondition(source, false); err == nil {
			cfg.Precondition = hook
		}
	} else if source, ok := n.attr(`_while`); ok {
		if hook, err := bt.CompilePrecondition(source, true); err == nil {
			cfg.Precondition = hook
		}
	}
	if source, ok := n.attr(`_successIf`); ok {
		if hook, err := bt.CompilePostcondition(source, false); err == nil {
			cfg.Postcondition = hook
		}
	} else if source, ok := n.attr(`_failureIf`); ok {
		if hook, err := bt.CompilePostcondition(source, true); err == nil {
			cfg.Postcondition = hook
		}
	}
	return cfg
}

func attrInt(n xmlNode, name string, def int) int {
	raw, ok := n.attr(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func attrMillis(n xmlNode, name string, def time.Duration) time.Duration {
	raw, ok := n.attr(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func parseBraceRef(raw string) (key string, ok bool) {
	if len(raw) >= 2 && raw[0] == '{' && raw[len(raw)-1] == '}' {
		return raw[1 : len(raw)-1], true
	}
	return ``, false
}

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
	"encoding/hex"
	"fmt"
	"os"
	"plugin"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
)

// PluginRegisterSymbol is the exported symbol every plugin must provide:
// a func(*Factory) error that registers its node types.
const PluginRegisterSymbol = `RegisterBehaviorTreeNodes`

type (
	// Manifest describes one registered node type: its registration id,
	// declared ports and a short human-readable description, surfaced by
	// the manifest CLI tool.
	Manifest struct {
		ID          string
		Ports       PortsList
		Description string
	}

	// Constructor builds a Node instance given its display name, a
	// NodeConfig whose Blackboard is already set, and its reconciled
	// (default-filled) attribute map.
	Constructor func(name string, cfg *NodeConfig, attrs map[string]string) (Node, error)

	factoryEntry struct {
		manifest  Manifest
		construct Constructor
	}

	// Factory is the registration_id -> (Manifest, Constructor) registry
	// the XML loader and manifest CLI build trees from. The zero value is
	// not usable; construct with NewFactory.
	Factory struct {
		mu      sync.RWMutex
		entries map[string]factoryEntry
	}
)

// NewFactory returns an empty, ready-to-use Factory.
func NewFactory() *Factory {
	return &Factory{entries: map[string]factoryEntry{}}
}

// Register adds a node type to the factory. Registering the same ID
// twice is a LogicError: double registration is a programmer mistake,
// never a recoverable runtime condition.
func (f *Factory) Register(manifest Manifest, construct Constructor) error {
	if manifest.ID == `` {
		return newLogicError(`factory register`, fmt.Errorf(`manifest ID is required`))
	}
	if construct == nil {
		return newLogicError(`factory register`, fmt.Errorf(`constructor is required`))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.entries[manifest.ID]; exists {
		err := fmt.Errorf(`node id %q is already registered`, manifest.ID)
		diagLogger().Error().Str(`id`, manifest.ID).Msg(`factory: double registration`)
		return newLogicError(`factory register`, err)
	}
	f.entries[manifest.ID] = factoryEntry{manifest: manifest, construct: construct}
	diagLogger().Debug().Str(`id`, manifest.ID).Msg(`factory: registered node type`)
	return nil
}

// Lookup returns the registered manifest and constructor for id.
func (f *Factory) Lookup(id string) (Manifest, Constructor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.entries[id]
	if !ok {
		return Manifest{}, nil, false
	}
	return entry.manifest, entry.construct, true
}

// Manifests returns every registered manifest, sorted by ID, for use by
// the manifest CLI and tree validation passes.
func (f *Factory) Manifests() []Manifest {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Manifest, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.manifest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Build instantiates a registered node type: it reconciles attrs against
// the manifest's declared ports (filling defaults, rejecting unknown
// attributes), then invokes the constructor with cfg, whose Ports field
// is overwritten with the reconciled map. Callers (typically the XML
// loader) own cfg, so they may pre-populate its Blackboard and
// Precondition/Postcondition script hooks before calling Build.
func (f *Factory) Build(id, name string, attrs map[string]string, cfg *NodeConfig) (Node, error) {
	manifest, construct, ok := f.Lookup(id)
	if !ok {
		return nil, newLogicError(`factory build`, fmt.Errorf(`unregistered node id %q`, id))
	}
	effective, err := ReconcilePorts(manifest.Ports, attrs, false)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &NodeConfig{}
	}
	cfg.Ports = effective
	return construct(name, cfg, effective)
}

// LoadPlugin opens the shared object at path and invokes its
// PluginRegisterSymbol export to register its node types with f. Before
// opening the plugin, LoadPlugin computes and logs a blake3 digest of its
// bytes: a diagnostic breadcrumb for "which build of this plugin is
// actually loaded" questions, not a security control — it is never
// checked against an allow-list.
func (f *Factory) LoadPlugin(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newRuntimeError(`load plugin`, fmt.Errorf(`reading %s: %w`, path, err))
	}
	digest := blake3.Sum256(data)
	diagLogger().Info().
		Str(`path`, path).
		Str(`blake3`, hex.EncodeToString(digest[:])).
		Msg(`factory: loading plugin`)

	p, err := plugin.Open(path)
	if err != nil {
		return newRuntimeError(`load plugin`, fmt.Errorf(`opening %s: %w`, path, err))
	}
	sym, err := p.Lookup(PluginRegisterSymbol)
	if err != nil {
		return newRuntimeError(`load plugin`, fmt.Errorf(`%s: missing %s symbol: %w`, path, PluginRegisterSymbol, err))
	}
	register, ok := sym.(func(*Factory) error)
	if !ok {
		return newRuntimeError(`load plugin`, fmt.Errorf(`%s: %s has unexpected signature %T`, path, PluginRegisterSymbol, sym))
	}
	if err := register(f); err != nil {
		return newRuntimeError(`load plugin`, fmt.Errorf(`%s: registering node types: %w`, path, err))
	}
	return nil
}

// RegisterPluginsGlob expands pattern (which may use doublestar's "**")
// against the filesystem and loads every match, in lexical order. It
// returns the number of plugins successfully loaded before any error.
func (f *Factory) RegisterPluginsGlob(pattern string) (int, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return 0, newRuntimeError(`register plugins glob`, fmt.Errorf(`pattern %q: %w`, pattern, err))
	}
	sort.Strings(matches)
	for i, m := range matches {
		if err := f.LoadPlugin(m); err != nil {
			return i, err
		}
	}
	return len(matches), nil
}

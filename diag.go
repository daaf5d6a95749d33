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

	"github.com/rs/zerolog"
)

// The engine holds one process-wide diagnostics sink, defaulting to a
// no-op logger so an embedding application that never calls SetLogger
// pays nothing for it. This is operational logging only (factory
// registration, plugin loads, halt cascades): it never substitutes for
// the per-tick Observer bus, and must never gate tick behavior.
var (
	diagMu  sync.RWMutex
	diagLog zerolog.Logger = zerolog.Nop()
)

// SetLogger installs l as the engine's diagnostics sink. Pass
// zerolog.Nop() to silence it again.
func SetLogger(l zerolog.Logger) {
	diagMu.Lock()
	diagLog = l
	diagMu.Unlock()
}

func diagLogger() zerolog.Logger {
	diagMu.RLock()
	defer diagMu.RUnlock()
	return diagLog
}

// Diag exposes the engine's diagnostics sink to companion packages such as
// btxml, which log loader-time events (subtree expansion, recursion depth)
// through the same process-wide logger as the core engine.
func Diag() zerolog.Logger { return diagLogger() }

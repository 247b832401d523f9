// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package promptflow

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the named workflow definitions a server exposes
// through prompts/get. It implements mcptask.DefinitionLookup and can
// be passed as mcpserver.Config.Definitions; cmd/taskserver does not
// construct one.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*WorkflowDefinition
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*WorkflowDefinition)}
}

// Register validates def and adds it under its own Name, replacing any
// prior definition of the same name.
func (r *Registry) Register(def *WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("promptflow: register %q: %w", def.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// DefinitionByName implements mcptask.DefinitionLookup.
func (r *Registry) DefinitionByName(name string) (*WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns every registered workflow name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

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

// Package mcptask wires pkg/task onto github.com/mark3labs/mcp-go's
// tool-call path: C5 (task-augmented tool middleware) and C9
// (continuation middleware), both server.ToolHandlerMiddleware values,
// plus the background execution registry that lets C5 return before a
// tool handler has made any progress.
package mcptask

import "fmt"

// TaskSupport is a tool's declared stance on carrying a `task` directive
// (spec.md §4.5 step 1).
type TaskSupport int

const (
	// SupportForbidden rejects any tools/call carrying a task directive.
	SupportForbidden TaskSupport = iota
	// SupportOptional runs synchronously unless the caller supplies a
	// task directive, in which case it runs task-augmented.
	SupportOptional
	// SupportRequired always runs task-augmented; a tools/call without
	// a task directive is rejected with ErrTaskRequired.
	SupportRequired
)

// Policy answers, per tool name, whether it may run task-augmented.
// Grounded on the teacher's per-operation allow-list pattern in
// internal/controller/registry (operations are looked up by name before
// being permitted to run).
type Policy struct {
	support map[string]TaskSupport
	// defaultSupport is used for tools the registry has no explicit
	// entry for.
	defaultSupport TaskSupport
}

// NewPolicy builds a Policy. Tools absent from support fall back to
// defaultSupport.
func NewPolicy(defaultSupport TaskSupport, support map[string]TaskSupport) *Policy {
	p := &Policy{support: make(map[string]TaskSupport, len(support)), defaultSupport: defaultSupport}
	for name, s := range support {
		p.support[name] = s
	}
	return p
}

// SupportFor reports the declared task-support level for tool.
func (p *Policy) SupportFor(tool string) TaskSupport {
	if s, ok := p.support[tool]; ok {
		return s
	}
	return p.defaultSupport
}

// ErrTaskForbidden is returned when a task directive targets a tool
// whose policy is SupportForbidden.
type ErrTaskForbidden struct {
	Tool string
}

func (e *ErrTaskForbidden) Error() string {
	return fmt.Sprintf("tool %q does not support task-augmented calls", e.Tool)
}

// ErrTaskRequired is returned when a tool requires task augmentation but
// the incoming call carried no task directive.
type ErrTaskRequired struct {
	Tool string
}

func (e *ErrTaskRequired) Error() string {
	return fmt.Sprintf("tool %q requires a task directive", e.Tool)
}

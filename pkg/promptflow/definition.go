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

import "fmt"

// ExecutionMode controls how eagerly the executor attempts a step
// server-side before handing it to the client.
type ExecutionMode string

const (
	// ServerSide steps are always attempted on the server; a step that
	// cannot be resolved or whose tool call fails is deferred to the
	// client with the matching pause reason, and the task is not failed.
	ServerSide ExecutionMode = "server_side"

	// ClientSide steps are never attempted server-side; they are
	// always handed to the client as the next action.
	ClientSide ExecutionMode = "client_side"

	// BestEffort steps are attempted server-side, and fall back to a
	// client-side hand-off without failing the workflow if they
	// cannot be resolved or their guard evaluates false.
	BestEffort ExecutionMode = "best_effort"
)

// Valid reports whether m is one of the three recognized modes.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ServerSide, ClientSide, BestEffort:
		return true
	default:
		return false
	}
}

// SourceKind discriminates the variants of DataSource.
type SourceKind string

const (
	// SourcePromptArg reads from the prompt's own invocation arguments.
	SourcePromptArg SourceKind = "prompt_arg"
	// SourceStepOutput reads a field out of a prior step's recorded output.
	SourceStepOutput SourceKind = "step_output"
	// SourceConstant supplies a fixed value.
	SourceConstant SourceKind = "constant"
	// SourceTaskVariable reads a field out of the bound task's variables.
	SourceTaskVariable SourceKind = "task_variable"
)

// DataSource describes where a single step input argument's value
// comes from. Exactly one of the kind-specific fields is meaningful,
// selected by Kind.
type DataSource struct {
	Kind SourceKind `json:"kind"`

	// PromptArgName names the prompt argument to read, for Kind ==
	// SourcePromptArg.
	PromptArgName string `json:"promptArgName,omitempty"`

	// StepID and Field identify the prior step and, optionally, a
	// gojq-style field path into that step's output, for Kind ==
	// SourceStepOutput.
	StepID string `json:"stepId,omitempty"`
	Field  string `json:"field,omitempty"`

	// Constant is the literal value to use, for Kind == SourceConstant.
	Constant any `json:"constant,omitempty"`

	// VariableKey and VarField identify a task variable and, optionally,
	// a field path into it, for Kind == SourceTaskVariable.
	VariableKey string `json:"variableKey,omitempty"`
	VarField    string `json:"varField,omitempty"`
}

// Validate checks a DataSource is internally consistent for its Kind.
func (d DataSource) Validate() error {
	switch d.Kind {
	case SourcePromptArg:
		if d.PromptArgName == "" {
			return fmt.Errorf("promptArgName is required for kind %q", d.Kind)
		}
	case SourceStepOutput:
		if d.StepID == "" {
			return fmt.Errorf("stepId is required for kind %q", d.Kind)
		}
	case SourceConstant:
		// Constant may legitimately be any JSON value, including nil.
	case SourceTaskVariable:
		if d.VariableKey == "" {
			return fmt.Errorf("variableKey is required for kind %q", d.Kind)
		}
	default:
		return fmt.Errorf("unrecognized data source kind %q", d.Kind)
	}
	return nil
}

// WorkflowStep is one entry in a WorkflowDefinition's fixed step order.
// A step names a tool to invoke, the inputs it needs (each bound to a
// DataSource), how eagerly to attempt it, and optional guidance text
// surfaced to the client when the step is handed off.
type WorkflowStep struct {
	// ID uniquely identifies the step within its workflow; later
	// steps reference it via DataSource.StepID.
	ID string `json:"id"`

	// Tool is the name of the MCP tool this step invokes.
	Tool string `json:"tool"`

	// Inputs maps the tool's argument names to where their values
	// come from.
	Inputs map[string]DataSource `json:"inputs,omitempty"`

	// Mode controls server-side vs. client-side execution for this
	// step; defaults to BestEffort if left empty.
	Mode ExecutionMode `json:"mode,omitempty"`

	// Guidance is free text surfaced to the client when this step is
	// handed off instead of executed server-side.
	Guidance string `json:"guidance,omitempty"`

	// When is an optional expr-lang boolean expression evaluated
	// against already-resolved step outputs and task variables; a
	// BestEffort step whose guard evaluates false is deferred to the
	// client without being attempted. Empty means always attempt.
	When string `json:"when,omitempty"`

	// Binding is the display name under which this step's output is
	// advertised to the client once completed (CompletedStep.Binding,
	// and the `_meta.pmcp.workflow.completed[].binding` wire field). It
	// is cosmetic: server-side resolution of SourceStepOutput always
	// keys off ID, never Binding. Empty means the step's output is not
	// named for the client.
	Binding string `json:"binding,omitempty"`
}

// WorkflowDefinition is a flat, ordered list of steps bound to a
// single MCP prompt. It has no branches: Steps always run in the
// order they appear, and the only control flow is a step being
// skipped (guard false) or deferred (could not resolve server-side).
type WorkflowDefinition struct {
	// Name identifies the workflow and, by convention, matches the
	// MCP prompt name it is attached to.
	Name string `json:"name"`

	// Description is human-readable documentation for the workflow.
	Description string `json:"description,omitempty"`

	// Steps is the fixed, ordered list of steps.
	Steps []WorkflowStep `json:"steps"`

	// TaskTTLMs overrides the default task TTL for tasks created by
	// this workflow; zero means use the server's configured workflow TTL.
	TaskTTLMs int64 `json:"taskTtlMs,omitempty"`

	// TaskSupport declares whether this workflow may be bound to a
	// durable task at all. When false, no step may read a
	// SourceTaskVariable data source, since there is no task to read
	// variables from.
	TaskSupport bool `json:"taskSupport"`
}

// Validate checks structural well-formedness: non-empty name and step
// list, unique step IDs, every DataSource internally consistent, every
// StepOutput reference pointing only at an earlier step (never itself
// or a later one, since there are no cycles or forward references in a
// linear list), and every Mode recognized.
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow: name is required")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %q: at least one step is required", d.Name)
	}

	seen := make(map[string]int, len(d.Steps))
	for i, step := range d.Steps {
		if step.ID == "" {
			return fmt.Errorf("workflow %q: step %d: id is required", d.Name, i)
		}
		if prior, dup := seen[step.ID]; dup {
			return fmt.Errorf("workflow %q: step %q duplicates the id of step %d", d.Name, step.ID, prior)
		}
		seen[step.ID] = i

		if step.Tool == "" {
			return fmt.Errorf("workflow %q: step %q: tool is required", d.Name, step.ID)
		}
		if step.Mode != "" && !step.Mode.Valid() {
			return fmt.Errorf("workflow %q: step %q: unrecognized mode %q", d.Name, step.ID, step.Mode)
		}

		for argName, src := range step.Inputs {
			if err := src.Validate(); err != nil {
				return fmt.Errorf("workflow %q: step %q: input %q: %w", d.Name, step.ID, argName, err)
			}
			if src.Kind == SourceStepOutput {
				refIdx, ok := seen[src.StepID]
				if !ok || refIdx >= i {
					return fmt.Errorf("workflow %q: step %q: input %q references step %q, which must be an earlier step in the list", d.Name, step.ID, argName, src.StepID)
				}
			}
			if src.Kind == SourceTaskVariable && !d.TaskSupport {
				return fmt.Errorf("workflow %q: step %q: input %q reads a task variable, but taskSupport is false", d.Name, step.ID, argName)
			}
		}

		if step.Mode == ClientSide {
			for argName, src := range step.Inputs {
				if src.Kind != SourceStepOutput {
					continue
				}
				dep, ok := d.StepByID(src.StepID)
				if ok && dep.Mode != ClientSide && dep.Binding == "" {
					return fmt.Errorf("workflow %q: step %q: input %q depends on server-side step %q, which must declare a binding for a client-side step to reference its output", d.Name, step.ID, argName, src.StepID)
				}
			}
		}
	}
	return nil
}

// StepByID returns the step with the given ID, or false if none matches.
func (d *WorkflowDefinition) StepByID(id string) (WorkflowStep, bool) {
	for _, step := range d.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return WorkflowStep{}, false
}

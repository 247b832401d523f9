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
	"context"
	"fmt"
)

// Invoker calls an MCP tool by name with already-resolved arguments
// and returns its output as a plain value. It is the executor's only
// external collaborator for running steps; the concrete implementation
// typically wraps an mcp-go client or, server-side, dispatches directly
// to a registered tool handler.
type Invoker interface {
	InvokeTool(ctx context.Context, tool string, args map[string]any) (any, error)
}

// SchemaLookup resolves a tool's declared JSON Schema input schema, if
// any is known. A nil SchemaLookup or a tool with no known schema
// simply skips validation.
type SchemaLookup interface {
	SchemaFor(tool string) (map[string]any, bool)
}

// Executor runs a WorkflowDefinition's steps as far as it can
// server-side before handing control back to the client.
type Executor struct {
	invoker   Invoker
	schemas   SchemaLookup
	validator SchemaValidator
}

// NewExecutor builds an Executor. schemas and validator may both be
// nil, in which case input validation is skipped entirely.
func NewExecutor(invoker Invoker, schemas SchemaLookup, validator SchemaValidator) *Executor {
	return &Executor{invoker: invoker, schemas: schemas, validator: validator}
}

// Result is what one Run call produces: the updated progress record,
// the ordered remaining steps the client is responsible for (if the
// workflow did not finish), and the conversation trace for every step
// this call attempted. A tool failure is never reported as an error
// here — it produces a failed_retryable or failed_terminal remaining
// step instead, and the owning task is left running. bridge.go is
// responsible for deciding what a failure means for the task's status.
type Result struct {
	Progress  *WorkflowProgress
	Remaining []RemainingStep
	Trace     []TraceMessage
}

// Run advances progress through def.Steps as far as it can, starting
// at progress.CurrentIndex. promptArgs and variables feed DataSource
// resolution for SourcePromptArg and SourceTaskVariable respectively.
//
// outputs accumulates the full, unprojected output of every step this
// call executes, seeded with the (already truncated) result summaries
// of steps completed in prior calls; a step whose input depends on a
// step completed in an earlier call therefore only sees that step's
// persisted summary, never its original full output, since the full
// value was never kept around across calls.
func (e *Executor) Run(ctx context.Context, def *WorkflowDefinition, progress *WorkflowProgress, promptArgs map[string]string, variables map[string]any) *Result {
	outputs := make(map[string]any, len(progress.Completed))
	for _, c := range progress.Completed {
		outputs[c.Name] = c.ResultSummary
	}

	result := &Result{Progress: progress}

	for progress.CurrentIndex < len(def.Steps) {
		step := def.Steps[progress.CurrentIndex]
		index := progress.CurrentIndex
		mode := step.Mode
		if mode == "" {
			mode = BestEffort
		}

		if mode == ClientSide {
			progress.PauseReason = PauseClientStep
			break
		}

		rc := resolveContext{promptArgs: promptArgs, outputs: outputs, variables: variables}
		args, err := resolveInputs(step, rc)
		if err != nil {
			progress.PauseReason = PauseUnresolvedInput
			break
		}

		if mode == BestEffort && step.When != "" {
			ok, err := evalGuard(step.When, args, outputs, variables)
			if err != nil {
				progress.PauseReason = PauseUnresolvedInput
				break
			}
			if !ok {
				progress.PauseReason = PauseGuardSkipped
				break
			}
		}

		if e.validator != nil && e.schemas != nil {
			if schema, found := e.schemas.SchemaFor(step.Tool); found {
				if err := e.validator.Validate(schema, args); err != nil {
					progress.PauseReason = PauseUnresolvedInput
					break
				}
			}
		}

		result.Trace = append(result.Trace, TraceMessage{
			Role: TraceRoleAssistant,
			Text: fmt.Sprintf("calling tool %s with %v", step.Tool, args),
		})

		output, err := e.invoker.InvokeTool(ctx, step.Tool, args)
		if err != nil {
			progress.PauseReason = ClassifyFailure(err)
			result.Trace = append(result.Trace, TraceMessage{
				Role: TraceRoleUser,
				Text: fmt.Sprintf("result: step %q failed: %v", step.ID, err),
			})
			break
		}

		result.Trace = append(result.Trace, TraceMessage{
			Role: TraceRoleUser,
			Text: fmt.Sprintf("result: %v", output),
		})

		outputs[step.ID] = output
		progress.RecordCompleted(step, index, Summarize(output, DefaultResultSummaryMaxBytes))
	}

	if !progress.Done(def) {
		result.Remaining = RemainingSteps(def, progress, outputs)
		progress.Remaining = result.Remaining
	} else {
		progress.Remaining = nil
	}
	return result
}

// RemainingSteps projects every step from progress.CurrentIndex onward
// into the client-facing shape. The first entry carries
// progress.PauseReason, the reason execution actually stopped; every
// step after it has not been attempted at all, so it carries the same
// reason, since the spec describes pause_reason as applying to "the
// remaining steps" as a group rather than computing a distinct reason
// for steps the executor never looked at.
func RemainingSteps(def *WorkflowDefinition, progress *WorkflowProgress, outputs map[string]any) []RemainingStep {
	remaining := make([]RemainingStep, 0, len(def.Steps)-progress.CurrentIndex)
	for i, step := range def.Steps[progress.CurrentIndex:] {
		remaining = append(remaining, RemainingStep{
			Index:        progress.CurrentIndex + i,
			Name:         step.ID,
			Tool:         step.Tool,
			PauseReason:  progress.PauseReason,
			Guidance:     step.Guidance,
			InputSummary: inputSummary(step, outputs),
		})
	}
	return remaining
}

// inputSummary best-effort resolves a step's constant and step-output
// inputs for display; a step output that is not yet available, and
// every prompt-arg or task-variable input, is simply omitted rather
// than surfaced as an error, since this is advisory text for the
// client, not a resolution attempt.
func inputSummary(step WorkflowStep, outputs map[string]any) map[string]any {
	if len(step.Inputs) == 0 {
		return nil
	}
	summary := make(map[string]any, len(step.Inputs))
	for name, src := range step.Inputs {
		switch src.Kind {
		case SourceConstant:
			summary[name] = src.Constant
		case SourceStepOutput:
			if v, ok := outputs[src.StepID]; ok {
				summary[name] = v
			}
		}
	}
	if len(summary) == 0 {
		return nil
	}
	return summary
}

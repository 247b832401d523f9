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

import "github.com/google/uuid"

// ProgressSchemaVersion is stamped into every WorkflowProgress so a
// future reader can tell which shape it is looking at. Evolution of
// this schema is additive only: new fields may be appended, but an
// existing field's meaning or JSON key never changes, so an older
// client reading a newer progress value still understands every field
// it recognizes.
const ProgressSchemaVersion = 1

// PauseReason explains why a workflow handed control back to the
// client instead of finishing server-side.
type PauseReason string

const (
	// PauseClientStep means the next step's Mode is ClientSide.
	PauseClientStep PauseReason = "explicit_client_side"
	// PauseUnresolvedInput means a step's inputs could not be resolved
	// server-side, or failed schema validation.
	PauseUnresolvedInput PauseReason = "unresolved_input"
	// PauseGuardSkipped means a BestEffort step's guard evaluated
	// false and the step was deferred to the client. Not part of the
	// wire pause_reason enumeration this package was grounded on; kept
	// as a supplemented value (guards are a supplemented feature) so a
	// reader can still distinguish "skipped on purpose" from
	// "could not resolve".
	PauseGuardSkipped PauseReason = "guard_skipped"
	// PauseToolFailedRetryable means a step's tool invocation failed in
	// a way its error marked safe to retry.
	PauseToolFailedRetryable PauseReason = "failed_retryable"
	// PauseToolFailedTerminal means a step's tool invocation failed and
	// nothing marked it retryable.
	PauseToolFailedTerminal PauseReason = "failed_terminal"
)

// CompletedStep records one step the executor or the continuation
// middleware ran to completion. ResultSummary is a bounded, allow-listed
// projection of the tool's output; the full output never lives here —
// it exists only in the in-memory execution context for the duration
// of one Executor.Run call, and in the conversation trace returned to
// the client for that call.
type CompletedStep struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	Tool          string `json:"tool"`
	Binding       string `json:"binding,omitempty"`
	ResultSummary any    `json:"resultSummary,omitempty"`
}

// RemainingStep is the client-facing projection of a step still to be
// run: no resolved argument values beyond what InputSummary chooses to
// surface, only what a client needs to invoke it itself.
type RemainingStep struct {
	Index        int            `json:"index"`
	Name         string         `json:"name"`
	Tool         string         `json:"tool"`
	PauseReason  PauseReason    `json:"pauseReason"`
	Guidance     string         `json:"guidance,omitempty"`
	InputSummary map[string]any `json:"inputSummary,omitempty"`
}

// WorkflowProgress is the durable record of how far a workflow's
// execution has gotten. It is stored under the task's reserved
// `wf.progress` variable and never constructed by a client directly;
// every field that survives a round trip through JSON must remain
// meaningful to a reader that has never seen a newer field this
// package later adds.
type WorkflowProgress struct {
	SchemaVersion int             `json:"schemaVersion"`
	WorkflowName  string          `json:"workflowName"`
	CorrelationID string          `json:"correlationId"`
	TotalSteps    int             `json:"totalSteps"`
	CurrentIndex  int             `json:"currentIndex"`
	Completed     []CompletedStep `json:"completed"`
	Remaining     []RemainingStep `json:"remaining,omitempty"`
	PauseReason   PauseReason     `json:"pauseReason,omitempty"`
}

// NewWorkflowProgress starts an empty progress record for def.
// CorrelationID binds every step this run completes to one UUIDv4, so
// a client or log aggregator can group a workflow's steps without
// that identifier needing to resist guessing the way TaskId does.
func NewWorkflowProgress(def *WorkflowDefinition) *WorkflowProgress {
	return &WorkflowProgress{
		SchemaVersion: ProgressSchemaVersion,
		WorkflowName:  def.Name,
		CorrelationID: uuid.NewString(),
		TotalSteps:    len(def.Steps),
		CurrentIndex:  0,
	}
}

// Done reports whether every step in def has been completed.
func (p *WorkflowProgress) Done(def *WorkflowDefinition) bool {
	return p.CurrentIndex >= len(def.Steps)
}

// RecordCompleted appends a completed step and advances the cursor.
// index is the step's position in def.Steps; resultSummary is the
// already-projected, already-bounded summary of its output, never the
// full output value.
func (p *WorkflowProgress) RecordCompleted(step WorkflowStep, index int, resultSummary any) {
	p.Completed = append(p.Completed, CompletedStep{
		Index:         index,
		Name:          step.ID,
		Tool:          step.Tool,
		Binding:       step.Binding,
		ResultSummary: resultSummary,
	})
	p.CurrentIndex++
	p.PauseReason = ""
}

// ToVariablePatch projects the progress into the `wf.` namespaced
// patch applied to the owning task's variables.
func (p *WorkflowProgress) ToVariablePatch() map[string]any {
	return map[string]any{
		"wf.progress": p,
	}
}

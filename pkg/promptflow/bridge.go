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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/conductor-tasks/pkg/task"
)

// Bridge is the C8 task bridge: it owns the durable-first dual-write
// between a task's variables and the prompt result handed back to the
// client, and the `_meta.pmcp.*` handoff block that tells the client
// which task this prompt's execution is bound to and what remains.
type Bridge struct {
	store    *task.Store
	executor *Executor
}

// NewBridge builds a Bridge over store and executor.
func NewBridge(store *task.Store, executor *Executor) *Bridge {
	return &Bridge{store: store, executor: executor}
}

// StartParams carries the inputs needed to begin a workflow-bound
// task from a prompts/get call.
type StartParams struct {
	Owner      task.OwnerId
	Def        *WorkflowDefinition
	PromptArgs map[string]string
	TTLMs      int64
}

// Start creates a new task bound to def, runs the executor as far as
// it can go, and returns the mcp.GetPromptResult the prompts/get
// handler should reply with.
func (b *Bridge) Start(ctx context.Context, p StartParams) (*mcp.GetPromptResult, error) {
	progress := NewWorkflowProgress(p.Def)

	rec, err := b.store.Create(ctx, task.CreateParams{
		OwnerID:   p.Owner,
		Origin:    "prompts/get:" + p.Def.Name,
		TTLMs:     p.TTLMs,
		Variables: task.Variables(progress.ToVariablePatch()),
	})
	if err != nil {
		return nil, fmt.Errorf("promptflow: create task: %w", err)
	}

	intent := fmt.Sprintf("Start workflow %q with arguments: %v", p.Def.Name, p.PromptArgs)
	return b.advance(ctx, rec, p.Def, progress, p.PromptArgs, intent)
}

// ContinueParams carries the inputs needed to resume a workflow-bound
// task from a follow-up prompts/get that carries its _task_id.
type ContinueParams struct {
	Owner      task.OwnerId
	TaskID     task.Id
	Def        *WorkflowDefinition
	PromptArgs map[string]string
}

// Continue resumes a previously paused workflow task and runs the
// executor as far as it can go from where it left off.
func (b *Bridge) Continue(ctx context.Context, p ContinueParams) (*mcp.GetPromptResult, error) {
	rec, err := b.store.Get(ctx, p.Owner, p.TaskID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return nil, &task.InvalidTransitionError{From: rec.Status, To: task.StatusWorking}
	}

	progress, err := loadProgress(rec)
	if err != nil {
		return nil, fmt.Errorf("promptflow: load progress: %w", err)
	}

	intent := fmt.Sprintf("Resume workflow %q (task %s)", p.Def.Name, p.TaskID)
	return b.advance(ctx, rec, p.Def, progress, p.PromptArgs, intent)
}

// advance runs the executor, persists the resulting state durably
// before constructing any client-facing response (dual-write ordering,
// spec.md §4.8: task store first, execution context second), and
// builds the GetPromptResult.
//
// A tool failure during a step never fails the task: the executor
// already turned it into a failed_retryable/failed_terminal remaining
// step, so the only terminal transition advance ever drives is
// completion once every step has run.
func (b *Bridge) advance(ctx context.Context, rec *task.Record, def *WorkflowDefinition, progress *WorkflowProgress, promptArgs map[string]string, intent string) (*mcp.GetPromptResult, error) {
	variables := map[string]any(rec.Variables)
	result := b.executor.Run(ctx, def, progress, promptArgs, variables)

	patch := result.Progress.ToVariablePatch()
	for _, c := range result.Progress.Completed {
		patch[fmt.Sprintf("wf.step.%d.status", c.Index)] = "completed"
		if c.Binding != "" {
			patch[fmt.Sprintf("wf.step.%d.binding", c.Index)] = c.Binding
		}
		patch[fmt.Sprintf("wf.step.%d.result_summary", c.Index)] = c.ResultSummary
	}
	for _, r := range result.Remaining {
		patch[fmt.Sprintf("wf.step.%d.status", r.Index)] = "pending"
	}

	if _, err := b.store.SetVariables(ctx, rec.OwnerID, rec.TaskID, patch); err != nil {
		return nil, fmt.Errorf("promptflow: persist progress: %w", err)
	}

	if result.Progress.Done(def) {
		if _, err := b.store.CompleteWithResult(ctx, rec.OwnerID, rec.TaskID, finalSummary(result.Progress)); err != nil {
			return nil, fmt.Errorf("promptflow: record completion: %w", err)
		}
	}

	return b.buildResult(def, rec.TaskID, result, intent), nil
}

// pmcpHandoff is the out-of-band handoff block this bridge attaches to
// mcp.GetPromptResult's embedded Result.Meta under the "pmcp" key. It
// never travels inside message text: Meta is the extension point
// mcp-go's result types already carry for exactly this purpose, so the
// handoff survives round trips through any MCP client without a
// client having to scrape prose.
type pmcpHandoff struct {
	TaskID   task.Id      `json:"taskId"`
	Workflow pmcpWorkflow `json:"workflow"`
}

type pmcpWorkflow struct {
	Status           string              `json:"status"`
	Completed        []pmcpCompletedStep `json:"completed"`
	Remaining        []pmcpRemainingStep `json:"remaining,omitempty"`
	ContinuationHint string              `json:"continuation_hint,omitempty"`
}

type pmcpCompletedStep struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Tool    string `json:"tool"`
	Binding string `json:"binding,omitempty"`
}

type pmcpRemainingStep struct {
	Index        int            `json:"index"`
	Name         string         `json:"name"`
	Tool         string         `json:"tool"`
	PauseReason  PauseReason    `json:"pause_reason"`
	Guidance     string         `json:"guidance,omitempty"`
	InputSummary map[string]any `json:"input_summary,omitempty"`
}

// buildResult reconstructs the conversation trace spec.md §4.7
// describes — a user intent message, an assistant plan message, one
// assistant/user pair per step the executor attempted this call, and a
// closing assistant handoff message — and attaches the structured
// handoff block to the result's _meta.pmcp.
func (b *Bridge) buildResult(def *WorkflowDefinition, taskID task.Id, result *Result, intent string) *mcp.GetPromptResult {
	var messages []mcp.PromptMessage
	messages = append(messages, mcp.PromptMessage{
		Role:    mcp.RoleUser,
		Content: mcp.NewTextContent(intent),
	})
	messages = append(messages, mcp.PromptMessage{
		Role:    mcp.RoleAssistant,
		Content: mcp.NewTextContent(planText(def)),
	})
	for _, m := range result.Trace {
		messages = append(messages, mcp.PromptMessage{
			Role:    traceMCPRole(m.Role),
			Content: mcp.NewTextContent(m.Text),
		})
	}
	messages = append(messages, mcp.PromptMessage{
		Role:    mcp.RoleAssistant,
		Content: mcp.NewTextContent(handoffText(def, result)),
	})

	handoff := pmcpHandoff{
		TaskID: taskID,
		Workflow: pmcpWorkflow{
			Status:    workflowStatus(def, result),
			Completed: completedSteps(result),
			Remaining: remainingSteps(result),
		},
	}
	if !result.Progress.Done(def) {
		handoff.Workflow.ContinuationHint = fmt.Sprintf("call prompts/get on %q with _task_id=%s to continue", def.Name, taskID)
	}

	return &mcp.GetPromptResult{
		Result: mcp.Result{
			Meta: map[string]any{"pmcp": handoff},
		},
		Description: def.Description,
		Messages:    messages,
	}
}

func traceMCPRole(r TraceRole) mcp.Role {
	if r == TraceRoleUser {
		return mcp.RoleUser
	}
	return mcp.RoleAssistant
}

func workflowStatus(def *WorkflowDefinition, result *Result) string {
	if result.Progress.Done(def) {
		return "all_completed"
	}
	return "partial"
}

func completedSteps(result *Result) []pmcpCompletedStep {
	steps := make([]pmcpCompletedStep, 0, len(result.Progress.Completed))
	for _, c := range result.Progress.Completed {
		steps = append(steps, pmcpCompletedStep{
			Index:   c.Index,
			Name:    c.Name,
			Tool:    c.Tool,
			Binding: c.Binding,
		})
	}
	return steps
}

func remainingSteps(result *Result) []pmcpRemainingStep {
	steps := make([]pmcpRemainingStep, 0, len(result.Remaining))
	for _, r := range result.Remaining {
		steps = append(steps, pmcpRemainingStep{
			Index:        r.Index,
			Name:         r.Name,
			Tool:         r.Tool,
			PauseReason:  r.PauseReason,
			Guidance:     r.Guidance,
			InputSummary: r.InputSummary,
		})
	}
	return steps
}

// planText lists every step a workflow will run, in order, as the
// assistant's upfront plan.
func planText(def *WorkflowDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan for workflow %q:", def.Name)
	for i, step := range def.Steps {
		fmt.Fprintf(&b, "\n%d. %s (tool: %s)", i+1, step.ID, step.Tool)
	}
	return b.String()
}

// handoffText is the closing assistant message summarizing how this
// call ended. The structured form of the same information lives in
// _meta.pmcp; this text is for a human or a client that only renders
// message content.
func handoffText(def *WorkflowDefinition, result *Result) string {
	if result.Progress.Done(def) {
		return "Workflow complete."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d steps completed. Remaining steps for you to perform:", len(result.Progress.Completed), len(def.Steps))
	for _, r := range result.Remaining {
		fmt.Fprintf(&b, "\n- %s (tool: %s, reason: %s)", r.Name, r.Tool, r.PauseReason)
		if r.Guidance != "" {
			fmt.Fprintf(&b, ": %s", r.Guidance)
		}
	}
	return b.String()
}

// loadProgress reads the `wf.progress` variable back off a task
// record. It is stored as a plain map[string]any (the JSON shape
// Variables round-trips through), so it is re-decoded into a
// WorkflowProgress here rather than type-asserted directly.
func loadProgress(rec *task.Record) (*WorkflowProgress, error) {
	raw, ok := rec.Variables["wf.progress"]
	if !ok {
		return nil, fmt.Errorf("task %q has no workflow progress", rec.TaskID)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var progress WorkflowProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// finalSummary projects the last completed step's summary into the
// bounded result a completed task records.
func finalSummary(progress *WorkflowProgress) map[string]any {
	if len(progress.Completed) == 0 {
		return nil
	}
	last := progress.Completed[len(progress.Completed)-1]
	summary, ok := last.ResultSummary.(map[string]any)
	if !ok {
		return map[string]any{"status": "completed"}
	}
	return summary
}

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

package mcptask

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/conductor-tasks/pkg/promptflow"
	"github.com/tombee/conductor-tasks/pkg/task"
)

type fakeDefinitions struct {
	defs map[string]*promptflow.WorkflowDefinition
}

func (f fakeDefinitions) DefinitionByName(name string) (*promptflow.WorkflowDefinition, bool) {
	d, ok := f.defs[name]
	return d, ok
}

func twoStepWorkflow() *promptflow.WorkflowDefinition {
	return &promptflow.WorkflowDefinition{
		Name: "approve_and_launch",
		Steps: []promptflow.WorkflowStep{
			{ID: "approve", Tool: "approve", Mode: promptflow.ClientSide},
			{ID: "launch", Tool: "launch", Mode: promptflow.ClientSide},
		},
	}
}

func seedContinuationTask(t *testing.T, store *task.Store, owner task.OwnerId, def *promptflow.WorkflowDefinition) task.Id {
	t.Helper()
	rec, err := store.Create(context.Background(), task.CreateParams{OwnerID: owner, TTLMs: 60000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	progress := promptflow.NewWorkflowProgress(def)
	if _, err := store.SetVariables(context.Background(), owner, rec.TaskID, progress.ToVariablePatch()); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	return rec.TaskID
}

func TestContinuationAdvancesOnMatchingStep(t *testing.T) {
	store := task.NewStore(task.NewMemoryBackend())
	def := twoStepWorkflow()
	taskID := seedContinuationTask(t, store, "alice", def)

	cm := NewContinuationMiddleware(store, fakeDefinitions{defs: map[string]*promptflow.WorkflowDefinition{def.Name: def}}, fixedOwner{owner: "alice"}, 4096)
	handler := cm.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(`{"approved":true}`)}}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "approve"
	req.Params.Arguments = map[string]any{"_task_id": string(taskID), "approver": "u"}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}

	rec, err := store.Get(context.Background(), "alice", taskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	progress, err := loadProgress(rec)
	if err != nil {
		t.Fatalf("loadProgress: %v", err)
	}
	if progress.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", progress.CurrentIndex)
	}
	if len(progress.Completed) != 1 || progress.Completed[0].Name != "approve" {
		t.Error("expected the approve step to be recorded as completed")
	}
}

func TestContinuationRejectsOutOfOrderStep(t *testing.T) {
	store := task.NewStore(task.NewMemoryBackend())
	def := twoStepWorkflow()
	taskID := seedContinuationTask(t, store, "alice", def)

	cm := NewContinuationMiddleware(store, fakeDefinitions{defs: map[string]*promptflow.WorkflowDefinition{def.Name: def}}, fixedOwner{owner: "alice"}, 4096)
	called := false
	handler := cm.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return &mcp.CallToolResult{}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "launch"
	req.Params.Arguments = map[string]any{"_task_id": string(taskID)}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an out-of-order continuation")
	}
	if called {
		t.Error("the wrapped handler must not run for an out-of-order continuation")
	}
}

func TestContinuationCompletesTaskOnFinalStep(t *testing.T) {
	store := task.NewStore(task.NewMemoryBackend())
	def := twoStepWorkflow()
	taskID := seedContinuationTask(t, store, "alice", def)

	lookup := fakeDefinitions{defs: map[string]*promptflow.WorkflowDefinition{def.Name: def}}
	cm := NewContinuationMiddleware(store, lookup, fixedOwner{owner: "alice"}, 4096)
	approveHandler := cm.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(`{"approved":true}`)}}, nil
	})
	launchHandler := cm.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(`{"launched":true}`)}}, nil
	})

	approveReq := mcp.CallToolRequest{}
	approveReq.Params.Name = "approve"
	approveReq.Params.Arguments = map[string]any{"_task_id": string(taskID)}
	if _, err := approveHandler(context.Background(), approveReq); err != nil {
		t.Fatalf("approve: %v", err)
	}

	launchReq := mcp.CallToolRequest{}
	launchReq.Params.Name = "launch"
	launchReq.Params.Arguments = map[string]any{"_task_id": string(taskID)}
	if _, err := launchHandler(context.Background(), launchReq); err != nil {
		t.Fatalf("launch: %v", err)
	}

	rec, err := store.Get(context.Background(), "alice", taskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
}

func TestContinuationFailedStepLeavesTaskWorking(t *testing.T) {
	store := task.NewStore(task.NewMemoryBackend())
	def := twoStepWorkflow()
	taskID := seedContinuationTask(t, store, "alice", def)

	cm := NewContinuationMiddleware(store, fakeDefinitions{defs: map[string]*promptflow.WorkflowDefinition{def.Name: def}}, fixedOwner{owner: "alice"}, 4096)
	handler := cm.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("approval service unreachable"), nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "approve"
	req.Params.Arguments = map[string]any{"_task_id": string(taskID)}

	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Get(context.Background(), "alice", taskID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != task.StatusWorking {
		t.Errorf("status = %q, want working (a step failure must never fail the task)", rec.Status)
	}

	progress, err := loadProgress(rec)
	if err != nil {
		t.Fatalf("loadProgress: %v", err)
	}
	if progress.PauseReason != promptflow.PauseToolFailedTerminal {
		t.Errorf("pauseReason = %q, want %q", progress.PauseReason, promptflow.PauseToolFailedTerminal)
	}
	if len(progress.Remaining) != 2 {
		t.Errorf("remaining = %d steps, want 2 (the failed step and the one after it)", len(progress.Remaining))
	}
}

func TestContinuationStripsTaskIDFromArguments(t *testing.T) {
	store := task.NewStore(task.NewMemoryBackend())
	def := twoStepWorkflow()
	taskID := seedContinuationTask(t, store, "alice", def)

	cm := NewContinuationMiddleware(store, fakeDefinitions{defs: map[string]*promptflow.WorkflowDefinition{def.Name: def}}, fixedOwner{owner: "alice"}, 4096)
	var sawTaskID bool
	handler := cm.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, sawTaskID = req.GetArguments()["_task_id"]
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("null")}}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "approve"
	req.Params.Arguments = map[string]any{"_task_id": string(taskID)}

	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawTaskID {
		t.Error("_task_id must be stripped before reaching the wrapped handler")
	}
}

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
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-tasks/pkg/task"
)

func newTestBridge(invoker Invoker) (*Bridge, *task.Store) {
	store := task.NewStore(task.NewMemoryBackend())
	executor := NewExecutor(invoker, nil, nil)
	return NewBridge(store, executor), store
}

// allText concatenates every message's text, in order, so assertions
// about the trace don't need to pin down exact message indices.
func allText(t *testing.T, result *mcp.GetPromptResult) string {
	t.Helper()
	var out string
	for _, m := range result.Messages {
		content, ok := m.Content.(mcp.TextContent)
		require.True(t, ok)
		out += content.Text + "\n"
	}
	return out
}

func handoff(t *testing.T, result *mcp.GetPromptResult) pmcpHandoff {
	t.Helper()
	raw, ok := result.Meta["pmcp"]
	require.True(t, ok, "expected a pmcp block in _meta")
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	var h pmcpHandoff
	require.NoError(t, json.Unmarshal(data, &h))
	return h
}

func TestBridgeStartCompletesServerSideWorkflow(t *testing.T) {
	def := &WorkflowDefinition{
		Name: "deploy",
		Steps: []WorkflowStep{
			{ID: "build", Tool: "build_image", Mode: ServerSide},
		},
	}
	invoker := &fakeInvoker{outputs: map[string]any{"build_image": map[string]any{"status": "ok"}}}
	bridge, store := newTestBridge(invoker)

	result, err := bridge.Start(context.Background(), StartParams{
		Owner: "alice",
		Def:   def,
		TTLMs: 60000,
	})
	require.NoError(t, err)
	assert.Contains(t, allText(t, result), "Workflow complete.")

	h := handoff(t, result)
	assert.Equal(t, "all_completed", h.Workflow.Status)
	require.Len(t, h.Workflow.Completed, 1)
	assert.Equal(t, "build", h.Workflow.Completed[0].Name)

	page, err := store.List(context.Background(), "alice", task.Filter{}, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, task.StatusCompleted, page.Items[0].Status)
}

func TestBridgeStartPausesOnClientStep(t *testing.T) {
	def := &WorkflowDefinition{
		Name: "deploy",
		Steps: []WorkflowStep{
			{ID: "approve", Tool: "manual_approval", Mode: ClientSide},
		},
	}
	bridge, store := newTestBridge(&fakeInvoker{})

	result, err := bridge.Start(context.Background(), StartParams{Owner: "alice", Def: def, TTLMs: 60000})
	require.NoError(t, err)
	assert.Contains(t, allText(t, result), "Remaining steps")

	h := handoff(t, result)
	assert.Equal(t, "partial", h.Workflow.Status)
	require.Len(t, h.Workflow.Remaining, 1)
	assert.Equal(t, PauseClientStep, h.Workflow.Remaining[0].PauseReason)
	assert.NotEmpty(t, h.Workflow.ContinuationHint)

	rec, err := store.Get(context.Background(), "alice", h.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusWorking, rec.Status)
}

func TestBridgeContinueResumesFromPause(t *testing.T) {
	def := &WorkflowDefinition{
		Name: "deploy",
		Steps: []WorkflowStep{
			{ID: "approve", Tool: "manual_approval", Mode: ClientSide},
			{ID: "finish", Tool: "finish_deploy", Mode: ServerSide},
		},
	}
	invoker := &fakeInvoker{outputs: map[string]any{"finish_deploy": map[string]any{"status": "done"}}}
	bridge, store := newTestBridge(invoker)

	started, err := bridge.Start(context.Background(), StartParams{Owner: "alice", Def: def, TTLMs: 60000})
	require.NoError(t, err)
	taskID := handoff(t, started).TaskID

	// Simulate the continuation middleware (C9) recording the client's
	// completion of the hand-off step before asking the bridge to
	// advance the rest of the workflow.
	progress := NewWorkflowProgress(def)
	progress.RecordCompleted(def.Steps[0], 0, map[string]any{"approved": true})
	_, err = store.SetVariables(context.Background(), "alice", taskID, progress.ToVariablePatch())
	require.NoError(t, err)

	resumed, err := bridge.Continue(context.Background(), ContinueParams{
		Owner:  "alice",
		TaskID: taskID,
		Def:    def,
	})
	require.NoError(t, err)
	assert.Contains(t, allText(t, resumed), "Workflow complete.")

	rec, err := store.Get(context.Background(), "alice", taskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, rec.Status)
}

func TestBridgeToolFailureLeavesTaskWorking(t *testing.T) {
	def := &WorkflowDefinition{
		Name: "deploy",
		Steps: []WorkflowStep{
			{ID: "build", Tool: "build_image", Mode: ServerSide},
		},
	}
	invoker := &fakeInvoker{errs: map[string]error{"build_image": assertError{}}}
	bridge, store := newTestBridge(invoker)

	result, err := bridge.Start(context.Background(), StartParams{Owner: "alice", Def: def, TTLMs: 60000})
	require.NoError(t, err)

	h := handoff(t, result)
	assert.Equal(t, "partial", h.Workflow.Status)
	require.Len(t, h.Workflow.Remaining, 1)
	assert.Equal(t, PauseToolFailedTerminal, h.Workflow.Remaining[0].PauseReason)

	rec, err := store.Get(context.Background(), "alice", h.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusWorking, rec.Status)
}

type assertError struct{}

func (assertError) Error() string { return "registry unreachable" }

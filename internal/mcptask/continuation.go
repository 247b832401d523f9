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
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-tasks/pkg/promptflow"
	"github.com/tombee/conductor-tasks/pkg/task"
)

// DefinitionLookup resolves a workflow by the name stamped into its
// WorkflowProgress, so the continuation middleware can find the
// definition that was used to start a task without depending on
// whichever registry owns prompts/get.
type DefinitionLookup interface {
	DefinitionByName(name string) (*promptflow.WorkflowDefinition, bool)
}

// ContinuationMiddleware implements C9: it fires when a tools/call
// carries a reserved `_task_id` argument, enforces that the call targets
// the workflow's next expected step, and folds the result back into
// `wf.progress` on success. Grounded on the same request-interception
// shape as TaskMiddleware, generalized per spec.md §4.9.
type ContinuationMiddleware struct {
	store                 *task.Store
	definitions           DefinitionLookup
	owners                OwnerResolver
	resultSummaryMaxBytes int
}

// NewContinuationMiddleware builds a ContinuationMiddleware.
func NewContinuationMiddleware(store *task.Store, definitions DefinitionLookup, owners OwnerResolver, resultSummaryMaxBytes int) *ContinuationMiddleware {
	return &ContinuationMiddleware{store: store, definitions: definitions, owners: owners, resultSummaryMaxBytes: resultSummaryMaxBytes}
}

// Middleware returns the server.ToolHandlerMiddleware this type
// implements. It must be composed outermost (before TaskMiddleware) per
// SPEC_FULL.md §4.E2's continuation -> task-augmentation -> rate
// limiting -> tool ordering.
func (m *ContinuationMiddleware) Middleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			rawTaskID, ok := args["_task_id"]
			if !ok {
				return next(ctx, req)
			}
			taskIDStr, ok := rawTaskID.(string)
			if !ok || taskIDStr == "" {
				return mcp.NewToolResultError("_task_id must be a non-empty string"), nil
			}

			owner, err := m.owners.ResolveOwner(ctx)
			if err != nil {
				return mcp.NewToolResultError("no resolvable owner identity"), nil
			}

			taskID := task.Id(taskIDStr)
			rec, err := m.store.Get(ctx, owner, taskID)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("task %q not found", taskIDStr)), nil
			}

			progress, err := loadProgress(rec)
			if err != nil {
				return mcp.NewToolResultError("task has no workflow progress to continue"), nil
			}

			def, ok := m.definitions.DefinitionByName(progress.WorkflowName)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown workflow %q", progress.WorkflowName)), nil
			}
			if progress.Done(def) {
				return mcp.NewToolResultError("workflow already completed"), nil
			}

			stepIndex := progress.CurrentIndex
			expected := def.Steps[stepIndex]
			if expected.Tool != req.Params.Name {
				return mcp.NewToolResultError(fmt.Sprintf("out of order: expected tool %q next, got %q", expected.Tool, req.Params.Name)), nil
			}

			delete(args, "_task_id")
			req.Params.Arguments = args

			tc := task.NewContext(m.store, owner, taskID)
			ctx = withTaskContext(ctx, tc)

			result, err := next(ctx, req)
			if err != nil {
				m.deferStep(ctx, owner, taskID, def, progress, promptflow.ClassifyFailure(err))
				return nil, err
			}

			value, err := unwrapToolResult(result)
			if err != nil {
				m.deferStep(ctx, owner, taskID, def, progress, promptflow.ClassifyFailure(err))
				return result, nil
			}

			progress.RecordCompleted(expected, stepIndex, promptflow.Summarize(value, m.resultSummaryMaxBytes))
			progress.Remaining = nil
			m.persistProgress(ctx, owner, taskID, progress)

			if progress.Done(def) {
				if _, cerr := tc.Complete(ctx, progress); cerr != nil {
					return nil, cerr
				}
			}
			return result, nil
		}
	}
}

// deferStep records a step failure without ever moving the owning task
// to failed (spec.md §4.9): the task stays working, the failing step
// and everything after it becomes a remaining step carrying reason.
func (m *ContinuationMiddleware) deferStep(ctx context.Context, owner task.OwnerId, id task.Id, def *promptflow.WorkflowDefinition, progress *promptflow.WorkflowProgress, reason promptflow.PauseReason) {
	progress.PauseReason = reason
	progress.Remaining = promptflow.RemainingSteps(def, progress, nil)
	m.persistProgress(ctx, owner, id, progress)
}

func (m *ContinuationMiddleware) persistProgress(ctx context.Context, owner task.OwnerId, id task.Id, progress *promptflow.WorkflowProgress) {
	m.store.SetVariables(ctx, owner, id, progress.ToVariablePatch())
}

func loadProgress(rec *task.Record) (*promptflow.WorkflowProgress, error) {
	raw, ok := rec.Variables["wf.progress"]
	if !ok {
		return nil, fmt.Errorf("no wf.progress variable on task %q", rec.TaskID)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var p promptflow.WorkflowProgress
	if err := json.Unmarshal(encoded, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

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
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-tasks/internal/taskconfig"
	"github.com/tombee/conductor-tasks/pkg/task"
)

// taskDirective is the shape of the `task` argument spec.md §6.1/§8.2's
// S1 scenario shows: `arguments.task = {ttlMs?, progressToken?}`.
type taskDirective struct {
	TTLMs         int64  `json:"ttlMs"`
	ProgressToken string `json:"progressToken"`
}

// contextKey namespaces values this package stores on a context, in the
// teacher's own style of small unexported key types for context values
// (see internal/mcp/server's request-scoped logger key).
type contextKey string

const taskContextKey contextKey = "mcptask.taskcontext"

// FromContext recovers the *task.Context a tool handler was invoked
// with, if any. Handlers that want to report progress, check
// cancellation, or read workflow variables call this first.
func FromContext(ctx context.Context) (*task.Context, bool) {
	tc, ok := ctx.Value(taskContextKey).(*task.Context)
	return tc, ok
}

func withTaskContext(ctx context.Context, tc *task.Context) context.Context {
	return context.WithValue(ctx, taskContextKey, tc)
}

// TaskMiddleware implements C5: it detects a `task` directive on a
// tools/call, creates a durable task, detaches background execution of
// the wrapped handler, and returns a CreateTaskResult synchronously
// without waiting on the handler. Grounded on handleRun's inline
// rate-limit-then-dispatch shape in the teacher, generalized from an
// inline check into a composable server.ToolHandlerMiddleware per
// SPEC_FULL.md's C5/C9 expansion.
type TaskMiddleware struct {
	store    *task.Store
	policy   *Policy
	executor *Executor
	cfg      *taskconfig.Config
	logger   *slog.Logger
	owners   OwnerResolver
}

// OwnerResolver recovers the calling principal's OwnerId, shared with
// internal/taskrouter's resolver contract so both C4 and C5 resolve
// identity the same way.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context) (task.OwnerId, error)
}

// NewTaskMiddleware builds a TaskMiddleware.
func NewTaskMiddleware(store *task.Store, policy *Policy, executor *Executor, cfg *taskconfig.Config, owners OwnerResolver, logger *slog.Logger) *TaskMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskMiddleware{store: store, policy: policy, executor: executor, cfg: cfg, owners: owners, logger: logger}
}

// Middleware returns the server.ToolHandlerMiddleware this type
// implements, for composing into a Dispatcher's middleware chain.
func (m *TaskMiddleware) Middleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			rawDirective, hasDirective := args["task"]

			support := m.policy.SupportFor(req.Params.Name)
			if support == SupportForbidden && hasDirective {
				return mcp.NewToolResultError((&ErrTaskForbidden{Tool: req.Params.Name}).Error()), nil
			}
			if support == SupportRequired && !hasDirective {
				return mcp.NewToolResultError((&ErrTaskRequired{Tool: req.Params.Name}).Error()), nil
			}
			if !hasDirective {
				return next(ctx, req)
			}

			directive, err := parseTaskDirective(rawDirective)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			owner, err := m.owners.ResolveOwner(ctx)
			if err != nil {
				owner = task.AnonymousOwner
				if !m.cfg.AllowAnonymous {
					return mcp.NewToolResultError("no resolvable owner identity"), nil
				}
			}

			ttl := clampTTL(directive.TTLMs, m.cfg.DefaultTTLMs, m.cfg.MaxTTLMs)

			if n, err := m.store.CountActive(ctx, owner); err == nil && n >= m.cfg.MaxTasksPerOwner {
				return mcp.NewToolResultError("task quota exceeded for this owner"), nil
			}

			delete(args, "task")
			req.Params.Arguments = args

			rec, err := m.store.Create(ctx, task.CreateParams{
				OwnerID:       owner,
				Origin:        "tools/call:" + req.Params.Name,
				TTLMs:         ttl,
				ProgressToken: directive.ProgressToken,
			})
			if err != nil {
				return mcp.NewToolResultError("failed to create task"), nil
			}

			m.executor.Spawn(ctx, rec.TaskID, func(bgCtx context.Context) {
				tc := task.NewContext(m.store, owner, rec.TaskID)
				bgCtx = withTaskContext(bgCtx, tc)

				result, err := next(bgCtx, req)
				if err != nil {
					if _, ferr := tc.Fail(bgCtx, err.Error()); ferr != nil {
						m.logger.Error("failed to record task failure", "task_id", string(rec.TaskID), "error", ferr)
					}
					return
				}

				value, err := unwrapToolResult(result)
				if err != nil {
					if _, ferr := tc.Fail(bgCtx, err.Error()); ferr != nil {
						m.logger.Error("failed to record task failure", "task_id", string(rec.TaskID), "error", ferr)
					}
					return
				}
				if _, cerr := tc.Complete(bgCtx, value); cerr != nil {
					m.logger.Error("failed to commit task result", "task_id", string(rec.TaskID), "error", cerr)
				}
			})

			createResult := task.CreateTaskResult{TaskID: rec.TaskID, Status: task.StatusWorking, TTLMs: ttl, CorrelationID: uuid.NewString()}
			payload, _ := json.Marshal(createResult)
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(payload))}}, nil
		}
	}
}

func parseTaskDirective(raw any) (taskDirective, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return taskDirective{}, err
	}
	var d taskDirective
	if err := json.Unmarshal(encoded, &d); err != nil {
		return taskDirective{}, err
	}
	return d, nil
}

func clampTTL(requested, defaultTTL, maxTTL int64) int64 {
	if requested <= 0 {
		return defaultTTL
	}
	if requested > maxTTL {
		return maxTTL
	}
	return requested
}

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
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/conductor-tasks/internal/taskconfig"
	"github.com/tombee/conductor-tasks/pkg/task"
)

type fixedOwner struct {
	owner task.OwnerId
	err   error
}

func (f fixedOwner) ResolveOwner(context.Context) (task.OwnerId, error) {
	return f.owner, f.err
}

func newTestMiddleware(policy *Policy, cfg *taskconfig.Config) (*TaskMiddleware, *task.Store, *Executor) {
	store := task.NewStore(task.NewMemoryBackend())
	executor := NewExecutor(nil)
	if cfg == nil {
		cfg = taskconfig.DefaultConfig()
	}
	mw := NewTaskMiddleware(store, policy, executor, cfg, fixedOwner{owner: "alice"}, nil)
	return mw, store, executor
}

func TestTaskMiddlewarePassesThroughWithoutDirective(t *testing.T) {
	mw, _, _ := newTestMiddleware(NewPolicy(SupportOptional, nil), nil)
	called := false
	handler := mw.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("ok")}}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "echo"
	req.Params.Arguments = map[string]any{"message": "hi"}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected the wrapped handler to run synchronously when there is no task directive")
	}
	if result.IsError {
		t.Errorf("unexpected error result: %+v", result)
	}
}

func TestTaskMiddlewareCreatesTaskAndRunsInBackground(t *testing.T) {
	mw, store, _ := newTestMiddleware(NewPolicy(SupportOptional, nil), nil)

	reached := make(chan struct{})
	handler := mw.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		close(reached)
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(`{"echo":"hi"}`)}}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "slow_echo"
	req.Params.Arguments = map[string]any{"task": map[string]any{"ttlMs": float64(60000)}, "message": "hi"}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}

	text := result.Content[0].(mcp.TextContent).Text
	var created task.CreateTaskResult
	if err := json.Unmarshal([]byte(text), &created); err != nil {
		t.Fatalf("failed to decode CreateTaskResult: %v", err)
	}
	if created.Status != task.StatusWorking {
		t.Errorf("status = %q, want working", created.Status)
	}
	if created.TTLMs != 60000 {
		t.Errorf("ttlMs = %d, want 60000", created.TTLMs)
	}
	if created.CorrelationID == "" {
		t.Error("correlationId = \"\", want a generated UUID")
	}

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("background handler never ran")
	}

	deadline := time.Now().Add(time.Second)
	var rec *task.Record
	for time.Now().Before(deadline) {
		rec, err = store.Get(context.Background(), "alice", created.TaskID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if rec.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec.Status != task.StatusCompleted {
		t.Fatalf("status = %q, want completed", rec.Status)
	}
}

func TestTaskMiddlewareRejectsForbiddenTool(t *testing.T) {
	mw, _, _ := newTestMiddleware(NewPolicy(SupportOptional, map[string]TaskSupport{"restricted": SupportForbidden}), nil)
	handler := mw.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "restricted"
	req.Params.Arguments = map[string]any{"task": map[string]any{}}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a forbidden tool with a task directive")
	}
}

func TestTaskMiddlewareRequiresDirectiveWhenMandated(t *testing.T) {
	mw, _, _ := newTestMiddleware(NewPolicy(SupportOptional, map[string]TaskSupport{"must_task": SupportRequired}), nil)
	handler := mw.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "must_task"
	req.Params.Arguments = map[string]any{}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when a required-task tool is called without a directive")
	}
}

func TestTaskMiddlewareClampsTTLToMax(t *testing.T) {
	cfg := taskconfig.DefaultConfig()
	cfg.MaxTTLMs = 1000
	mw, _, _ := newTestMiddleware(NewPolicy(SupportOptional, nil), cfg)

	done := make(chan struct{})
	handler := mw.Middleware()(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		close(done)
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("null")}}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "echo"
	req.Params.Arguments = map[string]any{"task": map[string]any{"ttlMs": float64(999999)}}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := result.Content[0].(mcp.TextContent).Text
	var created task.CreateTaskResult
	if err := json.Unmarshal([]byte(text), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.TTLMs != 1000 {
		t.Errorf("ttlMs = %d, want clamped to 1000", created.TTLMs)
	}
	<-done
}

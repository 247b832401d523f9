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
)

// ToolInvoker calls a named tool through a Dispatcher, so the call
// traverses every installed server.ToolHandlerMiddleware exactly as a
// client-issued tools/call would (continuation, task augmentation, rate
// limiting). spec.md §4.7 requires this explicitly: the workflow
// executor "MUST traverse the standard middleware chain... not a
// shortcut path". It implements pkg/promptflow.Invoker for the workflow
// prompt executor; C5's detached execution does not use it, since
// TaskMiddleware runs the rest of the chain directly.
type ToolInvoker struct {
	dispatcher *Dispatcher
}

// NewToolInvoker wraps a Dispatcher.
func NewToolInvoker(dispatcher *Dispatcher) *ToolInvoker {
	return &ToolInvoker{dispatcher: dispatcher}
}

// InvokeTool looks up name's registered handler and calls it with args,
// unwrapping the mcp.CallToolResult into a plain value the caller can
// bind into a workflow execution context or commit as a task result.
func (t *ToolInvoker) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	handler, ok := t.dispatcher.HandlerFor(name)
	if !ok {
		return nil, &ErrUnknownTool{Tool: name}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := handler(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("invoke tool %q: %w", name, err)
	}
	return unwrapToolResult(result)
}

// unwrapToolResult turns an *mcp.CallToolResult into a plain Go value:
// an error for IsError results, the parsed JSON value for a single
// TextContent block that parses as JSON, or the concatenated text
// otherwise. mcp-go tool handlers in this tree return their payload as
// a single JSON-encoded TextContent block (see tool_run.go's
// newSuccessResult/newErrorResult pattern in the teacher), so this
// mirrors the encoding side exactly.
func unwrapToolResult(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	var text string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	if result.IsError {
		if text == "" {
			text = "tool call failed"
		}
		return nil, fmt.Errorf("%s", text)
	}
	if text == "" {
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}
	return text, nil
}

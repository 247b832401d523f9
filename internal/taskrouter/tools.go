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

package taskrouter

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolRegistry adapts mcp-go's AddTool to the MethodRegistry interface
// so Router.Register can attach tasks/get, tasks/result, tasks/list,
// and tasks/cancel as mcp-go tools named task_get, task_result,
// task_list, and task_cancel. mcp-go's public server.MCPServer exposes
// no hook for an arbitrary JSON-RPC method outside tools/prompts/
// resources (confirmed absent across the retrieval pack, see
// capabilities.go), so the transport-agnostic Router is bridged onto
// the one extension point that is real: AddTool.
type toolRegistry struct {
	mcpServer *server.MCPServer
}

// RegisterAsTools exposes r's JSON-RPC methods as mcp-go tools on
// mcpServer, named by replacing the "/" in each method name with "_"
// (tasks/get becomes task_get, and so on). It bypasses the
// task-augmentation and continuation middleware deliberately: these
// are meta-operations on tasks themselves, not domain tool calls that
// could themselves spawn a task.
func (r *Router) RegisterAsTools(mcpServer *server.MCPServer) {
	reg := &toolRegistry{mcpServer: mcpServer}
	r.Register(reg)
}

func (tr *toolRegistry) RegisterMethod(name string, h Handler) {
	toolName := toMCPToolName(name)
	tr.mcpServer.AddTool(mcp.Tool{
		Name:        toolName,
		Description: "task subsystem operation: " + name,
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}, wrapRouterHandler(h))
}

func toMCPToolName(method string) string {
	out := make([]byte, len(method))
	for i := 0; i < len(method); i++ {
		if method[i] == '/' {
			out[i] = '_'
			continue
		}
		out[i] = method[i]
	}
	return string(out)
}

func wrapRouterHandler(h Handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("malformed arguments: " + err.Error()), nil
		}
		result, err := h(ctx, raw)
		if err != nil {
			if rpcErr, ok := err.(*RPCError); ok {
				return mcp.NewToolResultError(rpcErr.Message), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError("failed to encode result: " + err.Error()), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(text))}}, nil
	}
}

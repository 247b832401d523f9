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
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Dispatcher registers tools on the underlying mcp-go server while also
// keeping a local, fully middleware-wrapped copy of each handler so
// in-process callers (the workflow prompt executor of C7, through
// ToolInvoker) can invoke a tool the exact same way a client's
// tools/call would, instead of a shortcut that skips middleware.
// spec.md §4.7 requires this explicitly for the workflow executor.
// Grounded on operations.go's single
// `s.mcpServer.AddTool(tool, handler)` registration point in the
// teacher, generalized into a registry that composes middleware before
// handing the handler to mcp-go.
type Dispatcher struct {
	mcpServer   *server.MCPServer
	middlewares []server.ToolHandlerMiddleware

	mu       sync.RWMutex
	handlers map[string]server.ToolHandlerFunc
}

// NewDispatcher builds a Dispatcher over mcpServer, applying middlewares
// (outermost first) to every handler registered through it.
func NewDispatcher(mcpServer *server.MCPServer, middlewares ...server.ToolHandlerMiddleware) *Dispatcher {
	return &Dispatcher{
		mcpServer:   mcpServer,
		middlewares: middlewares,
		handlers:    make(map[string]server.ToolHandlerFunc),
	}
}

// RegisterTool wraps handler with the dispatcher's middleware chain,
// registers the wrapped handler with the underlying mcp-go server, and
// retains it for in-process invocation.
func (d *Dispatcher) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	wrapped := handler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		wrapped = d.middlewares[i](wrapped)
	}

	d.mu.Lock()
	d.handlers[tool.Name] = wrapped
	d.mu.Unlock()

	d.mcpServer.AddTool(tool, wrapped)
}

// HandlerFor returns the wrapped handler registered for name, if any.
func (d *Dispatcher) HandlerFor(name string) (server.ToolHandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[name]
	return h, ok
}

// ErrUnknownTool is returned when InvokeTool targets a name with no
// registered handler.
type ErrUnknownTool struct {
	Tool string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("no handler registered for tool %q", e.Tool)
}

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

package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-tasks/internal/mcptask"
	"github.com/tombee/conductor-tasks/internal/taskconfig"
	"github.com/tombee/conductor-tasks/pkg/promptflow"
	"github.com/tombee/conductor-tasks/pkg/task"
)

// continuationTaskIDArg is the prompts/get argument a client echoes
// back to resume a workflow-bound task it previously received a pmcp
// handoff for. It mirrors the _task_id argument mcptask.continuation.go
// strips off a tools/call continuation.
const continuationTaskIDArg = "_task_id"

// registerPromptBridge registers one mcp-go prompt per named workflow
// definition, wired to promptflow.Bridge.Start/Continue. Grounded on
// Azure-containerization-assist's prompt registry pattern
// (mcp.NewPrompt + server.PromptHandlerFunc + mcpServer.AddPrompt),
// generalized from static canned text to the bridge's dynamic
// Start/Continue trace.
func registerPromptBridge(mcpSrv *server.MCPServer, bridge *promptflow.Bridge, definitions mcptask.DefinitionLookup, owners mcptask.OwnerResolver, cfg *taskconfig.Config) {
	names, ok := definitions.(interface{ Names() []string })
	if !ok {
		return
	}
	for _, name := range names.Names() {
		def, ok := definitions.DefinitionByName(name)
		if !ok {
			continue
		}
		mcpSrv.AddPrompt(mcp.NewPrompt(def.Name, mcp.WithPromptDescription(def.Description)), promptHandler(bridge, def, owners, cfg))
	}
}

func promptHandler(bridge *promptflow.Bridge, def *promptflow.WorkflowDefinition, owners mcptask.OwnerResolver, cfg *taskconfig.Config) server.PromptHandlerFunc {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		owner, err := owners.ResolveOwner(ctx)
		if err != nil {
			if !cfg.AllowAnonymous {
				return nil, fmt.Errorf("mcpserver: no resolvable owner identity")
			}
			owner = task.AnonymousOwner
		}

		args := req.Params.Arguments
		if taskID, ok := args[continuationTaskIDArg]; ok && taskID != "" {
			return bridge.Continue(ctx, promptflow.ContinueParams{
				Owner:      owner,
				TaskID:     task.Id(taskID),
				Def:        def,
				PromptArgs: args,
			})
		}

		ttl := cfg.WorkflowTTLMs
		if def.TaskTTLMs > 0 {
			ttl = def.TaskTTLMs
		}
		return bridge.Start(ctx, promptflow.StartParams{
			Owner:      owner,
			Def:        def,
			PromptArgs: args,
			TTLMs:      ttl,
		})
	}
}

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
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-tasks/internal/taskconfig"
)

// ServerOptions returns the mcp-go server options this subsystem
// needs turned on: prompt support (the workflow-prompt bridge lives
// behind prompts/get) and tool support (task-augmented tools/call),
// the same pair the rest of the retrieval pack turns on via
// server.WithPromptCapabilities/server.WithToolCapabilities when
// wiring an mcp-go server.
func ServerOptions(cfg *taskconfig.Config) []server.ServerOption {
	return []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
	}
}

// ExperimentalCapability describes the `tasks` capability object
// spec.md §6.1 says the server advertises during initialize. mcp-go's
// ServerOption set has no generic hook for an arbitrary experimental
// capability key, so the caller assembling the initialize response
// (or a thin wrapper around server.NewMCPServer) merges this into its
// own experimental capabilities map rather than this package reaching
// into the mcp-go server's internals.
type ExperimentalCapability struct {
	MaxTasksPerOwner int   `json:"maxTasksPerOwner"`
	DefaultTTLMs     int64 `json:"defaultTtlMs"`
	MaxTTLMs         int64 `json:"maxTtlMs"`
}

// BuildExperimentalCapability projects the subset of cfg a client
// needs to know about into the advertised capability shape.
func BuildExperimentalCapability(cfg *taskconfig.Config) ExperimentalCapability {
	return ExperimentalCapability{
		MaxTasksPerOwner: cfg.MaxTasksPerOwner,
		DefaultTTLMs:     cfg.DefaultTTLMs,
		MaxTTLMs:         cfg.MaxTTLMs,
	}
}

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

// Package promptflow implements the workflow-prompt bridge: a flat,
// ordered list of steps attached to an MCP prompt, an executor that
// resolves and, where possible, eagerly runs those steps server-side,
// and a bridge that persists the resulting progress into a task and
// hands control back to the client through prompt message metadata.
//
// This is deliberately not a general workflow engine. A
// WorkflowDefinition has no branches and no DAG: steps run in the
// fixed order they are declared, skipping is the only control flow,
// and a step that cannot be resolved server-side simply becomes the
// client's job.
package promptflow

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

// Package task implements the durable, owner-scoped task state machine
// and store that backs the MCP tasks/* endpoints: task records, their
// validated transitions, the variable namespace merged into them, and a
// handler-facing context used by tool handlers and the workflow executor
// to read and mutate a task without touching the store directly.
package task

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
	"os"

	"github.com/tombee/conductor-tasks/internal/taskrouter"
	"github.com/tombee/conductor-tasks/pkg/task"
)

// EnvOwnerResolver resolves every call to a single owner identity read
// once from an environment variable, the simplest OwnerResolver that
// fits a stdio MCP transport: one server process per client session,
// with no per-request auth header to inspect the way
// internal/rpc/auth.go's bearer-token resolver does for the teacher's
// HTTP/TCP transports.
type EnvOwnerResolver struct {
	owner task.OwnerId
}

// NewEnvOwnerResolver reads envVar at construction time. An empty
// value leaves the resolver with no owner, so callers relying on
// AllowAnonymous still work.
func NewEnvOwnerResolver(envVar string) *EnvOwnerResolver {
	return &EnvOwnerResolver{owner: task.OwnerId(os.Getenv(envVar))}
}

// ResolveOwner implements OwnerResolver. The no-owner case returns
// taskrouter.ErrNoOwner, the sentinel both this package's
// TaskMiddleware and taskrouter.Router recognize to decide whether an
// anonymous fallback applies.
func (e *EnvOwnerResolver) ResolveOwner(context.Context) (task.OwnerId, error) {
	if e.owner == "" {
		return "", taskrouter.ErrNoOwner
	}
	return e.owner, nil
}

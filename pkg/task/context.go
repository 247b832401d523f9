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

package task

import "context"

// Context is the handler-facing facade over a single task, handed to
// tool handlers and the prompt executor so they can read and mutate
// their own task without reaching into the Store or Backend directly
// (spec.md §4.3). It is intentionally narrow: everything it does is a
// thin, owner-scoped wrapper around the Store.
type Context struct {
	store   *Store
	owner   OwnerId
	taskID  Id
}

// NewContext binds a Context to a specific task for the duration of
// one handler invocation.
func NewContext(store *Store, owner OwnerId, taskID Id) *Context {
	return &Context{store: store, owner: owner, taskID: taskID}
}

// TaskID returns the bound task's identifier.
func (c *Context) TaskID() Id { return c.taskID }

// OwnerID returns the bound task's owner.
func (c *Context) OwnerID() OwnerId { return c.owner }

// GetVariable reads a single variable, reporting whether it was
// present.
func (c *Context) GetVariable(ctx context.Context, key string) (any, bool, error) {
	rec, err := c.store.Get(ctx, c.owner, c.taskID)
	if err != nil {
		return nil, false, err
	}
	v, ok := rec.Variables[key]
	return v, ok, nil
}

// Variables returns a snapshot of every variable currently set.
func (c *Context) Variables(ctx context.Context) (Variables, error) {
	rec, err := c.store.Get(ctx, c.owner, c.taskID)
	if err != nil {
		return nil, err
	}
	return rec.Variables, nil
}

// SetVariables merges patch into the task's variables. Keys under the
// reserved `wf.` namespace are rejected unless allowReserved is true;
// pass true only from workflow-internal callers (C7/C8/C9).
func (c *Context) SetVariables(ctx context.Context, patch map[string]any, allowReserved bool) (*Record, error) {
	if !allowReserved {
		allowed, rejected := FilterReserved(patch)
		if len(rejected) > 0 {
			return nil, &ReservedNamespaceError{Key: rejected[0]}
		}
		patch = allowed
	}
	return c.store.SetVariables(ctx, c.owner, c.taskID, patch)
}

// RequireInput transitions the task to StatusInputRequired with the
// given prompt message.
func (c *Context) RequireInput(ctx context.Context, message string) (*Record, error) {
	return c.store.UpdateStatus(ctx, c.owner, c.taskID, StatusInputRequired, message)
}

// Resume transitions a task back to StatusWorking, typically after the
// client supplies the input RequireInput asked for.
func (c *Context) Resume(ctx context.Context, message string) (*Record, error) {
	return c.store.UpdateStatus(ctx, c.owner, c.taskID, StatusWorking, message)
}

// Complete commits a terminal result for the task.
func (c *Context) Complete(ctx context.Context, result any) (*Record, error) {
	return c.store.CompleteWithResult(ctx, c.owner, c.taskID, result)
}

// Fail transitions the task to StatusFailed.
func (c *Context) Fail(ctx context.Context, message string) (*Record, error) {
	return c.store.Fail(ctx, c.owner, c.taskID, message)
}

// IsCancelled reports whether the owner has cancelled this task, for
// handlers that poll it cooperatively during long-running work.
func (c *Context) IsCancelled(ctx context.Context) (bool, error) {
	return c.store.IsCancelled(ctx, c.owner, c.taskID)
}

// Record returns the full current record for the bound task.
func (c *Context) Record(ctx context.Context) (*Record, error) {
	return c.store.Get(ctx, c.owner, c.taskID)
}

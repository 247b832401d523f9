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

// Package taskrouter implements C4, the JSON-RPC surface for
// tasks/get, tasks/result, tasks/list, and tasks/cancel. It is
// transport-agnostic: it never touches a socket or an mcp-go server
// directly, only a MethodRegistry a caller supplies, in the same
// spirit as internal/rpc.Registry's method-name-to-handler map in the
// teacher.
package taskrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tombee/conductor-tasks/pkg/task"
)

// Handler is one JSON-RPC method implementation: it receives the raw
// params and returns a result to be marshaled back, or an error
// (typically already an *RPCError, produced via ToRPCError).
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// MethodRegistry is anything that can have named JSON-RPC methods
// registered against it. Grounded on internal/rpc.Registry's
// Register(method, Handler) shape, generalized to an interface so this
// package never imports a concrete dispatcher.
type MethodRegistry interface {
	RegisterMethod(name string, h Handler)
}

// OwnerResolver recovers the calling principal's OwnerId from the
// context of an inbound JSON-RPC call (e.g. from transport-level
// auth middleware). Implementations decide what "no identity" means;
// the router treats ErrNoOwner specially when AllowAnonymous is set.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context) (task.OwnerId, error)
}

// ErrNoOwner is returned by an OwnerResolver when no identity resolves
// for the current call.
var ErrNoOwner = fmt.Errorf("taskrouter: no owner identity resolved")

// Router wires pkg/task.Store's read/cancel operations to JSON-RPC
// method names.
type Router struct {
	store          *task.Store
	owners         OwnerResolver
	allowAnonymous bool
}

// New builds a Router over store, resolving callers via owners.
func New(store *task.Store, owners OwnerResolver, allowAnonymous bool) *Router {
	return &Router{store: store, owners: owners, allowAnonymous: allowAnonymous}
}

// Register attaches every method this router implements to reg.
func (r *Router) Register(reg MethodRegistry) {
	reg.RegisterMethod("tasks/get", r.handleGet)
	reg.RegisterMethod("tasks/result", r.handleResult)
	reg.RegisterMethod("tasks/list", r.handleList)
	reg.RegisterMethod("tasks/cancel", r.handleCancel)
}

func (r *Router) resolveOwner(ctx context.Context) (task.OwnerId, error) {
	owner, err := r.owners.ResolveOwner(ctx)
	if err == nil {
		return owner, nil
	}
	if err == ErrNoOwner && r.allowAnonymous {
		return task.AnonymousOwner, nil
	}
	return "", &RPCError{Code: CodePolicy, Message: "no resolvable owner identity"}
}

// GetParams is the tasks/get request shape.
type GetParams struct {
	TaskID string `json:"taskId"`
}

func (r *Router) handleGet(ctx context.Context, raw json.RawMessage) (any, error) {
	var p GetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "malformed tasks/get params"}
	}
	owner, err := r.resolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.Get(ctx, owner, task.Id(p.TaskID))
	if err != nil {
		return nil, ToRPCError(err)
	}
	return rec.ToWire(), nil
}

// ResultParams is the tasks/result request shape. WaitMs bounds how
// long the call may block for the task to reach a terminal state;
// zero means no wait, so a task that is not yet terminal yields a
// not-ready error at once.
type ResultParams struct {
	TaskID string `json:"taskId"`
	WaitMs int64  `json:"waitMs,omitempty"`
}

func (r *Router) handleResult(ctx context.Context, raw json.RawMessage) (any, error) {
	var p ResultParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "malformed tasks/result params"}
	}
	owner, err := r.resolveOwner(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := r.store.WaitTerminal(ctx, owner, task.Id(p.TaskID), time.Duration(p.WaitMs)*time.Millisecond)
	if err != nil {
		return nil, ToRPCError(err)
	}

	if !rec.Status.Terminal() {
		return nil, ToRPCError(&task.NotReadyError{TaskID: rec.TaskID})
	}
	if rec.Status == task.StatusCancelled {
		return nil, ToRPCError(&task.CancelledError{TaskID: rec.TaskID})
	}
	return rec.ToWire(), nil
}

// ListParams is the tasks/list request shape.
type ListParams struct {
	Status string `json:"status,omitempty"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (r *Router) handleList(ctx context.Context, raw json.RawMessage) (any, error) {
	var p ListParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "malformed tasks/list params"}
		}
	}
	owner, err := r.resolveOwner(ctx)
	if err != nil {
		return nil, err
	}

	filter := task.Filter{Status: task.Status(p.Status)}
	page, err := r.store.List(ctx, owner, filter, p.Cursor, p.Limit)
	if err != nil {
		return nil, ToRPCError(err)
	}
	return page, nil
}

// CancelParams is the tasks/cancel request shape.
type CancelParams struct {
	TaskID string `json:"taskId"`
}

func (r *Router) handleCancel(ctx context.Context, raw json.RawMessage) (any, error) {
	var p CancelParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "malformed tasks/cancel params"}
	}
	owner, err := r.resolveOwner(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.Cancel(ctx, owner, task.Id(p.TaskID))
	if err != nil {
		return nil, ToRPCError(err)
	}
	return rec.ToWire(), nil
}

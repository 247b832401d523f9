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
	"log/slog"
	"sync"

	"github.com/tombee/conductor-tasks/pkg/task"
)

// Executor runs task-augmented tool handlers on detached goroutines and
// keeps an in-flight registry so a graceful shutdown can wait for them,
// then fail whatever is still running. Grounded on
// runner.StateManager.CancelAll's "walk all active runs, signal them"
// pattern and the teacher's LifecycleManager start/stop bookkeeping for
// MCP subprocesses, generalized from process handles to task goroutines.
type Executor struct {
	logger *slog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	running map[task.Id]context.CancelFunc
}

// NewExecutor builds an Executor. A nil logger falls back to slog's
// default, matching createLogger's own fallback pattern elsewhere in
// this tree.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, running: make(map[task.Id]context.CancelFunc)}
}

// Spawn detaches fn onto its own goroutine, tracked under id. fn
// receives a context that is cancelled either when the server shuts
// down (via Drain) or is left running until fn returns on its own; the
// store's cancelled status, not this context, is the source of truth
// for a caller-initiated cancel (spec.md §4.5).
func (e *Executor) Spawn(parent context.Context, id task.Id, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(detach(parent))

	e.mu.Lock()
	e.running[id] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.running, id)
			e.mu.Unlock()
			cancel()
		}()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("task handler panicked", "task_id", string(id), "panic", r)
			}
		}()
		fn(ctx)
	}()
}

// Drain waits for every in-flight task goroutine to finish, up to
// ctx's deadline. On timeout it cancels every still-running context and
// then blocks until every goroutine has returned; that second wait has
// no deadline of its own. Drain does not change any task's status: a
// handler cut short by the cancellation records whatever its own error
// path records (under TaskMiddleware, a failed task carrying the
// handler's error message).
func (e *Executor) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.running))
	for _, c := range e.running {
		cancels = append(cancels, c)
	}
	e.mu.Unlock()
	for _, c := range cancels {
		c()
	}

	<-done
}

// RunningIDs returns the task IDs currently executing. It is always
// empty once Drain has returned, since Drain waits for every goroutine.
func (e *Executor) RunningIDs() []task.Id {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]task.Id, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	return ids
}

// detach strips parent's cancellation so a request-scoped context going
// away when tools/call returns does not tear down the detached handler,
// while still carrying parent's values (auth subject, logger, etc).
func detach(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

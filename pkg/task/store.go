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

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxVariableBytes is the serialized-size cap applied to a
// task's variables when the Store is not otherwise configured
// (spec.md §6.2).
const DefaultMaxVariableBytes = 1 << 20 // 1 MiB

// Store wraps a Backend with the task lifecycle operations of spec.md
// §4.2: it is the only thing that ever calls a Backend method, and it
// owns the in-process signaling that lets tasks/result block until a
// task reaches a terminal state without polling the backend.
type Store struct {
	backend         Backend
	clock           Clock
	metrics         MetricsSink
	maxVariableBytes int

	mu      sync.Mutex
	waiters map[Id][]chan struct{}
}

// StoreOption configures a Store at construction time.
type StoreOption func(*Store)

// WithClock overrides the Store's Clock, primarily for tests.
func WithClock(c Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithMetrics attaches a MetricsSink.
func WithMetrics(m MetricsSink) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithMaxVariableBytes overrides the variable-size cap.
func WithMaxVariableBytes(n int) StoreOption {
	return func(s *Store) { s.maxVariableBytes = n }
}

// NewStore builds a Store over backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend:          backend,
		clock:            RealClock{},
		metrics:          NoopMetrics,
		maxVariableBytes: DefaultMaxVariableBytes,
		waiters:          make(map[Id][]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the inputs needed to start a new task.
type CreateParams struct {
	OwnerID       OwnerId
	Origin        string
	TTLMs         int64
	ProgressToken string
	Variables     Variables
}

// Create starts a new task in StatusWorking.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Record, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	rec := &Record{
		TaskID:        id,
		OwnerID:       p.OwnerID,
		Origin:        p.Origin,
		Status:        StatusWorking,
		CreatedAt:     now,
		LastUpdatedAt: now,
		TTLMs:         p.TTLMs,
		ProgressToken: p.ProgressToken,
		Variables:     p.Variables,
	}
	if rec.Variables == nil {
		rec.Variables = Variables{}
	}
	if err := s.backend.Create(ctx, rec); err != nil {
		return nil, &StoreError{Op: "create", Err: err}
	}
	s.metrics.TaskCreated(p.Origin)
	return rec, nil
}

// Get fetches a task scoped to owner. Per invariant 1 this returns the
// same NotFoundError whether the task never existed, belongs to
// another owner, or has expired.
func (s *Store) Get(ctx context.Context, owner OwnerId, id Id) (*Record, error) {
	rec, err := s.backend.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.clock.Now()) {
		return nil, &NotFoundError{TaskID: id}
	}
	return rec, nil
}

// List enumerates an owner's tasks.
func (s *Store) List(ctx context.Context, owner OwnerId, filter Filter, cursor string, limit int) (*Page, error) {
	page, err := s.backend.List(ctx, owner, filter, cursor, limit)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return page, nil
}

// CountActive reports how many non-terminal tasks owner currently
// holds, for quota enforcement (spec.md §5.2).
func (s *Store) CountActive(ctx context.Context, owner OwnerId) (int, error) {
	return s.backend.CountActive(ctx, owner)
}

// mutate is the shared read-modify-write loop every status-changing
// operation below uses: read, apply fn to a clone, write with the
// version the read observed, retrying up to twice (three attempts in
// all) on a lost race.
func (s *Store) mutate(ctx context.Context, owner OwnerId, id Id, fn func(*Record) error) (*Record, error) {
	const maxAttempts = 3
	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cur, err := s.backend.Get(ctx, owner, id)
		if err != nil {
			return nil, err
		}
		if cur.Expired(s.clock.Now()) {
			return nil, &NotFoundError{TaskID: id}
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.LastUpdatedAt = s.clock.Now()
		if err := s.backend.CompareAndSwap(ctx, next, cur.Version); err != nil {
			if _, conflict := err.(*ErrConflict); conflict {
				last = err
				continue
			}
			return nil, &StoreError{Op: "mutate", Err: err}
		}
		return next, nil
	}
	return nil, &StoreError{Op: "mutate", Err: last}
}

// UpdateStatus transitions a task's status and message, enforcing the
// state machine (invariant 2).
func (s *Store) UpdateStatus(ctx context.Context, owner OwnerId, id Id, to Status, message string) (*Record, error) {
	var from Status
	next, err := s.mutate(ctx, owner, id, func(r *Record) error {
		from = r.Status
		if !CanTransition(r.Status, to) {
			return &InvalidTransitionError{From: r.Status, To: to}
		}
		r.Status = to
		r.StatusMessage = message
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TaskTransitioned(from, to)
	if to.Terminal() {
		s.wake(id)
	}
	return next, nil
}

// SetVariables merges patch into the task's variable namespace using
// Merge, rejecting writes that would exceed the configured byte
// budget (invariant 5). Callers that must enforce the reserved `wf.`
// namespace should call FilterReserved before invoking SetVariables.
func (s *Store) SetVariables(ctx context.Context, owner OwnerId, id Id, patch map[string]any) (*Record, error) {
	return s.mutate(ctx, owner, id, func(r *Record) error {
		merged := Merge(r.Variables, patch)
		size, err := Size(merged)
		if err != nil {
			return &StoreError{Op: "set_variables", Err: err}
		}
		if size > s.maxVariableBytes {
			return &VariableBudgetError{Limit: s.maxVariableBytes, Attempted: size}
		}
		r.Variables = merged
		return nil
	})
}

// CompleteWithResult transitions a task to StatusCompleted and commits
// its result atomically (invariant 3): no observer can see a completed
// task with HasResult false.
func (s *Store) CompleteWithResult(ctx context.Context, owner OwnerId, id Id, result any) (*Record, error) {
	next, err := s.mutate(ctx, owner, id, func(r *Record) error {
		if !CanTransition(r.Status, StatusCompleted) {
			return &InvalidTransitionError{From: r.Status, To: StatusCompleted}
		}
		r.Status = StatusCompleted
		r.Result = result
		r.HasResult = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TaskTransitioned(StatusWorking, StatusCompleted)
	s.wake(id)
	return next, nil
}

// Fail transitions a task to StatusFailed with a message describing
// the failure.
func (s *Store) Fail(ctx context.Context, owner OwnerId, id Id, message string) (*Record, error) {
	return s.UpdateStatus(ctx, owner, id, StatusFailed, message)
}

// Cancel transitions a task to StatusCancelled. It always succeeds
// from a non-terminal state and is idempotent from StatusCancelled
// itself.
func (s *Store) Cancel(ctx context.Context, owner OwnerId, id Id) (*Record, error) {
	rec, err := s.backend.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusCancelled {
		return rec, nil
	}
	next, err := s.UpdateStatus(ctx, owner, id, StatusCancelled, "cancelled by owner")
	if err != nil {
		return nil, err
	}
	s.metrics.TaskCancelled()
	return next, nil
}

// IsCancelled reports whether the task has reached StatusCancelled, for
// cooperative in-flight cancellation checks (spec.md §5.3).
func (s *Store) IsCancelled(ctx context.Context, owner OwnerId, id Id) (bool, error) {
	rec, err := s.backend.Get(ctx, owner, id)
	if err != nil {
		return false, err
	}
	return rec.Status == StatusCancelled, nil
}

// CleanupExpired removes every record whose TTL has elapsed as of now.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.backend.DeleteExpired(ctx, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, &StoreError{Op: "cleanup_expired", Err: err}
	}
	for i := 0; i < n; i++ {
		s.metrics.TaskExpired()
	}
	return n, nil
}

// WaitTerminal blocks until the task reaches a terminal status, the
// context is cancelled, or timeout elapses, whichever comes first. It
// returns the task's current Record in all three cases; the caller
// distinguishes "became terminal" from "timed out" by checking
// Record.Status.Terminal(). This implements the bounded wait behind
// tasks/result (spec.md §4.1, open question: terminal-only wake).
func (s *Store) WaitTerminal(ctx context.Context, owner OwnerId, id Id, timeout time.Duration) (*Record, error) {
	rec, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() || timeout <= 0 {
		return rec, nil
	}

	ch := s.subscribe(id)
	defer s.unsubscribe(id, ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
		return s.Get(ctx, owner, id)
	}
	return s.Get(ctx, owner, id)
}

func (s *Store) subscribe(id Id) chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiters[id] = append(s.waiters[id], ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) unsubscribe(id Id, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.waiters[id]
	for i, c := range list {
		if c == ch {
			s.waiters[id] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.waiters[id]) == 0 {
		delete(s.waiters, id)
	}
}

func (s *Store) wake(id Id) {
	s.mu.Lock()
	list := s.waiters[id]
	delete(s.waiters, id)
	s.mu.Unlock()
	for _, ch := range list {
		close(ch)
	}
}

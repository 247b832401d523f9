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

import "time"

// Status is the task's current lifecycle state. Three of the five values
// are terminal: Completed, Failed, and Cancelled. Terminal records are
// immutable except for TTL-driven removal.
type Status string

const (
	// StatusWorking is the initial state of a task and the state it
	// returns to from InputRequired once the client supplies input.
	StatusWorking Status = "working"

	// StatusInputRequired means the task is paused waiting on
	// additional input from the owning client.
	StatusInputRequired Status = "input_required"

	// StatusCompleted is a terminal state: the task produced a result.
	StatusCompleted Status = "completed"

	// StatusFailed is a terminal state: the task ended in error.
	StatusFailed Status = "failed"

	// StatusCancelled is a terminal state: the owner cancelled the task.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is one of the three terminal statuses.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the five recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWorking, StatusInputRequired, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions enumerates the legal status -> status edges (invariant 2,
// spec.md §3.2). A transition not present here is rejected.
var transitions = map[Status]map[Status]bool{
	StatusWorking: {
		StatusInputRequired: true,
		StatusCompleted:     true,
		StatusFailed:        true,
		StatusCancelled:     true,
	},
	StatusInputRequired: {
		StatusWorking:   true,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// edge. Terminal states never permit a further transition.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Id is an opaque, cryptographically unguessable task identifier, stable
// for the task's lifetime. See NewID.
type Id string

// OwnerId identifies the principal that created a task; it is the only
// identity ever permitted to observe or mutate that task.
type OwnerId string

// AnonymousOwner is the literal owner identity used when no stronger
// identity resolves for the incoming request (spec.md §3.1, §4.4).
const AnonymousOwner OwnerId = "anonymous"

// Variables is a flat, unordered mapping from string keys to JSON
// values. See Merge for the canonical merge semantics and Size for the
// measure Store.SetVariables checks against its byte cap.
type Variables map[string]any

// Record is the durable representation of a task. Result is present
// only once the task has reached a terminal state with a value; per
// invariant 3, no observer ever sees a terminal Record whose Result
// has not yet been committed alongside the status.
type Record struct {
	TaskID         Id
	OwnerID        OwnerId
	Origin         string
	Status         Status
	StatusMessage  string
	CreatedAt      time.Time
	LastUpdatedAt  time.Time
	TTLMs          int64
	ProgressToken  string
	Result         any
	HasResult      bool
	Variables      Variables

	// Version is bumped on every stored write and used as the
	// optimistic-concurrency token for Backend.CompareAndSwap.
	Version int64
}

// ExpiresAt returns the instant at which the record is logically gone
// (invariant 4): CreatedAt + TTLMs.
func (r *Record) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TTLMs) * time.Millisecond)
}

// Expired reports whether the record is logically gone as of `now`.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt())
}

// Clone returns a deep copy of r so callers can hand out snapshots
// without aliasing the store's internal state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Variables = make(Variables, len(r.Variables))
	for k, v := range r.Variables {
		clone.Variables[k] = v
	}
	return &clone
}

// NextVersion returns the version a CompareAndSwap write should carry.
func (r *Record) NextVersion() int64 {
	return r.Version + 1
}

// CreateTaskResult is the synchronous reply to a task-augmented
// tools/call (spec.md §4.5, §6.1).
//
// CorrelationID is a UUIDv4, distinct from TaskID: TaskID must resist
// guessing (pkg/task generates it from crypto/rand) while
// CorrelationID only needs to be unique enough to stitch this result
// to the caller's own logs, so the weaker, cheaper generator is enough
// here.
type CreateTaskResult struct {
	TaskID        Id             `json:"taskId"`
	Status        Status         `json:"status"`
	TTLMs         int64          `json:"ttlMs"`
	CorrelationID string         `json:"correlationId"`
	Meta          map[string]any `json:"_meta,omitempty"`
}

// WireRecord is the camelCase wire form of a Record, as sent by
// tasks/get and tasks/list (spec.md §4.1, §6.1).
type WireRecord struct {
	TaskID        Id             `json:"taskId"`
	Status        Status         `json:"status"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	CreatedAt     string         `json:"createdAt"`
	LastUpdatedAt string         `json:"lastUpdatedAt"`
	TTLMs         int64          `json:"ttlMs"`
	ProgressToken string         `json:"progressToken,omitempty"`
	Meta          map[string]any `json:"_meta,omitempty"`
	Variables     Variables      `json:"variables,omitempty"`
}

// ToWire converts a Record to its wire representation.
func (r *Record) ToWire() *WireRecord {
	return &WireRecord{
		TaskID:        r.TaskID,
		Status:        r.Status,
		StatusMessage: r.StatusMessage,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
		LastUpdatedAt: r.LastUpdatedAt.UTC().Format(time.RFC3339),
		TTLMs:         r.TTLMs,
		ProgressToken: r.ProgressToken,
		Variables:     r.Variables,
	}
}

// Page is a cursor-paginated listing result (spec.md §3.1).
type Page struct {
	Items      []*WireRecord `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// Filter narrows a List call to a status and/or a creation-time floor.
type Filter struct {
	Status Status
	Since  time.Time
}

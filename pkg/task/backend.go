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

// Backend is the durable storage surface the Store drives. It is split
// into narrower interfaces so an implementation that only needs to
// support, say, listing without cursoring can compose just the pieces
// it implements; most backends will implement all of them and can be
// embedded as the single Backend interface below.
//
// Implementations must treat CompareAndSwap as keyed on the record's
// Version the caller read before mutating: Store always reads a
// record, mutates a clone, and writes it back, so a backend that
// detects a concurrent write in between must return ErrConflict rather
// than silently clobbering it.
type (
	// Reader fetches single records, scoped by owner.
	Reader interface {
		Get(ctx context.Context, owner OwnerId, id Id) (*Record, error)
	}

	// Writer creates and updates records.
	Writer interface {
		Create(ctx context.Context, rec *Record) error
		// CompareAndSwap stores next in place of the record currently
		// held for next.TaskID, but only if that stored record's
		// Version equals prevVersion. Returns ErrConflict otherwise,
		// and NotFoundError if no such record exists.
		CompareAndSwap(ctx context.Context, next *Record, prevVersion int64) error
	}

	// Lister enumerates an owner's records, optionally filtered and
	// cursor-paginated.
	Lister interface {
		List(ctx context.Context, owner OwnerId, filter Filter, cursor string, limit int) (*Page, error)
	}

	// Counter supports the per-owner task quota (spec.md §5.2).
	Counter interface {
		CountActive(ctx context.Context, owner OwnerId) (int, error)
	}

	// Expirer performs TTL-driven cleanup.
	Expirer interface {
		DeleteExpired(ctx context.Context, now int64) (int, error)
	}

	// Backend is the full storage contract the in-memory and any
	// durable implementation must satisfy.
	Backend interface {
		Reader
		Writer
		Lister
		Counter
		Expirer
	}
)

// ErrConflict is returned by CompareAndSwap when the stored record has
// moved since the caller last read it.
type ErrConflict struct {
	TaskID Id
}

func (e *ErrConflict) Error() string {
	return "task " + string(e.TaskID) + " was concurrently modified"
}

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
	"sort"
	"sync"
)

var _ Backend = (*MemoryBackend)(nil)

// ownerKey scopes every map entry by owner so one owner can never
// enumerate or touch another's tasks (invariant 1).
type ownerKey struct {
	owner OwnerId
	id    Id
}

// MemoryBackend is a process-local Backend implementation guarded by a
// single RWMutex, in the style of the reference controller's in-memory
// run store. It is the default backend for a single-process MCP
// server and the one exercised by the package's tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[ownerKey]*Record
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[ownerKey]*Record),
	}
}

func (b *MemoryBackend) Get(_ context.Context, owner OwnerId, id Id) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[ownerKey{owner, id}]
	if !ok {
		return nil, &NotFoundError{TaskID: id}
	}
	return rec.Clone(), nil
}

func (b *MemoryBackend) Create(_ context.Context, rec *Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := ownerKey{rec.OwnerID, rec.TaskID}
	if _, exists := b.records[key]; exists {
		return &StoreError{Op: "create", Err: errAlreadyExists}
	}
	stored := rec.Clone()
	stored.Version = 1
	b.records[key] = stored
	return nil
}

func (b *MemoryBackend) CompareAndSwap(_ context.Context, next *Record, prevVersion int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := ownerKey{next.OwnerID, next.TaskID}
	cur, ok := b.records[key]
	if !ok {
		return &NotFoundError{TaskID: next.TaskID}
	}
	if cur.Version != prevVersion {
		return &ErrConflict{TaskID: next.TaskID}
	}
	stored := next.Clone()
	stored.Version = cur.Version + 1
	b.records[key] = stored
	return nil
}

func (b *MemoryBackend) List(_ context.Context, owner OwnerId, filter Filter, cursor string, limit int) (*Page, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []*Record
	for key, rec := range b.records {
		if key.owner != owner {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && rec.CreatedAt.Before(filter.Since) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].TaskID < matched[j].TaskID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	start := 0
	if cursor != "" {
		for i, rec := range matched {
			if string(rec.TaskID) == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = len(matched)
	}

	page := &Page{}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, rec := range matched[start:end] {
		page.Items = append(page.Items, rec.ToWire())
	}
	if end < len(matched) {
		page.NextCursor = string(matched[end-1].TaskID)
	}
	return page, nil
}

func (b *MemoryBackend) CountActive(_ context.Context, owner OwnerId) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for key, rec := range b.records {
		if key.owner == owner && !rec.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) DeleteExpired(_ context.Context, now int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for key, rec := range b.records {
		if rec.ExpiresAt().UnixMilli() <= now {
			delete(b.records, key)
			n++
		}
	}
	return n, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errAlreadyExists = sentinelError("task already exists")

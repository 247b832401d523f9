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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRejectsReservedNamespaceByDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	rec, err := s.Create(ctx, CreateParams{OwnerID: "alice", TTLMs: 60000})
	require.NoError(t, err)

	tc := NewContext(s, "alice", rec.TaskID)
	_, err = tc.SetVariables(ctx, map[string]any{"wf.progress": 1}, false)
	assert.ErrorAs(t, err, new(*ReservedNamespaceError))
}

func TestContextAllowsReservedNamespaceWhenPermitted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	rec, err := s.Create(ctx, CreateParams{OwnerID: "alice", TTLMs: 60000})
	require.NoError(t, err)

	tc := NewContext(s, "alice", rec.TaskID)
	got, err := tc.SetVariables(ctx, map[string]any{"wf.progress": 1}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Variables["wf.progress"])
}

func TestContextRequireInputThenResume(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	rec, err := s.Create(ctx, CreateParams{OwnerID: "alice", TTLMs: 60000})
	require.NoError(t, err)

	tc := NewContext(s, "alice", rec.TaskID)
	got, err := tc.RequireInput(ctx, "need more detail")
	require.NoError(t, err)
	assert.Equal(t, StatusInputRequired, got.Status)

	got, err = tc.Resume(ctx, "continuing")
	require.NoError(t, err)
	assert.Equal(t, StatusWorking, got.Status)
}

func TestContextCompleteAndFail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	rec, err := s.Create(ctx, CreateParams{OwnerID: "alice", TTLMs: 60000})
	require.NoError(t, err)

	tc := NewContext(s, "alice", rec.TaskID)
	got, err := tc.Complete(ctx, "done")
	require.NoError(t, err)
	assert.True(t, got.HasResult)

	rec2, err := s.Create(ctx, CreateParams{OwnerID: "alice", TTLMs: 60000})
	require.NoError(t, err)
	tc2 := NewContext(s, "alice", rec2.TaskID)
	got2, err := tc2.Fail(ctx, "boom")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got2.Status)
}

func TestContextIsCancelled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	rec, err := s.Create(ctx, CreateParams{OwnerID: "alice", TTLMs: 60000})
	require.NoError(t, err)

	tc := NewContext(s, "alice", rec.TaskID)
	cancelled, err := tc.IsCancelled(ctx)
	require.NoError(t, err)
	assert.False(t, cancelled)

	_, err = s.Cancel(ctx, "alice", rec.TaskID)
	require.NoError(t, err)

	cancelled, err = tc.IsCancelled(ctx)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

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

package promptflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowProgressLifecycle(t *testing.T) {
	def := &WorkflowDefinition{Name: "deploy", Steps: []WorkflowStep{{ID: "a", Tool: "t"}, {ID: "b", Tool: "t"}}}
	p := NewWorkflowProgress(def)
	assert.Equal(t, ProgressSchemaVersion, p.SchemaVersion)
	assert.NotEmpty(t, p.CorrelationID)
	assert.Equal(t, 2, p.TotalSteps)
	assert.False(t, p.Done(def))

	p.RecordCompleted(def.Steps[0], 0, map[string]any{"x": 1})
	assert.Equal(t, 1, p.CurrentIndex)
	assert.False(t, p.Done(def))
	assert.Equal(t, map[string]any{"x": 1}, p.Completed[0].ResultSummary)

	p.RecordCompleted(def.Steps[1], 1, nil)
	assert.True(t, p.Done(def))
}

func TestWorkflowProgressRoundTripsThroughJSON(t *testing.T) {
	def := &WorkflowDefinition{Name: "deploy", Steps: []WorkflowStep{{ID: "a", Tool: "t"}}}
	p := NewWorkflowProgress(def)
	p.RecordCompleted(def.Steps[0], 0, "done")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded WorkflowProgress
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.WorkflowName, decoded.WorkflowName)
	assert.Equal(t, p.CurrentIndex, decoded.CurrentIndex)
	assert.Equal(t, p.Completed, decoded.Completed)
}

func TestWorkflowProgressCorrelationIDVariesPerRun(t *testing.T) {
	def := &WorkflowDefinition{Name: "deploy", Steps: []WorkflowStep{{ID: "a", Tool: "t"}}}
	first := NewWorkflowProgress(def)
	second := NewWorkflowProgress(def)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
}

func TestWorkflowProgressToVariablePatch(t *testing.T) {
	def := &WorkflowDefinition{Name: "deploy", Steps: []WorkflowStep{{ID: "a", Tool: "t"}}}
	p := NewWorkflowProgress(def)
	patch := p.ToVariablePatch()
	assert.Contains(t, patch, "wf.progress")
}

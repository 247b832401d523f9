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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		Name: "deploy",
		Steps: []WorkflowStep{
			{
				ID:   "build",
				Tool: "build_image",
				Inputs: map[string]DataSource{
					"tag": {Kind: SourcePromptArg, PromptArgName: "tag"},
				},
			},
			{
				ID:   "push",
				Tool: "push_image",
				Inputs: map[string]DataSource{
					"digest": {Kind: SourceStepOutput, StepID: "build", Field: ".digest"},
				},
			},
		},
	}
}

func TestWorkflowDefinitionValidate(t *testing.T) {
	t.Run("accepts a well-formed linear definition", func(t *testing.T) {
		require.NoError(t, validDefinition().Validate())
	})

	t.Run("rejects missing name", func(t *testing.T) {
		def := validDefinition()
		def.Name = ""
		assert.Error(t, def.Validate())
	})

	t.Run("rejects empty step list", func(t *testing.T) {
		def := &WorkflowDefinition{Name: "empty"}
		assert.Error(t, def.Validate())
	})

	t.Run("rejects duplicate step ids", func(t *testing.T) {
		def := validDefinition()
		def.Steps[1].ID = "build"
		assert.Error(t, def.Validate())
	})

	t.Run("rejects a step referencing itself or a later step", func(t *testing.T) {
		def := validDefinition()
		def.Steps[0].Inputs["self"] = DataSource{Kind: SourceStepOutput, StepID: "build"}
		assert.Error(t, def.Validate())

		def2 := validDefinition()
		def2.Steps[0].Inputs["future"] = DataSource{Kind: SourceStepOutput, StepID: "push"}
		assert.Error(t, def2.Validate())
	})

	t.Run("rejects an unrecognized mode", func(t *testing.T) {
		def := validDefinition()
		def.Steps[0].Mode = "sideways"
		assert.Error(t, def.Validate())
	})

	t.Run("rejects a malformed data source", func(t *testing.T) {
		def := validDefinition()
		def.Steps[0].Inputs["tag"] = DataSource{Kind: SourcePromptArg}
		assert.Error(t, def.Validate())
	})
}

func TestWorkflowDefinitionStepByID(t *testing.T) {
	def := validDefinition()
	step, ok := def.StepByID("push")
	require.True(t, ok)
	assert.Equal(t, "push_image", step.Tool)

	_, ok = def.StepByID("missing")
	assert.False(t, ok)
}

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

func TestResolveConstant(t *testing.T) {
	v, err := resolve(DataSource{Kind: SourceConstant, Constant: "fixed"}, resolveContext{})
	require.NoError(t, err)
	assert.Equal(t, "fixed", v)
}

func TestResolvePromptArg(t *testing.T) {
	rc := resolveContext{promptArgs: map[string]string{"tag": "v1"}}
	v, err := resolve(DataSource{Kind: SourcePromptArg, PromptArgName: "tag"}, rc)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	_, err = resolve(DataSource{Kind: SourcePromptArg, PromptArgName: "missing"}, rc)
	assert.Error(t, err)
}

func TestResolveStepOutputWithFieldProjection(t *testing.T) {
	rc := resolveContext{outputs: map[string]any{
		"build": map[string]any{"digest": "sha256:abc", "size": 100},
	}}
	v, err := resolve(DataSource{Kind: SourceStepOutput, StepID: "build", Field: ".digest"}, rc)
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", v)
}

func TestResolveStepOutputBeforeCompletionFails(t *testing.T) {
	rc := resolveContext{outputs: map[string]any{}}
	_, err := resolve(DataSource{Kind: SourceStepOutput, StepID: "build"}, rc)
	assert.Error(t, err)
}

func TestResolveTaskVariable(t *testing.T) {
	rc := resolveContext{variables: map[string]any{"region": "us-east-1"}}
	v, err := resolve(DataSource{Kind: SourceTaskVariable, VariableKey: "region"}, rc)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", v)
}

func TestResolveInputsStopsAtFirstFailure(t *testing.T) {
	step := WorkflowStep{
		Inputs: map[string]DataSource{
			"a": {Kind: SourcePromptArg, PromptArgName: "present"},
			"b": {Kind: SourcePromptArg, PromptArgName: "absent"},
		},
	}
	rc := resolveContext{promptArgs: map[string]string{"present": "x"}}
	_, err := resolveInputs(step, rc)
	assert.Error(t, err)
}

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

func TestRegistryRejectsInvalidDefinition(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&WorkflowDefinition{})
	require.Error(t, err)
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	def := &WorkflowDefinition{
		Name: "deploy",
		Steps: []WorkflowStep{
			{ID: "build", Tool: "build_image", Mode: ServerSide},
		},
	}
	require.NoError(t, r.Register(def))

	got, ok := r.DefinitionByName("deploy")
	require.True(t, ok)
	assert.Equal(t, def, got)

	_, ok = r.DefinitionByName("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"deploy"}, r.Names())
}

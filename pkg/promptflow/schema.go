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
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator checks a tool's resolved arguments against that
// tool's declared JSON Schema input schema. It is an optional
// collaborator: a nil SchemaValidator simply skips validation.
type SchemaValidator interface {
	Validate(schema map[string]any, args map[string]any) error
}

// GoJSONSchemaValidator implements SchemaValidator with
// github.com/xeipuuv/gojsonschema.
type GoJSONSchemaValidator struct{}

// Validate reports a descriptive error naming every schema violation
// found, or nil if args conforms to schema.
func (GoJSONSchemaValidator) Validate(schema map[string]any, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("evaluate schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("arguments do not satisfy schema: %s", strings.Join(msgs, "; "))
}

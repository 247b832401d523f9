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
	"fmt"

	"github.com/itchyny/gojq"
)

// ResolutionError explains why a single input could not be resolved,
// distinguishing a missing source from a failed projection.
type ResolutionError struct {
	Arg    string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("input %q: %s", e.Arg, e.Reason)
}

// resolveContext bundles everything a DataSource might read from.
// outputs holds the full, unprojected output of every step completed
// so far in the current Executor.Run pass, keyed by step ID — distinct
// from WorkflowProgress.Completed[].ResultSummary, which is truncated
// and never a suitable source for a later step's input.
type resolveContext struct {
	promptArgs map[string]string
	outputs    map[string]any
	variables  map[string]any
}

// project extracts a field out of value using a gojq query, when field
// is non-empty; an empty field returns value unchanged. field is
// interpreted as a jq program, so "." returns the whole value and
// ".a.b" descends into nested objects.
func project(value any, field string) (any, error) {
	if field == "" {
		return value, nil
	}
	query, err := gojq.Parse(field)
	if err != nil {
		return nil, fmt.Errorf("parse field expression %q: %w", field, err)
	}
	iter := query.Run(value)
	result, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("field expression %q produced no result", field)
	}
	if err, isErr := result.(error); isErr {
		return nil, fmt.Errorf("field expression %q: %w", field, err)
	}
	return result, nil
}

// resolve computes the concrete value a DataSource describes, or a
// *ResolutionError if the source cannot currently be satisfied (e.g. a
// prior step has not run yet, or a prompt argument is absent).
func resolve(src DataSource, rc resolveContext) (any, error) {
	switch src.Kind {
	case SourceConstant:
		return src.Constant, nil

	case SourcePromptArg:
		v, ok := rc.promptArgs[src.PromptArgName]
		if !ok {
			return nil, &ResolutionError{Arg: src.PromptArgName, Reason: "prompt argument not supplied"}
		}
		return v, nil

	case SourceStepOutput:
		output, ok := rc.outputs[src.StepID]
		if !ok {
			return nil, &ResolutionError{Arg: src.StepID, Reason: "referenced step has not completed"}
		}
		projected, err := project(output, src.Field)
		if err != nil {
			return nil, &ResolutionError{Arg: src.StepID, Reason: err.Error()}
		}
		return projected, nil

	case SourceTaskVariable:
		v, ok := rc.variables[src.VariableKey]
		if !ok {
			return nil, &ResolutionError{Arg: src.VariableKey, Reason: "task variable not set"}
		}
		projected, err := project(v, src.VarField)
		if err != nil {
			return nil, &ResolutionError{Arg: src.VariableKey, Reason: err.Error()}
		}
		return projected, nil

	default:
		return nil, &ResolutionError{Arg: string(src.Kind), Reason: "unrecognized data source kind"}
	}
}

// resolveInputs resolves every input a step declares. It returns the
// first ResolutionError encountered rather than collecting all of
// them: a step with any unresolvable input cannot be attempted
// server-side at all.
func resolveInputs(step WorkflowStep, rc resolveContext) (map[string]any, error) {
	args := make(map[string]any, len(step.Inputs))
	for name, src := range step.Inputs {
		v, err := resolve(src, rc)
		if err != nil {
			return nil, err
		}
		args[name] = v
	}
	return args, nil
}

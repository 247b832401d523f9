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

	"github.com/expr-lang/expr"
)

// guardEnv is the variable environment a step's When expression is
// compiled and run against: the resolved arguments for this step, the
// outputs of every step completed so far, and the task's variables.
type guardEnv struct {
	Args      map[string]any `expr:"args"`
	Outputs   map[string]any `expr:"outputs"`
	Variables map[string]any `expr:"variables"`
}

// evalGuard compiles and runs a step's When expression, returning true
// when the expression is empty (always run). A non-boolean result is
// an error: a guard is meant to gate the step, not compute it.
func evalGuard(when string, args map[string]any, outputs map[string]any, variables map[string]any) (bool, error) {
	if when == "" {
		return true, nil
	}

	env := guardEnv{Args: args, Outputs: outputs, Variables: variables}
	program, err := expr.Compile(when, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile guard %q: %w", when, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate guard %q: %w", when, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("guard %q did not evaluate to a boolean", when)
	}
	return result, nil
}

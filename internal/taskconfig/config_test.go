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

package taskconfig

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxTasksPerOwner != 100 {
		t.Errorf("MaxTasksPerOwner = %d, want 100", cfg.MaxTasksPerOwner)
	}
	if cfg.WorkflowTTLMs != 4*cfg.DefaultTTLMs {
		t.Errorf("WorkflowTTLMs = %d, want %d", cfg.WorkflowTTLMs, 4*cfg.DefaultTTLMs)
	}
	if cfg.AllowAnonymous {
		t.Error("AllowAnonymous should default to false")
	}
}

func TestFromEnvOverridesMaxTasksPerOwner(t *testing.T) {
	t.Setenv("TASK_MAX_PER_OWNER", "5")
	cfg := FromEnv()
	if cfg.MaxTasksPerOwner != 5 {
		t.Errorf("MaxTasksPerOwner = %d, want 5", cfg.MaxTasksPerOwner)
	}
}

func TestFromEnvOverridesAllowAnonymous(t *testing.T) {
	t.Setenv("TASK_ALLOW_ANONYMOUS", "true")
	cfg := FromEnv()
	if !cfg.AllowAnonymous {
		t.Error("AllowAnonymous should be true")
	}
}

func TestFromEnvIgnoresInvalidIntegers(t *testing.T) {
	t.Setenv("TASK_MAX_PER_OWNER", "not-a-number")
	cfg := FromEnv()
	if cfg.MaxTasksPerOwner != 100 {
		t.Errorf("MaxTasksPerOwner = %d, want default 100 on invalid input", cfg.MaxTasksPerOwner)
	}
}

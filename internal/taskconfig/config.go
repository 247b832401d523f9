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

// Package taskconfig holds the recognized configuration for the task
// subsystem and its workflow-prompt bridge, following the
// DefaultConfig/FromEnv pairing internal/config and internal/log use
// elsewhere in this codebase.
package taskconfig

import (
	"os"
	"strconv"
)

// Config is the full set of tunables the task subsystem recognizes.
type Config struct {
	// MaxTasksPerOwner caps how many non-terminal tasks a single owner
	// may hold at once. Default: 100.
	MaxTasksPerOwner int

	// DefaultTTLMs is the TTL applied to a task when its creator does
	// not specify one. Default: 3600000 (1 hour).
	DefaultTTLMs int64

	// MaxTTLMs is the largest TTL any task may request. Default:
	// 86400000 (24 hours).
	MaxTTLMs int64

	// WorkflowTTLMs is the TTL applied to tasks created by the
	// workflow-prompt bridge, which tend to run longer than a single
	// tool call. Default: 4x DefaultTTLMs.
	WorkflowTTLMs int64

	// MaxVariableBytes bounds the serialized size of a task's
	// variables. Default: 1048576 (1 MiB).
	MaxVariableBytes int

	// ResultSummaryMaxBytes bounds each step's result summary recorded
	// by the continuation middleware. Steps run server-side by the
	// workflow prompt executor are summarized against
	// promptflow.DefaultResultSummaryMaxBytes instead, whatever this is
	// set to. Default: 4096.
	ResultSummaryMaxBytes int

	// AllowAnonymous permits tasks to be created for requests that
	// carry no resolvable owner identity, under task.AnonymousOwner.
	// Default: false.
	AllowAnonymous bool

	// LogLevel controls logging verbosity (debug, info, warn, error).
	// Default: info.
	LogLevel string

	// CallsPerMinute caps how many tool calls a single owner may make
	// per minute, enforced by the last stage of the C5 middleware
	// chain. Default: 120.
	CallsPerMinute int
}

// DefaultConfig returns a Config with the defaults named in each
// field's doc comment above.
func DefaultConfig() *Config {
	cfg := &Config{
		MaxTasksPerOwner:      100,
		DefaultTTLMs:          3600000,
		MaxTTLMs:              86400000,
		MaxVariableBytes:      1 << 20,
		ResultSummaryMaxBytes: 4096,
		AllowAnonymous:        false,
		LogLevel:              "info",
		CallsPerMinute:        120,
	}
	cfg.WorkflowTTLMs = 4 * cfg.DefaultTTLMs
	return cfg
}

// FromEnv builds a Config from DefaultConfig, overridden by any of:
//   - TASK_MAX_PER_OWNER
//   - TASK_DEFAULT_TTL_MS
//   - TASK_MAX_TTL_MS
//   - TASK_WORKFLOW_TTL_MS
//   - TASK_MAX_VARIABLE_BYTES
//   - TASK_RESULT_SUMMARY_MAX_BYTES
//   - TASK_ALLOW_ANONYMOUS (true/1)
//   - TASK_CALLS_PER_MINUTE
//   - LOG_LEVEL
func FromEnv() *Config {
	cfg := DefaultConfig()

	if v, ok := envInt("TASK_MAX_PER_OWNER"); ok {
		cfg.MaxTasksPerOwner = v
	}
	if v, ok := envInt64("TASK_DEFAULT_TTL_MS"); ok {
		cfg.DefaultTTLMs = v
	}
	if v, ok := envInt64("TASK_MAX_TTL_MS"); ok {
		cfg.MaxTTLMs = v
	}
	if v, ok := envInt64("TASK_WORKFLOW_TTL_MS"); ok {
		cfg.WorkflowTTLMs = v
	} else {
		cfg.WorkflowTTLMs = 4 * cfg.DefaultTTLMs
	}
	if v, ok := envInt("TASK_MAX_VARIABLE_BYTES"); ok {
		cfg.MaxVariableBytes = v
	}
	if v, ok := envInt("TASK_RESULT_SUMMARY_MAX_BYTES"); ok {
		cfg.ResultSummaryMaxBytes = v
	}
	if v, ok := envInt("TASK_CALLS_PER_MINUTE"); ok {
		cfg.CallsPerMinute = v
	}
	if v := os.Getenv("TASK_ALLOW_ANONYMOUS"); v == "true" || v == "1" {
		cfg.AllowAnonymous = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envInt64(key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

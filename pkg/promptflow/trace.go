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
)

// TraceRole mirrors the two roles an MCP prompt message can take. Only
// bridge.go in this package imports mcp-go, and it is the only place a
// TraceMessage is converted into an mcp.PromptMessage.
type TraceRole string

const (
	TraceRoleUser      TraceRole = "user"
	TraceRoleAssistant TraceRole = "assistant"
)

// TraceMessage is one turn of the conversation the bridge reconstructs
// around a workflow's execution: the client's intent, the assistant's
// plan, one pair of messages per attempted step, and the closing
// handoff.
type TraceMessage struct {
	Role TraceRole
	Text string
}

// RetryableHint lets a tool's error opt into the failed_retryable vs.
// failed_terminal distinction. An error that does not implement this
// interface is treated as terminal: an executor that does not know
// whether retrying would help must not suggest that it would.
type RetryableHint interface {
	Retryable() bool
}

// ClassifyFailure maps a tool invocation error to the PauseReason a
// step failure should record. Shared by Executor.Run and the
// continuation middleware so a tool's retryability is judged the same
// way regardless of which one observed the failure.
func ClassifyFailure(err error) PauseReason {
	var hint RetryableHint
	if asRetryableHint(err, &hint) && hint.Retryable() {
		return PauseToolFailedRetryable
	}
	return PauseToolFailedTerminal
}

// asRetryableHint is errors.As without importing errors just for one
// call site; kept local because RetryableHint is this package's own
// interface, not a standard one errors.As needs special-casing for.
func asRetryableHint(err error, target *RetryableHint) bool {
	for err != nil {
		if hint, ok := err.(RetryableHint); ok {
			*target = hint
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// summaryAllowList is the fixed set of shallow, well-known fields a
// result summary may copy from a tool's output. Any other key is
// dropped: a tool output can legitimately carry secrets or
// oversized payloads, and a summary meant for a client's eyes must
// never forward a field nobody vetted.
var summaryAllowList = map[string]bool{
	"id":      true,
	"status":  true,
	"name":    true,
	"message": true,
	"count":   true,
	"summary": true,
	"url":     true,
}

// DefaultResultSummaryMaxBytes bounds how large a projected result
// summary may be once JSON-encoded.
const DefaultResultSummaryMaxBytes = 4096

// Summarize projects output into a client-safe, size-bounded summary.
// A map output is reduced to its allow-listed keys; anything else is
// reduced to its Go type name. If the result still does not fit within
// maxBytes once JSON-encoded, Summarize falls back to the literal
// string "<truncated>" rather than partially dropping further keys.
func Summarize(output any, maxBytes int) any {
	if maxBytes <= 0 {
		maxBytes = DefaultResultSummaryMaxBytes
	}

	summary := projectSummary(output)
	data, err := json.Marshal(summary)
	if err != nil || len(data) > maxBytes {
		return "<truncated>"
	}
	return summary
}

func projectSummary(output any) any {
	m, ok := output.(map[string]any)
	if !ok {
		if output == nil {
			return nil
		}
		return fmt.Sprintf("%T", output)
	}

	projected := make(map[string]any)
	for k, v := range m {
		if summaryAllowList[k] {
			projected[k] = v
		}
	}
	return projected
}

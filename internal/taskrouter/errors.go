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

package taskrouter

import (
	"errors"

	"github.com/tombee/conductor-tasks/pkg/task"
)

// RPCError is the JSON-RPC 2.0 error shape returned to a client, in
// the spirit of internal/rpc.ErrorResponse but using the protocol's
// numeric codes instead of the teacher's own internal string codes,
// since this subsystem speaks JSON-RPC 2.0 directly rather than the
// teacher's bespoke Message envelope.
type RPCError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// JSON-RPC 2.0 reserved codes plus the application range this
// subsystem uses, per spec.md §7.
const (
	CodeInvalidParams = -32602
	CodeInternalError = -32603
	CodePolicy        = -32001
	CodeCancelled     = -32002
)

// ToRPCError maps a typed error from pkg/task (or a generic error) to
// the wire shape spec.md §4.1/§7 describes. Every router method routes
// its errors through this single function so the mapping lives in one
// place.
func ToRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}

	var notFound *task.NotFoundError
	if errors.As(err, &notFound) {
		return &RPCError{
			Code:    CodeInvalidParams,
			Message: notFound.Error(),
			Data:    map[string]interface{}{"reason": "not_found"},
		}
	}

	var invalidTransition *task.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		return &RPCError{
			Code:    CodeInvalidParams,
			Message: invalidTransition.Error(),
			Data: map[string]interface{}{
				"reason": "invalid_transition",
				"from":   string(invalidTransition.From),
				"to":     string(invalidTransition.To),
			},
		}
	}

	var notReady *task.NotReadyError
	if errors.As(err, &notReady) {
		return &RPCError{
			Code:    CodeInvalidParams,
			Message: notReady.Error(),
			Data:    map[string]interface{}{"reason": "not_ready"},
		}
	}

	var budgetErr *task.VariableBudgetError
	if errors.As(err, &budgetErr) {
		return &RPCError{
			Code:    CodeInvalidParams,
			Message: budgetErr.Error(),
			Data:    map[string]interface{}{"reason": "variable_budget_exceeded"},
		}
	}

	var reservedErr *task.ReservedNamespaceError
	if errors.As(err, &reservedErr) {
		return &RPCError{
			Code:    CodeInvalidParams,
			Message: reservedErr.Error(),
			Data:    map[string]interface{}{"reason": "reserved_namespace"},
		}
	}

	var cancelled *task.CancelledError
	if errors.As(err, &cancelled) {
		return &RPCError{Code: CodeCancelled, Message: cancelled.Error()}
	}

	var policyErr *task.PolicyError
	if errors.As(err, &policyErr) {
		return &RPCError{Code: CodePolicy, Message: policyErr.Error()}
	}

	var storeErr *task.StoreError
	if errors.As(err, &storeErr) {
		return &RPCError{Code: CodeInternalError, Message: "internal task store error"}
	}

	return &RPCError{Code: CodeInternalError, Message: "internal error"}
}

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

package task

import (
	"encoding/json"
	"strings"
)

// ReservedPrefix is the variable-key prefix writable only by workflow
// components (C7/C8/C9). See IsReserved.
const ReservedPrefix = "wf."

// IsReserved reports whether key lies in the reserved namespace.
func IsReserved(key string) bool {
	return strings.HasPrefix(key, ReservedPrefix)
}

// Merge applies patch to current using the canonical merge semantics
// (spec.md §3.1, §4.2): keys present in patch with a non-null value are
// set or replaced; keys present with a null value are deleted; keys
// absent from patch are left untouched. The input maps are not
// mutated; a new map is returned.
func Merge(current Variables, patch map[string]any) Variables {
	result := make(Variables, len(current)+len(patch))
	for k, v := range current {
		result[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(result, k)
			continue
		}
		result[k] = v
	}
	return result
}

// Size returns the serialized byte size of vars as stored, for
// comparison against the configured cap (invariant 5).
func Size(vars Variables) (int, error) {
	if len(vars) == 0 {
		return 2, nil // "{}"
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// FilterReserved splits a client-supplied patch into the keys it may
// write and the reserved keys it attempted to write. Callers (C9) use
// this to reject reserved-namespace writes (invariant 6) without
// silently dropping them.
func FilterReserved(patch map[string]any) (allowed map[string]any, rejected []string) {
	allowed = make(map[string]any, len(patch))
	for k, v := range patch {
		if IsReserved(k) {
			rejected = append(rejected, k)
			continue
		}
		allowed[k] = v
	}
	return allowed, rejected
}

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
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// idBytes is the number of random bytes used for a task ID: 16 bytes is
// 128 bits of entropy, comfortably above the spec's 122-bit floor.
const idBytes = 16

// NewID generates a fresh, cryptographically unguessable, URL-safe task
// identifier.
func NewID() (Id, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("task: generate id: %w", err)
	}
	return Id(base64.RawURLEncoding.EncodeToString(buf)), nil
}

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

// MetricsSink receives counters for task lifecycle events. It is an
// external collaborator (spec.md §1): the store never requires one, and
// a nil sink is always safe to pass.
type MetricsSink interface {
	TaskCreated(origin string)
	TaskTransitioned(from, to Status)
	TaskExpired()
	TaskCancelled()
}

// noopSink is the default MetricsSink used when the caller does not
// supply one.
type noopSink struct{}

func (noopSink) TaskCreated(string)          {}
func (noopSink) TaskTransitioned(Status, Status) {}
func (noopSink) TaskExpired()                {}
func (noopSink) TaskCancelled()              {}

// NoopMetrics is the shared no-op MetricsSink instance.
var NoopMetrics MetricsSink = noopSink{}

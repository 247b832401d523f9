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
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps one OpenTelemetry span per workflow advance call. A nil
// *Tracer is safe to use: every method becomes a no-op, matching the
// "optional collaborator" shape the rest of this package follows for
// observability (spec.md §1 treats tracing/metrics as external
// concerns, not core behavior).
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer over an OpenTelemetry TracerProvider's
// named tracer.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		return nil
	}
	return &Tracer{tracer: tp.Tracer("github.com/tombee/conductor-tasks/pkg/promptflow")}
}

// StartAdvance opens a span covering one Executor.Run call for a
// workflow-bound task. The returned function ends the span and must
// always be called, typically via defer.
func (t *Tracer) StartAdvance(ctx context.Context, workflowName string, taskID string) (context.Context, func()) {
	if t == nil {
		return ctx, func() {}
	}
	spanCtx, span := t.tracer.Start(ctx, "promptflow.advance",
		trace.WithAttributes(
			attribute.String("workflow.name", workflowName),
			attribute.String("task.id", taskID),
		),
	)
	return spanCtx, func() { span.End() }
}

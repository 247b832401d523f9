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

// Package prometheusmetrics is an optional task.MetricsSink backed by
// github.com/prometheus/client_golang, in the style of the teacher's
// internal/controller/metrics package. Nothing in pkg/task or
// pkg/promptflow imports this package directly; a caller that wants
// Prometheus counters wires it in explicitly.
package prometheusmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/conductor-tasks/pkg/task"
)

// Sink implements task.MetricsSink with four Prometheus counters.
type Sink struct {
	created      *prometheus.CounterVec
	transitioned *prometheus.CounterVec
	expired      prometheus.Counter
	cancelled    prometheus.Counter
}

// NewSink registers its counters against reg and returns a ready Sink.
// Pass prometheus.DefaultRegisterer for the global registry.
func NewSink(reg prometheus.Registerer) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor_tasks",
			Name:      "task_created_total",
			Help:      "Number of tasks created, by origin.",
		}, []string{"origin"}),
		transitioned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor_tasks",
			Name:      "task_transitioned_total",
			Help:      "Number of task status transitions, by from/to status.",
		}, []string{"from", "to"}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "conductor_tasks",
			Name:      "task_expired_total",
			Help:      "Number of tasks removed by TTL expiry.",
		}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "conductor_tasks",
			Name:      "task_cancelled_total",
			Help:      "Number of tasks cancelled by their owner.",
		}),
	}
}

var _ task.MetricsSink = (*Sink)(nil)

func (s *Sink) TaskCreated(origin string) {
	s.created.WithLabelValues(origin).Inc()
}

func (s *Sink) TaskTransitioned(from, to task.Status) {
	s.transitioned.WithLabelValues(string(from), string(to)).Inc()
}

func (s *Sink) TaskExpired() {
	s.expired.Inc()
}

func (s *Sink) TaskCancelled() {
	s.cancelled.Inc()
}

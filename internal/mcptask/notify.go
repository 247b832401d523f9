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

package mcptask

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// NotificationSink delivers a progress update for a single task's
// background execution back to the client that opened it, addressed by
// the progressToken it supplied on the task directive (spec.md §6.1).
type NotificationSink interface {
	Notify(ctx context.Context, progressToken string, message string, percent float64) error
}

// MCPNotificationSink publishes progress via the underlying mcp-go
// server's client-bound notification channel. Grounded directly on
// pkg/mcp/infrastructure/progress.MCPSink's
// SendNotificationToClient(ctx, "notifications/progress", payload)
// call, trimmed to the fields spec.md §6.1 actually specifies: the
// shape "preserves the underlying protocol's existing progress
// notification" rather than the richer ad hoc fields that sink adds.
type MCPNotificationSink struct {
	srv    *server.MCPServer
	logger *slog.Logger
}

// NewMCPNotificationSink wraps srv.
func NewMCPNotificationSink(srv *server.MCPServer, logger *slog.Logger) *MCPNotificationSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPNotificationSink{srv: srv, logger: logger}
}

// Notify sends a notifications/progress message. A blank progressToken
// is a no-op: the client never asked to be notified for this task.
func (s *MCPNotificationSink) Notify(ctx context.Context, progressToken string, message string, percent float64) error {
	if progressToken == "" || s.srv == nil {
		return nil
	}
	payload := map[string]interface{}{
		"progressToken": progressToken,
		"progress":      percent,
		"message":       message,
	}
	if err := s.srv.SendNotificationToClient(ctx, "notifications/progress", payload); err != nil {
		s.logger.Warn("failed to send task progress notification", "error", err)
		return err
	}
	return nil
}

// NoopNotificationSink discards every notification, for tests and for
// servers that never configured a client-bound transport.
type NoopNotificationSink struct{}

func (NoopNotificationSink) Notify(context.Context, string, string, float64) error { return nil }

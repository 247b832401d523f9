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

// Command taskserver runs an MCP stdio server exposing the durable
// task subsystem: task-augmented tools/call, tasks/get, tasks/result,
// tasks/list, tasks/cancel, and the workflow-prompt bridge behind
// prompts/get.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/conductor-tasks/internal/mcpserver"
	"github.com/tombee/conductor-tasks/internal/mcptask"
	"github.com/tombee/conductor-tasks/internal/taskconfig"
)

// Version information (injected via ldflags at build time).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		ownerEnvVar = flag.String("owner-env", "TASK_OWNER_ID", "Environment variable carrying the calling owner's identity")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("taskserver %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg := taskconfig.FromEnv()

	srv, err := mcpserver.New(mcpserver.Config{
		Name:    "conductor-tasks",
		Version: version,
		Task:    cfg,
		Owners:  mcptask.NewEnvOwnerResolver(*ownerEnvVar),
	})
	if err != nil {
		slog.Error("failed to build task server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("task server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

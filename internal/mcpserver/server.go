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

// Package mcpserver wires the task subsystem (pkg/task, pkg/promptflow,
// internal/taskrouter, internal/mcptask) onto an mcp-go server and runs
// it over stdio. It is the composition root cmd/taskserver calls into.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-tasks/internal/mcptask"
	"github.com/tombee/conductor-tasks/internal/taskconfig"
	"github.com/tombee/conductor-tasks/internal/taskrouter"
	"github.com/tombee/conductor-tasks/pkg/promptflow"
	"github.com/tombee/conductor-tasks/pkg/task"
)

// drainGracePeriod bounds how long Run waits for in-flight background
// task executions to finish once the stdio transport closes.
const drainGracePeriod = 10 * time.Second

// Config configures the server.
type Config struct {
	// Name is the server name advertised at initialize.
	Name string

	// Version is the server version advertised at initialize.
	Version string

	// Task carries the task subsystem's own tunables (quotas, TTLs,
	// anonymous-owner policy, log level).
	Task *taskconfig.Config

	// Policy decides which tools require, forbid, or may optionally
	// carry a task directive. A nil Policy defaults to
	// mcptask.SupportOptional for every tool.
	Policy *mcptask.Policy

	// Owners resolves the calling principal for both the task
	// middleware and the task router. Required.
	Owners mcptask.OwnerResolver

	// Definitions looks up named workflow definitions for the
	// workflow-prompt bridge. A nil Definitions means prompts/get never
	// resolves a workflow and the bridge goes unused.
	Definitions mcptask.DefinitionLookup
}

// createLogger builds a stderr-only structured logger at the
// configured level. Writing to stdout would corrupt the stdio MCP
// transport, the same rule the teacher's own MCP server enforces.
func createLogger(levelStr string) (*slog.Logger, error) {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}

// Server bundles the mcp-go server together with the task subsystem
// components wired around it.
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher *mcptask.Dispatcher
	store      *task.Store
	executor   *mcptask.Executor
	bridge     *promptflow.Bridge
	logger     *slog.Logger
	name       string
	version    string
}

// New builds a Server: an in-memory task store, the C5/C9 middleware
// chain, the C4 task router exposed as tools, and the C7/C8 prompt
// executor and bridge, all composed the way cmd/conductor and
// cmd/conductord compose the teacher's own subsystems in main.
func New(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "conductor-tasks"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Task == nil {
		cfg.Task = taskconfig.DefaultConfig()
	}
	if cfg.Owners == nil {
		return nil, fmt.Errorf("mcpserver: Owners is required")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = mcptask.NewPolicy(mcptask.SupportOptional, nil)
	}

	logger, err := createLogger(cfg.Task.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: %w", err)
	}

	store := task.NewStore(task.NewMemoryBackend(), task.WithMaxVariableBytes(cfg.Task.MaxVariableBytes))
	backgroundExecutor := mcptask.NewExecutor(logger)

	taskMW := mcptask.NewTaskMiddleware(store, policy, backgroundExecutor, cfg.Task, cfg.Owners, logger)
	continuationMW := mcptask.NewContinuationMiddleware(store, cfg.Definitions, cfg.Owners, cfg.Task.ResultSummaryMaxBytes)
	rateLimiter := mcptask.NewRateLimiter(cfg.Task.CallsPerMinute, cfg.Owners)

	mcpSrv := server.NewMCPServer(cfg.Name, cfg.Version, taskrouter.ServerOptions(cfg.Task)...)

	dispatcher := mcptask.NewDispatcher(mcpSrv,
		continuationMW.Middleware(),
		taskMW.Middleware(),
		rateLimiter.Middleware(),
	)

	router := taskrouter.New(store, cfg.Owners, cfg.Task.AllowAnonymous)
	router.RegisterAsTools(mcpSrv)

	invoker := mcptask.NewToolInvoker(dispatcher)
	promptExecutor := promptflow.NewExecutor(invoker, nil, nil)
	bridge := promptflow.NewBridge(store, promptExecutor)

	if cfg.Definitions != nil {
		registerPromptBridge(mcpSrv, bridge, cfg.Definitions, cfg.Owners, cfg.Task)
	}

	return &Server{
		mcpServer:  mcpSrv,
		dispatcher: dispatcher,
		store:      store,
		executor:   backgroundExecutor,
		bridge:     bridge,
		logger:     logger,
		name:       cfg.Name,
		version:    cfg.Version,
	}, nil
}

// RegisterTool exposes a domain tool through the full C5/C9 middleware
// chain, the same entry point every task-augmented or continuation-
// aware tool call must go through (spec.md §4.7).
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.dispatcher.RegisterTool(tool, handler)
}

// Run serves the MCP protocol over stdio until the transport closes or
// ctx is cancelled, then drains in-flight background task executions.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting task server", slog.String("name", s.name), slog.String("version", s.version))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s.mcpServer)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		runErr = ctx.Err()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainGracePeriod)
	defer cancel()
	s.executor.Drain(drainCtx)

	if runErr != nil {
		return fmt.Errorf("task server: %w", runErr)
	}
	return nil
}

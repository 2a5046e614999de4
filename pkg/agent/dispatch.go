// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/mcp/adapter"
	"github.com/teradata-labs/heddle/pkg/mcp/client"
	"github.com/teradata-labs/heddle/pkg/tools"
)

// TransportConfig selects how tool calls leave the orchestrator: in-process
// against a local registry, or over streamable HTTP to a remote MCP server.
type TransportConfig struct {
	// UseMCP switches tool dispatch to the remote endpoint.
	UseMCP bool

	// MCPURL is the streamable HTTP endpoint, e.g. http://localhost:8700/mcp.
	MCPURL string

	// MCPTimeout bounds each remote call. Zero means the client default.
	MCPTimeout time.Duration
}

// Dispatcher routes tool calls to a registry. In direct mode the registry
// holds the builtin tools and executes in-process; in MCP mode it holds
// remote adapters that relay each call over the wire. Both modes share one
// Executor, so argument validation, timing, and panic recovery are
// identical regardless of where the tool runs.
type Dispatcher struct {
	executor *tools.Executor
	client   *client.Client
	remote   bool
}

// NewDirectDispatcher wraps a local registry for in-process execution.
func NewDirectDispatcher(reg *tools.Registry) *Dispatcher {
	return &Dispatcher{executor: tools.NewExecutor(reg)}
}

// NewMCPDispatcher connects to a remote MCP server, mirrors its tool
// catalogue into a local registry, and dispatches every call over the wire.
func NewMCPDispatcher(ctx context.Context, cfg TransportConfig, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c, err := client.Connect(ctx, client.Options{
		Transport:  "http",
		URL:        cfg.MCPURL,
		Timeout:    cfg.MCPTimeout,
		ClientName: "heddle",
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to MCP server: %w", err)
	}

	reg := tools.NewRegistry()
	n, err := adapter.RegisterRemoteTools(ctx, c, reg, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("mirror remote tools: %w", err)
	}
	logger.Info("dispatching tools over MCP",
		zap.String("url", cfg.MCPURL),
		zap.Int("tools", n))

	return &Dispatcher{executor: tools.NewExecutor(reg), client: c, remote: true}, nil
}

// NewDispatcher builds a dispatcher from config: remote when cfg.UseMCP is
// set, otherwise direct against the given registry.
func NewDispatcher(ctx context.Context, cfg TransportConfig, reg *tools.Registry, logger *zap.Logger) (*Dispatcher, error) {
	if cfg.UseMCP {
		return NewMCPDispatcher(ctx, cfg, logger)
	}
	return NewDirectDispatcher(reg), nil
}

// Execute runs the named tool. Lookup failures, invalid arguments, and
// panics come back as structured Results, not Go errors.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	return d.executor.Execute(ctx, name, args, sess)
}

// Tools returns the dispatchable catalogue in registration order.
func (d *Dispatcher) Tools() []tools.Tool {
	return d.executor.Registry().ListTools()
}

// Remote reports whether calls cross an MCP transport.
func (d *Dispatcher) Remote() bool {
	return d.remote
}

// Close releases the MCP connection, if any. Direct dispatchers are free.
func (d *Dispatcher) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

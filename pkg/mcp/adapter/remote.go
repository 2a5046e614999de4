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

// Package adapter exposes tools served by a remote MCP endpoint through the
// local tools.Tool interface. The orchestrator dispatches in-process and
// remote registries through the same executor; the adapter handles the wire
// differences: the session state rides along as an extra argument, and the
// session is re-synced from the structured result afterwards.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/mcp/client"
	"github.com/teradata-labs/heddle/pkg/mcp/protocol"
	"github.com/teradata-labs/heddle/pkg/tools"
)

// Error codes produced by the adapter itself.
const (
	// CodeRemoteToolFailed carries a failure the remote tool reported about
	// its own work, flattened to one diagnostic string.
	CodeRemoteToolFailed = "REMOTE_TOOL_FAILED"

	// CodeCallFailed marks transport or protocol failures. These are
	// retryable: the tool never ran, or its outcome never arrived.
	CodeCallFailed = "MCP_CALL_FAILED"
)

// sessionStateArg is the argument key the session state travels under. The
// server side pops it before validating the tool's own arguments.
const sessionStateArg = "session_state"

// RemoteTool wraps one tool from a remote MCP server as a tools.Tool.
type RemoteTool struct {
	client *client.Client
	tool   protocol.Tool
	schema *tools.JSONSchema
	logger *zap.Logger
}

// NewRemoteTool adapts a remote tool definition. The input schema is
// converted once, up front; definitions without a schema accept any object.
func NewRemoteTool(c *client.Client, tool protocol.Tool, logger *zap.Logger) *RemoteTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteTool{
		client: c,
		tool:   tool,
		schema: convertSchema(tool),
		logger: logger,
	}
}

// Name returns the remote tool's name unchanged, so prompts and scenarios
// refer to the same tool names in direct and remote modes.
func (r *RemoteTool) Name() string { return r.tool.Name }

// Aliases is empty: MCP catalogs list canonical names only.
func (r *RemoteTool) Aliases() []string { return nil }

func (r *RemoteTool) Description() string { return r.tool.Description }

func (r *RemoteTool) InputSchema() *tools.JSONSchema { return r.schema }

// Execute sends the call across the MCP transport. Failures come back as
// structured Results, never Go errors, so the orchestrator handles remote
// and in-process failures the same way.
func (r *RemoteTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	callArgs := make(map[string]any, len(args)+1)
	for k, v := range args {
		callArgs[k] = v
	}
	if sess != nil {
		if m := sess.ToMap(); m != nil {
			callArgs[sessionStateArg] = m
		}
	}

	start := time.Now()
	wireResult, err := r.client.CallTool(ctx, r.tool.Name, callArgs)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, client.ErrToolFailed) {
			msg := strings.TrimPrefix(err.Error(), client.ErrToolFailed.Error()+": ")
			return &tools.Result{
				Success:         false,
				Error:           &tools.ToolError{Code: CodeRemoteToolFailed, Message: msg},
				ExecutionTimeMs: elapsed,
			}, nil
		}
		r.logger.Warn("mcp call failed",
			zap.String("tool", r.tool.Name),
			zap.Error(err))
		return &tools.Result{
			Success: false,
			Error: &tools.ToolError{
				Code:       CodeCallFailed,
				Message:    err.Error(),
				Retryable:  true,
				Suggestion: "Check that the MCP server is reachable.",
			},
			ExecutionTimeMs: elapsed,
		}, nil
	}

	result := resultFromWire(wireResult)
	result.ExecutionTimeMs = elapsed
	// The remote session was rebuilt for this call and discarded with it;
	// everything worth keeping comes back through the result data.
	tools.ApplyResultData(sess, result)
	return result, nil
}

// convertSchema turns the MCP inputSchema map into the local schema type.
func convertSchema(tool protocol.Tool) *tools.JSONSchema {
	empty := tools.NewObjectSchema("", map[string]*tools.JSONSchema{}, nil)
	if len(tool.InputSchema) == 0 {
		return empty
	}

	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return empty
	}
	schema, err := tools.SchemaFromJSON(raw)
	if err != nil {
		return empty
	}
	return tools.NormalizeSchema(schema)
}

// resultFromWire rebuilds a tools.Result from a call result. The server
// bridge serializes the full result into structuredContent; when that is
// missing the text content becomes the message.
func resultFromWire(wire *protocol.CallToolResult) *tools.Result {
	if len(wire.StructuredContent) > 0 {
		raw, err := json.Marshal(wire.StructuredContent)
		if err == nil {
			var res tools.Result
			if err := json.Unmarshal(raw, &res); err == nil {
				return &res
			}
		}
	}

	res := &tools.Result{Success: true}
	for _, c := range wire.Content {
		if c.Type == "text" && c.Text != "" {
			res.Message = c.Text
			break
		}
	}
	return res
}

// AdaptRemoteTools lists the server's catalog and wraps every tool.
func AdaptRemoteTools(ctx context.Context, c *client.Client, logger *zap.Logger) ([]tools.Tool, error) {
	catalog, err := c.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote tools: %w", err)
	}

	adapted := make([]tools.Tool, 0, len(catalog))
	for _, tool := range catalog {
		adapted = append(adapted, NewRemoteTool(c, tool, logger))
	}
	return adapted, nil
}

// RegisterRemoteTools adapts the server's catalog into the given registry
// and reports how many tools it added.
func RegisterRemoteTools(ctx context.Context, c *client.Client, reg *tools.Registry, logger *zap.Logger) (int, error) {
	adapted, err := AdaptRemoteTools(ctx, c, logger)
	if err != nil {
		return 0, err
	}
	for _, tool := range adapted {
		reg.Register(tool)
	}
	return len(adapted), nil
}

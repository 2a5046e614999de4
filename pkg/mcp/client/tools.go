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

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teradata-labs/heddle/pkg/mcp/protocol"
)

// ErrToolFailed wraps failures the remote tool reported about its own work,
// as opposed to transport or protocol errors. Callers can match it with
// errors.Is to decide between surfacing the diagnostic and retrying the
// connection.
var ErrToolFailed = errors.New("tool error")

// ListTools fetches the server's tool catalog and refreshes the local cache
// used for argument validation.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	req, err := protocol.NewRequest(c.nextRequestID(), "tools/list", struct{}{})
	if err != nil {
		return nil, err
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var result protocol.ToolListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}

	c.toolsMu.Lock()
	c.tools = make(map[string]protocol.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		c.tools[tool.Name] = tool
	}
	c.toolsMu.Unlock()

	return result.Tools, nil
}

// CallTool invokes a tool after validating arguments against its cached
// input schema. A result flagged is_error is surfaced as a Go error carrying
// the tool's first text block.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	tool, err := c.getTool(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tool %s not found: %w", name, err)
	}

	if err := protocol.ValidateToolArguments(tool, arguments); err != nil {
		return nil, fmt.Errorf("invalid arguments for tool %s: %w", name, err)
	}

	params := protocol.CallToolParams{
		Name:      name,
		Arguments: arguments,
	}
	req, err := protocol.NewRequest(c.nextRequestID(), "tools/call", params)
	if err != nil {
		return nil, err
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var result protocol.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}

	if result.IsError {
		if len(result.Content) > 0 && result.Content[0].Type == "text" {
			return nil, fmt.Errorf("%w: %s", ErrToolFailed, result.Content[0].Text)
		}
		return nil, fmt.Errorf("%w: tool %s failed without diagnostics", ErrToolFailed, name)
	}

	return &result, nil
}

// getTool returns a tool definition from the cache, fetching the catalog
// once on a miss.
func (c *Client) getTool(ctx context.Context, name string) (protocol.Tool, error) {
	c.toolsMu.RLock()
	tool, exists := c.tools[name]
	c.toolsMu.RUnlock()

	if exists {
		return tool, nil
	}

	if _, err := c.ListTools(ctx); err != nil {
		return protocol.Tool{}, err
	}

	c.toolsMu.RLock()
	tool, exists = c.tools[name]
	c.toolsMu.RUnlock()

	if !exists {
		return protocol.Tool{}, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

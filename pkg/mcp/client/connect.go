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
	"fmt"
	"time"

	"github.com/teradata-labs/heddle/pkg/mcp/protocol"
	"github.com/teradata-labs/heddle/pkg/mcp/transport"
	"go.uber.org/zap"
)

// Options configures Connect.
type Options struct {
	// Transport selects the wire: "stdio" or "http".
	Transport string

	// Stdio transport: the server command to spawn.
	Command string
	Args    []string
	Env     map[string]string

	// HTTP transport: the streamable HTTP endpoint.
	URL     string
	Headers map[string]string

	// Timeout bounds the initialize handshake. Zero means 30s.
	Timeout time.Duration

	// Client identity reported to the server.
	ClientName    string
	ClientVersion string

	Logger *zap.Logger
}

// Connect dials an MCP server, performs the initialize handshake, and
// returns a ready client. On handshake failure the transport is closed.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "heddle"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}

	var trans transport.Transport
	var err error

	switch opts.Transport {
	case "stdio":
		trans, err = transport.NewStdioTransport(transport.StdioConfig{
			Command: opts.Command,
			Args:    opts.Args,
			Env:     opts.Env,
			Logger:  opts.Logger,
		})
	case "http", "streamable-http":
		trans, err = transport.NewStreamableHTTPTransport(transport.StreamableHTTPConfig{
			Endpoint:         opts.URL,
			Headers:          opts.Headers,
			EnableSessions:   true,
			EnableResumption: true,
			Logger:           opts.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported transport: %s (supported: stdio, http)", opts.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	c := NewClient(Config{
		Transport:      trans,
		Logger:         opts.Logger,
		RequestTimeout: opts.Timeout,
	})

	initCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	clientInfo := protocol.Implementation{
		Name:    opts.ClientName,
		Version: opts.ClientVersion,
	}
	if err := c.Initialize(initCtx, clientInfo); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return c, nil
}

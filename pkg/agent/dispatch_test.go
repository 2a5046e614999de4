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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/heddle/pkg/mcp/server"
	"github.com/teradata-labs/heddle/pkg/mcp/transport"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/tools/builtin"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

// newMCPEndpoint serves the builtin registry over streamable HTTP and
// returns the endpoint URL.
func newMCPEndpoint(t *testing.T) string {
	t.Helper()
	logger := zaptest.NewLogger(t)

	reg := tools.NewRegistry()
	builtin.RegisterAll(reg, builtin.Deps{})

	bridge, err := server.NewRegistryBridge(server.BridgeConfig{
		Executor: tools.NewExecutor(reg),
		Store:    store.NewMemory(),
		DataDir:  t.TempDir(),
		UserID:   "dispatch-test",
		Logger:   logger,
	})
	require.NoError(t, err)

	srv := server.NewMCPServer("heddle-mcp", "0.0.1", logger, server.WithToolProvider(bridge))
	httpSrv, err := transport.NewStreamableHTTPServer(transport.StreamableHTTPServerConfig{
		Handler: func(msg []byte) ([]byte, error) {
			return srv.HandleMessage(context.Background(), msg)
		},
		Logger: logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(httpSrv)
	t.Cleanup(ts.Close)
	t.Cleanup(httpSrv.Close)
	return ts.URL
}

func toolNames(d *Dispatcher) []string {
	catalogue := d.Tools()
	names := make([]string, len(catalogue))
	for i, tl := range catalogue {
		names[i] = tl.Name()
	}
	return names
}

func TestDirectDispatcher(t *testing.T) {
	probe := &stubTool{name: "probe"}
	reg := tools.NewRegistry()
	reg.Register(probe)

	d := NewDirectDispatcher(reg)
	assert.False(t, d.Remote())
	assert.Equal(t, []string{"probe"}, toolNames(d))

	res, err := d.Execute(context.Background(), "probe", map[string]any{"k": "v"}, &tools.SessionState{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, probe.calls)

	require.NoError(t, d.Close())
}

func TestDirectDispatcher_UnknownToolIsStructured(t *testing.T) {
	d := NewDirectDispatcher(tools.NewRegistry())

	res, err := d.Execute(context.Background(), "missing", nil, &tools.SessionState{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, tools.CodeToolNotFound, res.Error.Code)
}

func TestNewDispatcher_DirectMode(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(&stubTool{name: "probe"})

	d, err := NewDispatcher(context.Background(), TransportConfig{}, reg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, d.Remote())
	assert.Equal(t, []string{"probe"}, toolNames(d))
}

func TestNewMCPDispatcher(t *testing.T) {
	url := newMCPEndpoint(t)

	d, err := NewMCPDispatcher(context.Background(), TransportConfig{
		UseMCP:     true,
		MCPURL:     url,
		MCPTimeout: 5 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.True(t, d.Remote())
	assert.Contains(t, toolNames(d), "create_workflow")
	assert.Contains(t, toolNames(d), "add_node")

	// A call crosses the wire and the session is rebuilt from the result.
	sess := &tools.SessionState{
		ConversationID: "conv_0123456789abcdef0123456789abcdef",
		UserID:         "alice",
	}
	res, err := d.Execute(context.Background(), "create_workflow", map[string]any{
		"name":        "Remote Draft",
		"output_type": "string",
	}, sess)
	require.NoError(t, err)
	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Equal(t, res.Data["workflow_id"], sess.WorkflowID)
	assert.NotEmpty(t, sess.WorkflowID)
}

func TestNewMCPDispatcher_InvalidArgumentsStayLocal(t *testing.T) {
	url := newMCPEndpoint(t)

	d, err := NewMCPDispatcher(context.Background(), TransportConfig{
		UseMCP: true,
		MCPURL: url,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	// The mirrored schema still validates before anything is sent.
	res, err := d.Execute(context.Background(), "create_workflow", map[string]any{
		"name": "No Output Type",
	}, &tools.SessionState{UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, tools.CodeInvalidArguments, res.Error.Code)
}

func TestNewMCPDispatcher_ConnectFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	_, err := NewMCPDispatcher(context.Background(), TransportConfig{
		UseMCP:     true,
		MCPURL:     url,
		MCPTimeout: time.Second,
	}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to MCP server")
}

func TestNewDispatcher_SwitchesOnUseMCP(t *testing.T) {
	url := newMCPEndpoint(t)

	d, err := NewDispatcher(context.Background(), TransportConfig{
		UseMCP:     true,
		MCPURL:     url,
		MCPTimeout: 5 * time.Second,
	}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	assert.True(t, d.Remote())
}

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

package server

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/heddle/pkg/mcp/client"
	"github.com/teradata-labs/heddle/pkg/mcp/protocol"
	"github.com/teradata-labs/heddle/pkg/mcp/transport"
	"github.com/teradata-labs/heddle/pkg/prompts"
)

func integrationPrompts() *stubPromptRegistry {
	return &stubPromptRegistry{
		keys: []string{"subagent.analyze"},
		metas: map[string]*prompts.PromptMetadata{
			"subagent.analyze": {
				Key:         "subagent.analyze",
				Description: "Flowchart analysis instructions",
				Variables:   []string{"domain"},
			},
		},
		texts: map[string]string{"subagent.analyze": "Analyze the flowchart."},
	}
}

// TestIntegration_StdioFlow exercises the complete MCP lifecycle over a
// pipe-based stdio transport:
//
//	initialize → list tools → create workflow → list_changed notification
//	→ list/read workflow resources → edit → prompts → ping
//
// A real MCPServer fronts a RegistryBridge over real builtin tools and an
// in-memory library, driven by the real Client.
func TestIntegration_StdioFlow(t *testing.T) {
	logger := zaptest.NewLogger(t)
	f := newBridgeFixture(t, integrationPrompts())

	mcpServer := NewMCPServer("heddle-mcp", "0.0.1", logger,
		WithToolProvider(f.bridge),
		WithResourceProvider(f.bridge),
		WithPromptProvider(f.bridge),
	)
	f.bridge.SetOnLibraryChanged(mcpServer.NotifyResourceListChanged)

	// Client writes to serverIn, server reads from serverIn.
	// Server writes to clientIn, client reads from clientIn.
	serverInR, serverInW := io.Pipe()
	clientInR, clientInW := io.Pipe()

	serverTransport := transport.NewStdioServerTransport(serverInR, clientInW)
	clientTransport := transport.NewStdioServerTransport(clientInR, serverInW)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- mcpServer.Serve(serverCtx, serverTransport)
	}()

	mcpClient := client.NewClient(client.Config{
		Transport:      clientTransport,
		Logger:         logger,
		RequestTimeout: 5 * time.Second,
	})
	defer mcpClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize.
	err := mcpClient.Initialize(ctx, protocol.Implementation{
		Name:    "integration-test",
		Version: "0.0.1",
	})
	require.NoError(t, err)
	assert.True(t, mcpClient.IsInitialized())

	serverInfo := mcpClient.ServerInfo()
	assert.Equal(t, "heddle-mcp", serverInfo.Name)

	caps := mcpClient.ServerCapabilities()
	assert.NotNil(t, caps.Tools)
	assert.NotNil(t, caps.Resources)
	assert.NotNil(t, caps.Prompts)

	// List tools.
	listedTools, err := mcpClient.ListTools(ctx)
	require.NoError(t, err)

	toolNames := make(map[string]bool, len(listedTools))
	for _, tool := range listedTools {
		toolNames[tool.Name] = true
	}
	assert.True(t, toolNames["create_workflow"])
	assert.True(t, toolNames["add_node"])
	assert.True(t, toolNames["save_workflow_to_library"])

	// Create a workflow. The session_state argument rides along with the
	// call and never reaches the tool's own schema.
	createResult, err := mcpClient.CallTool(ctx, "create_workflow", map[string]interface{}{
		"name":          "Churn model",
		"output_type":   "bool",
		"session_state": map[string]interface{}{"conversation_id": "conv_0a1b2c3d"},
	})
	require.NoError(t, err)
	require.NotNil(t, createResult)
	assert.False(t, createResult.IsError)

	data, ok := createResult.StructuredContent["data"].(map[string]interface{})
	require.True(t, ok)
	workflowID, ok := data["workflow_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, workflowID)

	// Creating a workflow changes the resource list; the server pushes a
	// list_changed notification down the same stdio stream.
	select {
	case notif := <-mcpClient.Notifications():
		assert.Equal(t, "notifications/resources/list_changed", notif.Method)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a resources/list_changed notification")
	}

	// The new workflow is listed as a resource.
	resources, err := mcpClient.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "workflow://"+workflowID, resources[0].URI)
	assert.Equal(t, "Churn model", resources[0].Name)

	// Edit the workflow through the remote registry.
	addResult, err := mcpClient.CallTool(ctx, "add_node", map[string]interface{}{
		"workflow_id":   workflowID,
		"type":          "process",
		"label":         "Load usage data",
		"session_state": map[string]interface{}{"conversation_id": "conv_0a1b2c3d"},
	})
	require.NoError(t, err)
	assert.False(t, addResult.IsError)

	// The stored document reflects the edit.
	readResult, err := mcpClient.ReadResource(ctx, "workflow://"+workflowID)
	require.NoError(t, err)
	require.NotEmpty(t, readResult.Contents)
	assert.Contains(t, readResult.Contents[0].Text, "Load usage data")

	// Prompts surface.
	listedPrompts, err := mcpClient.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, listedPrompts, 1)
	assert.Equal(t, "subagent.analyze", listedPrompts[0].Name)

	promptResult, err := mcpClient.GetPrompt(ctx, "subagent.analyze", nil)
	require.NoError(t, err)
	require.Len(t, promptResult.Messages, 1)
	assert.Equal(t, "Analyze the flowchart.", promptResult.Messages[0].Content.Text)

	require.NoError(t, mcpClient.Ping(ctx))

	// Shutdown.
	serverCancel()
	serverInW.Close()
	clientInW.Close()

	select {
	case err := <-serverDone:
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

// TestIntegration_HTTPFlow drives the same server through the streamable
// HTTP transport using client.Connect, covering session assignment, tool
// calls, error flattening, and session termination on close.
func TestIntegration_HTTPFlow(t *testing.T) {
	logger := zaptest.NewLogger(t)
	f := newBridgeFixture(t, integrationPrompts())

	mcpServer := NewMCPServer("heddle-mcp", "0.0.1", logger,
		WithToolProvider(f.bridge),
		WithResourceProvider(f.bridge),
		WithPromptProvider(f.bridge),
	)

	httpTransport, err := transport.NewStreamableHTTPServer(transport.StreamableHTTPServerConfig{
		Handler: func(msg []byte) ([]byte, error) {
			return mcpServer.HandleMessage(context.Background(), msg)
		},
		Logger: logger,
	})
	require.NoError(t, err)
	defer httpTransport.Close()

	ts := httptest.NewServer(httpTransport)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mcpClient, err := client.Connect(ctx, client.Options{
		Transport:  "http",
		URL:        ts.URL,
		ClientName: "integration-test",
		Logger:     logger,
	})
	require.NoError(t, err)

	assert.True(t, mcpClient.IsInitialized())
	assert.Equal(t, 1, httpTransport.SessionCount(), "initialize assigns a session")

	listedTools, err := mcpClient.ListTools(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, listedTools)

	// A call with no session_state runs under the bridge's default user.
	createResult, err := mcpClient.CallTool(ctx, "create_workflow", map[string]interface{}{
		"name":        "Fraud check",
		"output_type": "bool",
	})
	require.NoError(t, err)
	assert.False(t, createResult.IsError)

	resources, err := mcpClient.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Fraud check", resources[0].Name)

	// Business failures cross the wire as one diagnostic string.
	_, err = mcpClient.CallTool(ctx, "save_workflow_to_library", map[string]interface{}{
		"workflow_id": "wf_missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool error:")
	assert.Contains(t, err.Error(), "wf_missing")

	// Closing the client terminates the HTTP session.
	require.NoError(t, mcpClient.Close())
	assert.Eventually(t, func() bool {
		return httpTransport.SessionCount() == 0
	}, 2*time.Second, 20*time.Millisecond, "close sends the session DELETE")
}

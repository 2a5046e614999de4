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

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolVersionConstant(t *testing.T) {
	assert.Equal(t, "2024-11-05", ProtocolVersion)
	assert.Equal(t, "2.0", JSONRPCVersion)
}

func TestInitializeParams_WireShape(t *testing.T) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      Implementation{Name: "heddle", Version: "1.4.0"},
	}

	data, err := json.Marshal(params)
	require.NoError(t, err)

	// Capabilities must be present even when the client advertises none.
	assert.JSONEq(t, `{
		"protocolVersion": "2024-11-05",
		"capabilities": {},
		"clientInfo": {"name": "heddle", "version": "1.4.0"}
	}`, string(data))
}

func TestInitializeParams_IgnoresUnknownCapabilities(t *testing.T) {
	raw := `{
		"protocolVersion": "2024-11-05",
		"capabilities": {"roots": {"listChanged": true}, "sampling": {}},
		"clientInfo": {"name": "desktop-host", "version": "0.9.1"}
	}`

	var params InitializeParams
	require.NoError(t, json.Unmarshal([]byte(raw), &params))
	assert.Equal(t, "desktop-host", params.ClientInfo.Name)
	assert.Equal(t, ProtocolVersion, params.ProtocolVersion)
}

func TestServerCapabilities_OmitsAbsentSurfaces(t *testing.T) {
	caps := ServerCapabilities{Tools: &ToolsCapability{}}

	data, err := json.Marshal(caps)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tools": {}}`, string(data))

	caps.Resources = &ResourcesCapability{ListChanged: true}
	caps.Prompts = &PromptsCapability{}

	data, err = json.Marshal(caps)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"tools": {},
		"resources": {"listChanged": true},
		"prompts": {}
	}`, string(data))
}

func TestTool_WireShape(t *testing.T) {
	tool := Tool{
		Name:        "get_workflow",
		Description: "Return the current workflow graph",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}

	data, err := json.Marshal(tool)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "get_workflow",
		"description": "Return the current workflow graph",
		"inputSchema": {"type": "object", "properties": {}}
	}`, string(data))
}

func TestCallToolResult_WireShape(t *testing.T) {
	result := CallToolResult{
		Content: []Content{{Type: "text", Text: "workflow updated"}},
		StructuredContent: map[string]any{
			"success":     true,
			"workflow_id": "wf_1",
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	// isError is omitted when false so hosts treat the call as a success.
	assert.JSONEq(t, `{
		"content": [{"type": "text", "text": "workflow updated"}],
		"structuredContent": {"success": true, "workflow_id": "wf_1"}
	}`, string(data))
}

func TestCallToolResult_ErrorShape(t *testing.T) {
	result := CallToolResult{
		Content: []Content{{Type: "text", Text: "node nd_9 not found"}},
		IsError: true,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"content": [{"type": "text", "text": "node nd_9 not found"}],
		"isError": true
	}`, string(data))
}

func TestResourceContents_TextAndBlobAreAlternatives(t *testing.T) {
	text := ResourceContents{
		URI:      "workflow://wf_1",
		MimeType: "application/json",
		Text:     `{"id":"wf_1"}`,
	}
	data, err := json.Marshal(text)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "blob")

	blob := ResourceContents{URI: "workflow://wf_1", Blob: "eyJpZCI6IndmXzEifQ=="}
	data, err = json.Marshal(blob)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"text"`)
}

func TestGetPromptResult_RoundTrip(t *testing.T) {
	result := GetPromptResult{
		Description: "Guidance for flowchart analysis",
		Messages: []PromptMessage{
			{Role: "user", Content: Content{Type: "text", Text: "Describe the flowchart."}},
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded GetPromptResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "user", decoded.Messages[0].Role)
	assert.Equal(t, "Describe the flowchart.", decoded.Messages[0].Content.Text)
}

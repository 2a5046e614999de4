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

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr bool
	}{
		{
			name: "valid request",
			req: &Request{
				JSONRPC: JSONRPCVersion,
				ID:      NewStringID("req-1"),
				Method:  "initialize",
				Params:  json.RawMessage(`{}`),
			},
		},
		{
			name: "valid notification",
			req: &Request{
				JSONRPC: JSONRPCVersion,
				Method:  "notifications/initialized",
			},
		},
		{
			name: "wrong jsonrpc version",
			req: &Request{
				JSONRPC: "1.0",
				ID:      NewStringID("req-1"),
				Method:  "initialize",
			},
			wantErr: true,
		},
		{
			name: "missing method",
			req: &Request{
				JSONRPC: JSONRPCVersion,
				ID:      NewStringID("req-1"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRequest_ErrorMessages(t *testing.T) {
	err := ValidateRequest(&Request{JSONRPC: "1.0", Method: "tools/list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jsonrpc version")
	assert.Contains(t, err.Error(), "1.0")
	assert.Contains(t, err.Error(), "2.0")
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    *Response
		wantErr bool
	}{
		{
			name: "valid success response",
			resp: &Response{
				JSONRPC: JSONRPCVersion,
				ID:      NewStringID("req-1"),
				Result:  json.RawMessage(`{"success": true}`),
			},
		},
		{
			name: "valid error response",
			resp: &Response{
				JSONRPC: JSONRPCVersion,
				ID:      NewNumberID(1),
				Error:   &Error{Code: InternalError, Message: "internal error"},
			},
		},
		{
			name: "wrong jsonrpc version",
			resp: &Response{
				JSONRPC: "1.0",
				ID:      NewStringID("req-1"),
				Result:  json.RawMessage(`{}`),
			},
			wantErr: true,
		},
		{
			name: "missing id",
			resp: &Response{
				JSONRPC: JSONRPCVersion,
				Result:  json.RawMessage(`{}`),
			},
			wantErr: true,
		},
		{
			name: "both result and error",
			resp: &Response{
				JSONRPC: JSONRPCVersion,
				ID:      NewStringID("req-1"),
				Result:  json.RawMessage(`{}`),
				Error:   &Error{Code: InternalError, Message: "boom"},
			},
			wantErr: true,
		},
		{
			name: "neither result nor error",
			resp: &Response{
				JSONRPC: JSONRPCVersion,
				ID:      NewStringID("req-1"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateResponse_ErrorMessages(t *testing.T) {
	err := ValidateResponse(&Response{
		JSONRPC: JSONRPCVersion,
		ID:      NewStringID("req-1"),
		Result:  json.RawMessage(`{}`),
		Error:   &Error{Code: -1, Message: "boom"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestValidateToolArguments(t *testing.T) {
	addNode := Tool{
		Name: "add_node",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"label": map[string]any{"type": "string", "minLength": float64(1)},
				"node_type": map[string]any{
					"type": "string",
					"enum": []any{"input", "process", "decision", "output"},
				},
				"position": map[string]any{
					"type":    "integer",
					"minimum": float64(0),
				},
			},
			"required": []any{"label", "node_type"},
		},
	}

	tests := []struct {
		name      string
		tool      Tool
		arguments map[string]any
		wantErr   bool
	}{
		{
			name:      "valid arguments",
			tool:      addNode,
			arguments: map[string]any{"label": "Load churn data", "node_type": "input"},
		},
		{
			name:      "valid with optional",
			tool:      addNode,
			arguments: map[string]any{"label": "Score", "node_type": "process", "position": 2},
		},
		{
			name:      "missing required field",
			tool:      addNode,
			arguments: map[string]any{"label": "Load churn data"},
			wantErr:   true,
		},
		{
			name:      "enum violation",
			tool:      addNode,
			arguments: map[string]any{"label": "Load", "node_type": "loop"},
			wantErr:   true,
		},
		{
			name:      "wrong type",
			tool:      addNode,
			arguments: map[string]any{"label": "Load", "node_type": "input", "position": "first"},
			wantErr:   true,
		},
		{
			name:      "empty label",
			tool:      addNode,
			arguments: map[string]any{"label": "", "node_type": "input"},
			wantErr:   true,
		},
		{
			name:      "no schema accepts anything",
			tool:      Tool{Name: "free_form"},
			arguments: map[string]any{"anything": "goes"},
		},
		{
			name:      "empty schema accepts anything",
			tool:      Tool{Name: "free_form", InputSchema: map[string]any{}},
			arguments: map[string]any{"anything": "goes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToolArguments(tt.tool, tt.arguments)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateToolArguments_NestedSchema(t *testing.T) {
	batch := Tool{
		Name: "batch_edit_workflow",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operations": map[string]any{
					"type":     "array",
					"minItems": float64(1),
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"op":   map[string]any{"type": "string"},
							"args": map[string]any{"type": "object"},
						},
						"required": []any{"op"},
					},
				},
			},
			"required": []any{"operations"},
		},
	}

	err := ValidateToolArguments(batch, map[string]any{
		"operations": []any{
			map[string]any{"op": "add_node", "args": map[string]any{"label": "Load"}},
			map[string]any{"op": "add_edge"},
		},
	})
	assert.NoError(t, err)

	err = ValidateToolArguments(batch, map[string]any{"operations": []any{}})
	assert.Error(t, err)

	err = ValidateToolArguments(batch, map[string]any{
		"operations": []any{map[string]any{"args": map[string]any{}}},
	})
	assert.Error(t, err)
}

func TestValidateToolArguments_ErrorNamesTool(t *testing.T) {
	tool := Tool{
		Name: "select_workflow",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"workflow_id": map[string]any{"type": "string"}},
			"required":   []any{"workflow_id"},
		},
	}

	err := ValidateToolArguments(tool, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select_workflow")
}

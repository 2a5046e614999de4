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

package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

func TestBatchEdit_BuildsWorkflow(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")

	res := execOK(t, NewBatchEditTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"operations": []any{
			map[string]any{"op": "add_variable", "name": "BMI", "type": "number"},
			map[string]any{"op": "add_node", "type": "start", "label": "Start", "temp_id": "s"},
			map[string]any{
				"op": "add_node", "type": "decision", "label": "BMI >= 30?", "temp_id": "d",
				"condition": map[string]any{"input_id": "BMI", "comparator": "gte", "value": 30},
			},
			map[string]any{
				"op": "add_node", "type": "end", "label": "Obese", "temp_id": "o",
				"output_template": "Obese",
			},
			map[string]any{
				"op": "add_node", "type": "end", "label": "Healthy", "temp_id": "h",
				"output_value": "Healthy",
			},
			map[string]any{"op": "add_connection", "from": "s", "to": "d"},
			map[string]any{"op": "add_connection", "from": "d", "to": "o", "label": "true"},
			map[string]any{"op": "add_connection", "from": "d", "to": "h"},
		},
	})
	assert.Equal(t, 8, res.Data["operations_applied"])
	assert.Equal(t, "Applied 8 operation(s).", res.Message)
	tempIDs, ok := res.Data["temp_ids"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, tempIDs, 4)

	stored := getStored(t, sess, w.ID)
	assert.Len(t, stored.Nodes, 4)
	assert.Len(t, stored.Edges, 3)
	assert.Len(t, stored.Variables, 1)

	// The omitted label on the last connection takes the free false branch.
	valid, verrs := workflow.Validate(stored, workflow.Strict)
	assert.True(t, valid, "expected a complete workflow, got %v", verrs)
}

func TestBatchEdit_AllOrNothing(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")

	res := execFail(t, NewBatchEditTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"operations": []any{
			map[string]any{"op": "add_node", "type": "start", "label": "Start"},
			map[string]any{"op": "add_node", "type": "decision", "label": "Broken"},
		},
	}, workflow.CodeInvalidCondition)
	assert.Contains(t, res.Error.Message, "operation 1 (add_node)")
	assert.Empty(t, getStored(t, sess, w.ID).Nodes, "a failed batch leaves the draft untouched")
}

func TestBatchEdit_TempIDReuse(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")

	res := execFail(t, NewBatchEditTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"operations": []any{
			map[string]any{"op": "add_node", "type": "start", "label": "Start", "temp_id": "n"},
			map[string]any{"op": "add_node", "type": "process", "label": "Work", "temp_id": "n"},
		},
	}, CodeInvalidParams)
	assert.Contains(t, res.Error.Message, "reuses temp_id")
}

func TestBatchEdit_EmptyOperations(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")
	tool := NewBatchEditTool()

	res := execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "operations": []any{}},
		CodeInvalidParams)
	assert.Equal(t, "operations must be a non-empty array", res.Error.Message)

	execFail(t, tool, sess, map[string]any{"workflow_id": w.ID}, CodeInvalidParams)
}

func TestBatchEdit_UnknownOp(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")

	res := execFail(t, NewBatchEditTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"operations": []any{
			map[string]any{"op": "rename_workflow", "name": "Other"},
		},
	}, CodeInvalidParams)
	assert.Contains(t, res.Error.Message, "unknown op")
	assert.Contains(t, res.Error.Suggestion, "add_variable")
}

func TestBatchEdit_ModifyByTempID(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")

	execOK(t, NewBatchEditTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"operations": []any{
			map[string]any{"op": "add_node", "type": "start", "label": "Start", "temp_id": "s"},
			map[string]any{"op": "modify_node", "node_id": "s", "label": "Begin"},
		},
	})

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "Begin", stored.Nodes[0].Label)
}

func TestBatchEdit_AliasOpNames(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "BMI Checker")

	execOK(t, NewBatchEditTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"operations": []any{
			map[string]any{"op": "add_workflow_variable", "name": "Score", "type": "int"},
			map[string]any{"op": "add_node", "type": "start", "label": "Start", "temp_id": "a"},
			map[string]any{"op": "add_node", "type": "end", "label": "Done", "temp_id": "b"},
			map[string]any{"op": "add_edge", "from": "a", "to": "b"},
		},
	})

	stored := getStored(t, sess, w.ID)
	assert.Len(t, stored.Edges, 1)
	assert.Len(t, stored.Variables, 1)
}

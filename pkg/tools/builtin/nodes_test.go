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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

func TestAddNode_StartThenProcess(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Check")
	tool := NewAddNodeTool()

	res := execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID,
		"type":        "start",
		"label":       "Start",
		"x":           40,
		"y":           80,
	})
	nodeID, _ := res.Data["node_id"].(string)
	assert.True(t, strings.HasPrefix(nodeID, "node_"), "got id %q", nodeID)
	assert.Contains(t, res.Message, `Added start node "Start"`)
	assert.Contains(t, res.Data, "current_workflow")
	assert.Contains(t, res.Data, "workflow_analysis")
	assert.Contains(t, res.Data, "diff")
	assert.Equal(t, w.ID, sess.WorkflowID, "the edit binds the session to the workflow")

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, workflow.NodeStart, stored.Nodes[0].Type)
	assert.Equal(t, 40.0, stored.Nodes[0].X)
	assert.Equal(t, 80.0, stored.Nodes[0].Y)

	execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID,
		"type":        "process",
		"label":       "Check documents",
	})
	assert.Len(t, getStored(t, sess, w.ID).Nodes, 2)
}

func TestAddNode_SecondStartRejected(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Check")
	tool := NewAddNodeTool()

	execOK(t, tool, sess, map[string]any{"workflow_id": w.ID, "type": "start", "label": "Start"})
	execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "type": "start", "label": "Another start"},
		workflow.CodeMultipleStartNodes)

	assert.Len(t, getStored(t, sess, w.ID).Nodes, 1, "the rejected node never commits")
}

func TestAddNode_InvalidArguments(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Check")
	tool := NewAddNodeTool()

	execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "type": "banana", "label": "Huh"},
		workflow.CodeInvalidNodeType)
	execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "type": "process"},
		CodeInvalidParams)
	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "type": "end", "label": "Done", "output_type": "decimal",
	}, CodeInvalidParams)

	assert.Empty(t, getStored(t, sess, w.ID).Nodes)
}

func TestAddNode_DecisionRequiresResolvableCondition(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Check")
	tool := NewAddNodeTool()

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "type": "decision", "label": "Approved?",
	}, workflow.CodeInvalidCondition)

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "type": "decision", "label": "Approved?",
		"condition": map[string]any{"input_id": "Ghost", "comparator": "gte", "value": 1},
	}, workflow.CodeUnknownInputReference)

	assert.Empty(t, getStored(t, sess, w.ID).Nodes)
}

func TestAddNode_DecisionStoresVariableID(t *testing.T) {
	sess := newSession(t)
	w := workflow.New(sess.UserID, "Loan Check", "string")
	w.Variables = append(w.Variables, workflow.Variable{
		ID:     workflow.VariableID("Age", workflow.SourceInput, workflow.TypeInt),
		Name:   "Age",
		Type:   workflow.TypeInt,
		Source: workflow.SourceInput,
	})
	require.NoError(t, sess.Store.Create(context.Background(), w))

	execOK(t, NewAddNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"type":        "decision",
		"label":       "Adult?",
		"condition":   map[string]any{"input_id": "Age", "comparator": "gte", "value": 18},
	})

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Nodes, 1)
	cond := stored.Nodes[0].Condition
	require.NotNil(t, cond)
	assert.Equal(t, "var_age_int", cond.InputID, "the name reference is stored as the id")
	assert.Equal(t, "gte", cond.Comparator)
	assert.EqualValues(t, 18, cond.Value)
}

func TestAddNode_SubprocessRegistersOutputVariable(t *testing.T) {
	sess := newSession(t)

	sub := workflow.New(sess.UserID, "BMI Calculator", "float")
	sub.Metadata.IsDraft = false
	sub.Variables = append(sub.Variables, workflow.Variable{
		ID:     workflow.VariableID("Height", workflow.SourceInput, workflow.TypeFloat),
		Name:   "Height",
		Type:   workflow.TypeFloat,
		Source: workflow.SourceInput,
	})
	require.NoError(t, sess.Store.Create(context.Background(), sub))

	parent := workflow.New(sess.UserID, "Health Check", "string")
	parent.Variables = append(parent.Variables, workflow.Variable{
		ID:     workflow.VariableID("Height", workflow.SourceInput, workflow.TypeFloat),
		Name:   "Height",
		Type:   workflow.TypeFloat,
		Source: workflow.SourceInput,
	})
	require.NoError(t, sess.Store.Create(context.Background(), parent))

	res := execOK(t, NewAddNodeTool(), sess, map[string]any{
		"workflow_id":     parent.ID,
		"type":            "subprocess",
		"label":           "Compute BMI",
		"subworkflow_id":  sub.ID,
		"output_variable": "BMI Result",
		"input_mapping":   map[string]any{"Height": "Height"},
	})
	assert.Equal(t, "var_sub_bmi_result_float", res.Data["output_variable_id"])

	stored := getStored(t, sess, parent.ID)
	require.Len(t, stored.Nodes, 1)
	n := stored.Nodes[0]
	assert.Equal(t, sub.ID, n.SubworkflowID)
	assert.Equal(t, "BMI Result", n.OutputVariable)
	assert.Equal(t, map[string]string{"Height": "Height"}, n.InputMapping)

	require.Len(t, stored.Variables, 2)
	v := stored.VariableByName("BMI Result")
	require.NotNil(t, v)
	assert.Equal(t, workflow.SourceSubprocess, v.Source)
	assert.Equal(t, workflow.TypeFloat, v.Type, "the result type follows the subworkflow's output type")
	assert.Equal(t, "Result of BMI Calculator", v.Description)
}

func TestAddNode_SubprocessFailures(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Health Check")
	tool := NewAddNodeTool()

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "type": "subprocess", "label": "Call",
		"output_variable": "Result",
	}, workflow.CodeSubprocessValidationFailed)

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "type": "subprocess", "label": "Call",
		"subworkflow_id": "wf_missing1", "output_variable": "Result",
	}, workflow.CodeSubprocessValidationFailed)

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "type": "subprocess", "label": "Call",
		"subworkflow_id": w.ID, "output_variable": "Result",
	}, workflow.CodeSubprocessValidationFailed)

	assert.Empty(t, getStored(t, sess, w.ID).Nodes)
}

func TestAddNode_SubprocessMappingValidated(t *testing.T) {
	sess := newSession(t)
	sub := workflow.New(sess.UserID, "BMI Calculator", "float")
	sub.Metadata.IsDraft = false
	require.NoError(t, sess.Store.Create(context.Background(), sub))
	parent := seedWorkflow(t, sess, "Health Check")

	// The parent side of the mapping must be a declared variable.
	res := execFail(t, NewAddNodeTool(), sess, map[string]any{
		"workflow_id":     parent.ID,
		"type":            "subprocess",
		"label":           "Compute BMI",
		"subworkflow_id":  sub.ID,
		"output_variable": "BMI Result",
		"input_mapping":   map[string]any{"Height": "Height"},
	}, workflow.CodeSubprocessValidationFailed)
	assert.Contains(t, res.Error.Message, "Height")
}

func TestAddNode_EndOutputs(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Check")

	execOK(t, NewAddNodeTool(), sess, map[string]any{
		"workflow_id":  w.ID,
		"type":         "end",
		"label":        "Approved",
		"output_type":  "int",
		"output_value": 42,
	})

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "int", stored.Nodes[0].OutputType)
	assert.EqualValues(t, 42, stored.Nodes[0].OutputValue)
}

func TestModifyNode_UpdatesOnlyProvidedFields(t *testing.T) {
	sess := newSession(t)
	w := workflow.New(sess.UserID, "Flow", "string")
	w.Nodes = append(w.Nodes, workflow.Node{
		ID: workflow.NewNodeID(), Type: workflow.NodeStart, Label: "Start", X: 10, Y: 20,
	})
	require.NoError(t, sess.Store.Create(context.Background(), w))

	// Addressed by label, since it is unique.
	res := execOK(t, NewModifyNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"node_id":     "Start",
		"label":       "Begin",
		"x":           120,
	})
	assert.Contains(t, res.Message, `Updated node "Begin"`)

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "Begin", stored.Nodes[0].Label)
	assert.Equal(t, 120.0, stored.Nodes[0].X)
	assert.Equal(t, 20.0, stored.Nodes[0].Y, "untouched fields keep their values")
}

func TestModifyNode_ReplacesDecisionCondition(t *testing.T) {
	sess := newSession(t)
	w := workflow.New(sess.UserID, "Flow", "string")
	age := workflow.Variable{
		ID:   workflow.VariableID("Age", workflow.SourceInput, workflow.TypeInt),
		Name: "Age", Type: workflow.TypeInt, Source: workflow.SourceInput,
	}
	income := workflow.Variable{
		ID:   workflow.VariableID("Income", workflow.SourceInput, workflow.TypeFloat),
		Name: "Income", Type: workflow.TypeFloat, Source: workflow.SourceInput,
	}
	decision := workflow.Node{
		ID: workflow.NewNodeID(), Type: workflow.NodeDecision, Label: "Eligible?",
		Condition: &workflow.Condition{InputID: age.ID, Comparator: "gte", Value: 18},
	}
	w.Variables = append(w.Variables, age, income)
	w.Nodes = append(w.Nodes, decision)
	require.NoError(t, sess.Store.Create(context.Background(), w))

	execOK(t, NewModifyNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"node_id":     decision.ID,
		"condition":   map[string]any{"input_id": "Income", "comparator": "gt", "value": 2500},
	})

	cond := getStored(t, sess, w.ID).Nodes[0].Condition
	require.NotNil(t, cond)
	assert.Equal(t, income.ID, cond.InputID)
	assert.Equal(t, "gt", cond.Comparator)
}

func TestModifyNode_ConditionOnNonDecision(t *testing.T) {
	sess := newSession(t)
	w := workflow.New(sess.UserID, "Flow", "string")
	w.Nodes = append(w.Nodes, workflow.Node{
		ID: workflow.NewNodeID(), Type: workflow.NodeProcess, Label: "Check",
	})
	require.NoError(t, sess.Store.Create(context.Background(), w))

	res := execFail(t, NewModifyNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"node_id":     "Check",
		"condition":   map[string]any{"input_id": "Age", "comparator": "gte", "value": 18},
	}, CodeInvalidParams)
	assert.Contains(t, res.Error.Message, "cannot carry a condition")
}

func TestModifyNode_Unknown(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Flow")
	execFail(t, NewModifyNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"node_id":     "node_missing1",
		"label":       "New",
	}, workflow.CodeNodeNotFound)
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	sess := newSession(t)
	w := workflow.New(sess.UserID, "Flow", "string")
	start := workflow.Node{ID: workflow.NewNodeID(), Type: workflow.NodeStart, Label: "Start"}
	middle := workflow.Node{ID: workflow.NewNodeID(), Type: workflow.NodeProcess, Label: "Middle"}
	end := workflow.Node{ID: workflow.NewNodeID(), Type: workflow.NodeEnd, Label: "Done"}
	w.Nodes = append(w.Nodes, start, middle, end)
	w.Edges = append(w.Edges,
		workflow.Edge{ID: workflow.EdgeID(start.ID, middle.ID), From: start.ID, To: middle.ID},
		workflow.Edge{ID: workflow.EdgeID(middle.ID, end.ID), From: middle.ID, To: end.ID},
	)
	require.NoError(t, sess.Store.Create(context.Background(), w))

	res := execOK(t, NewDeleteNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"node_id":     "Middle",
	})
	assert.Equal(t, middle.ID, res.Data["node_id"])
	assert.Equal(t, 2, res.Data["removed_edges"])
	assert.Contains(t, res.Message, "2 connection(s)")

	stored := getStored(t, sess, w.ID)
	assert.Len(t, stored.Nodes, 2)
	assert.Empty(t, stored.Edges, "edges touching the node go with it")
}

func TestDeleteNode_Unknown(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Flow")
	execFail(t, NewDeleteNodeTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"node_id":     "node_missing1",
	}, workflow.CodeNodeNotFound)
}

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// seedAgeGate stores a draft whose single decision references an Age input.
func seedAgeGate(t *testing.T, sess *tools.SessionState) (*workflow.Workflow, workflow.Variable, workflow.Node) {
	t.Helper()
	age := workflow.Variable{
		ID:     workflow.VariableID("Age", workflow.SourceInput, workflow.TypeInt),
		Name:   "Age",
		Type:   workflow.TypeInt,
		Source: workflow.SourceInput,
	}
	check := workflow.Node{
		ID:    workflow.NewNodeID(),
		Type:  workflow.NodeDecision,
		Label: "Adult?",
		Condition: &workflow.Condition{
			InputID:    age.ID,
			Comparator: "gte",
			Value:      18,
		},
	}
	w := workflow.New(sess.UserID, "Age Gate", "string")
	w.Variables = append(w.Variables, age)
	w.Nodes = append(w.Nodes, check)
	require.NoError(t, sess.Store.Create(context.Background(), w))
	return w, age, check
}

func TestAddVariable(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Flow")

	res := execOK(t, NewAddVariableTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"name":        "Credit Score",
		"type":        "int",
		"description": "Applicant credit score",
		"range":       map[string]any{"min": 300, "max": 850},
	})
	assert.Equal(t, "var_credit_score_int", res.Data["variable_id"])

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Variables, 1)
	v := stored.Variables[0]
	assert.Equal(t, "Credit Score", v.Name)
	assert.Equal(t, workflow.TypeInt, v.Type)
	assert.Equal(t, workflow.SourceInput, v.Source)
	require.NotNil(t, v.Range)
	require.NotNil(t, v.Range.Min)
	require.NotNil(t, v.Range.Max)
	assert.Equal(t, 300.0, *v.Range.Min)
	assert.Equal(t, 850.0, *v.Range.Max)
}

func TestAddVariable_EnumRules(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Flow")
	tool := NewAddVariableTool()

	res := execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "name": "Grade", "type": "enum",
	}, CodeInvalidParams)
	assert.Contains(t, res.Error.Message, "enum variables require enum_values")

	execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "name": "Grade", "type": "enum",
		"enum_values": []any{"low", "high"},
	})
	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Variables, 1)
	assert.Equal(t, []string{"low", "high"}, stored.Variables[0].EnumValues)

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "name": "Count", "type": "int",
		"enum_values": []any{"one", "two"},
	}, CodeInvalidParams)
}

func TestAddVariable_DuplicateName(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Health Flow")
	tool := NewAddVariableTool()

	execOK(t, tool, sess, map[string]any{"workflow_id": w.ID, "name": "BMI", "type": "number"})
	res := execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "name": "bmi", "type": "float"},
		CodeDuplicateVariable)
	assert.Contains(t, res.Error.Message, "already exists")
}

func TestAddVariable_RangeOnNonNumeric(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Flow")

	res := execFail(t, NewAddVariableTool(), sess, map[string]any{
		"workflow_id": w.ID, "name": "Country", "type": "string",
		"range": map[string]any{"min": 1},
	}, CodeInvalidParams)
	assert.Contains(t, res.Error.Message, "range only applies to numeric variables")
}

func TestModifyVariable_RenameRewritesConditions(t *testing.T) {
	sess := newSession(t)
	w, age, check := seedAgeGate(t, sess)

	res := execOK(t, NewModifyVariableTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"name":        "Age",
		"new_name":    "Applicant Age",
	})
	assert.Equal(t, age.ID, res.Data["old_id"])
	assert.Equal(t, "var_applicant_age_int", res.Data["new_id"])
	assert.Equal(t, []string{check.Label + " (" + check.ID + ")"}, res.Data["updated_decisions"])
	assert.Contains(t, res.Data["warning"], "variable id changed from")
	assert.Contains(t, res.Message, "Variable id changed")

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Variables, 1)
	assert.Equal(t, "Applicant Age", stored.Variables[0].Name)
	assert.Equal(t, "var_applicant_age_int", stored.Variables[0].ID)
	require.NotNil(t, stored.Nodes[0].Condition)
	assert.Equal(t, "var_applicant_age_int", stored.Nodes[0].Condition.InputID,
		"the decision must follow the variable to its new id")
}

func TestModifyVariable_TypeChangeInvalidatingCondition(t *testing.T) {
	sess := newSession(t)
	w, age, _ := seedAgeGate(t, sess)

	// gte has no meaning for strings, so staged validation rejects the edit.
	execFail(t, NewModifyVariableTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"name":        "Age",
		"new_type":    "string",
	}, workflow.CodeInvalidCondition)

	stored := getStored(t, sess, w.ID)
	assert.Equal(t, workflow.TypeInt, stored.Variables[0].Type)
	assert.Equal(t, age.ID, stored.Nodes[0].Condition.InputID)
}

func TestModifyVariable_Unknown(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Flow")

	execFail(t, NewModifyVariableTool(), sess, map[string]any{
		"workflow_id": w.ID, "name": "Ghost", "new_name": "Spirit",
	}, CodeNotFound)
}

func TestRemoveVariable_InUse(t *testing.T) {
	sess := newSession(t)
	w, _, check := seedAgeGate(t, sess)

	res := execFail(t, NewRemoveVariableTool(), sess, map[string]any{
		"workflow_id": w.ID, "name": "Age",
	}, CodeVariableInUse)
	assert.Contains(t, res.Error.Message, check.Label)
	assert.Contains(t, res.Error.Suggestion, "force")
	assert.Len(t, getStored(t, sess, w.ID).Variables, 1)
}

func TestRemoveVariable_Force(t *testing.T) {
	sess := newSession(t)
	w, _, check := seedAgeGate(t, sess)

	res := execOK(t, NewRemoveVariableTool(), sess, map[string]any{
		"workflow_id": w.ID, "name": "Age", "force": true,
	})
	assert.Equal(t, []string{check.Label + " (" + check.ID + ")"}, res.Data["cleared_decisions"])
	assert.Contains(t, res.Data["warning"], "need new conditions")

	stored := getStored(t, sess, w.ID)
	assert.Empty(t, stored.Variables)
	assert.Nil(t, stored.Nodes[0].Condition, "force clears the referencing condition")
}

func TestSetOutput_DeclareAndUpdate(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Flow")
	tool := NewSetOutputTool()

	res := execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "name": "Risk", "type": "string", "description": "Risk grade",
	})
	assert.Equal(t, `Declared output "Risk" (string).`, res.Message)

	// Re-declaring the same name updates in place and keeps the description.
	res = execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "name": "Risk", "type": "int",
	})
	assert.Equal(t, `Updated output "Risk" (int).`, res.Message)

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Outputs, 1)
	assert.Equal(t, "int", stored.Outputs[0].Type)
	assert.Equal(t, "Risk grade", stored.Outputs[0].Description)
}

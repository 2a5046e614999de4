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
package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasCode(errs []ValidationError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func findCode(t *testing.T, errs []ValidationError, code string) ValidationError {
	t.Helper()
	for _, e := range errs {
		if e.Code == code {
			return e
		}
	}
	t.Fatalf("expected error code %s, got %+v", code, errs)
	return ValidationError{}
}

func TestValidate_EmptyWorkflow(t *testing.T) {
	w := New("u", "Empty", "string")

	ok, errs := Validate(w, Lenient)
	assert.True(t, ok, "lenient mode accepts a workflow under construction: %+v", errs)

	ok, errs = Validate(w, Strict)
	require.False(t, ok)
	assert.True(t, hasCode(errs, CodeMissingStartNode))
}

func TestValidate_MultipleStartNodes(t *testing.T) {
	w := New("u", "Two Starts", "string")
	w.Nodes = []Node{
		{ID: "s1", Type: NodeStart, Label: "Start A"},
		{ID: "s2", Type: NodeStart, Label: "Start B"},
	}

	ok, errs := Validate(w, Lenient)
	require.False(t, ok)
	assert.True(t, hasCode(errs, CodeMultipleStartNodes))
}

func TestValidate_InvalidNodeType(t *testing.T) {
	w := New("u", "Bad Type", "string")
	w.Nodes = []Node{{ID: "x", Type: "loop", Label: "Loop"}}

	_, errs := Validate(w, Lenient)
	e := findCode(t, errs, CodeInvalidNodeType)
	assert.Equal(t, "x", e.NodeID)
}

func TestValidate_EdgeToMissingNode(t *testing.T) {
	w := New("u", "Dangling Edge", "string")
	w.Nodes = []Node{{ID: "a", Type: NodeStart, Label: "Start"}}
	w.Edges = []Edge{{ID: EdgeID("a", "ghost"), From: "a", To: "ghost"}}

	_, errs := Validate(w, Lenient)
	e := findCode(t, errs, CodeNodeNotFound)
	assert.Equal(t, "a->ghost", e.EdgeID)
}

func TestValidate_SelfLoop(t *testing.T) {
	w := New("u", "Self Loop", "string")
	w.Nodes = []Node{{ID: "a", Type: NodeProcess, Label: "Spin"}}
	w.Edges = []Edge{{ID: EdgeID("a", "a"), From: "a", To: "a"}}

	_, errs := Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeSelfLoop))
	assert.False(t, hasCode(errs, CodeCycleDetected), "self-loops are reported once, not twice")
}

func TestValidate_CycleMessageContainsPath(t *testing.T) {
	w := New("u", "Cycle", "string")
	w.Nodes = []Node{
		{ID: "n1", Type: NodeProcess, Label: "One"},
		{ID: "n2", Type: NodeProcess, Label: "Two"},
		{ID: "n3", Type: NodeProcess, Label: "Three"},
	}
	w.Edges = []Edge{
		{ID: EdgeID("n1", "n2"), From: "n1", To: "n2"},
		{ID: EdgeID("n2", "n3"), From: "n2", To: "n3"},
		{ID: EdgeID("n3", "n1"), From: "n3", To: "n1"},
	}

	ok, errs := Validate(w, Lenient)
	require.False(t, ok)
	e := findCode(t, errs, CodeCycleDetected)
	assert.Contains(t, e.Message, "n1→n2→n3→n1")
}

func TestValidate_DecisionBranchLabels(t *testing.T) {
	w := New("u", "Branches", "string")
	w.Variables = []Variable{{ID: "var_x_int", Name: "X", Type: TypeInt, Source: SourceInput}}
	w.Nodes = []Node{
		{ID: "d", Type: NodeDecision, Label: "X > 0", Condition: &Condition{
			InputID: "var_x_int", Comparator: "gt", Value: float64(0),
		}},
		{ID: "e1", Type: NodeEnd, Label: "A"},
		{ID: "e2", Type: NodeEnd, Label: "B"},
	}

	w.Edges = []Edge{
		{ID: EdgeID("d", "e1"), From: "d", To: "e1", Label: "maybe"},
	}
	_, errs := Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeInvalidEdgeLabel))

	w.Edges = []Edge{
		{ID: EdgeID("d", "e1"), From: "d", To: "e1", Label: "true"},
		{ID: EdgeID("d", "e2"), From: "d", To: "e2", Label: "true"},
	}
	_, errs = Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeDuplicateEdgeLabel))
}

func TestValidate_MaxBranches(t *testing.T) {
	w := New("u", "Too Many", "string")
	w.Variables = []Variable{{ID: "var_x_int", Name: "X", Type: TypeInt, Source: SourceInput}}
	w.Nodes = []Node{
		{ID: "d", Type: NodeDecision, Label: "X > 0", Condition: &Condition{
			InputID: "var_x_int", Comparator: "gt", Value: float64(0),
		}},
		{ID: "e1", Type: NodeEnd, Label: "A"},
		{ID: "e2", Type: NodeEnd, Label: "B"},
		{ID: "e3", Type: NodeEnd, Label: "C"},
	}
	w.Edges = []Edge{
		{ID: EdgeID("d", "e1"), From: "d", To: "e1", Label: "true"},
		{ID: EdgeID("d", "e2"), From: "d", To: "e2", Label: "false"},
		{ID: EdgeID("d", "e3"), From: "d", To: "e3", Label: "true"},
	}

	_, errs := Validate(w, Lenient)
	e := findCode(t, errs, CodeMaxBranchesReached)
	assert.Equal(t, "d", e.NodeID)
}

func TestValidate_ConditionChecks(t *testing.T) {
	base := func() *Workflow {
		w := New("u", "Conditions", "string")
		w.Variables = []Variable{
			{ID: "var_bmi_float", Name: "BMI", Type: TypeFloat, Source: SourceInput},
			{ID: "var_level_enum", Name: "Level", Type: TypeEnum, Source: SourceInput,
				EnumValues: []string{"low", "high"}},
		}
		return w
	}

	w := base()
	w.Nodes = []Node{{ID: "d", Type: NodeDecision, Label: "?", Condition: &Condition{
		InputID: "var_missing", Comparator: "gt", Value: float64(1),
	}}}
	_, errs := Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeUnknownInputReference))

	w = base()
	w.Nodes = []Node{{ID: "d", Type: NodeDecision, Label: "?", Condition: &Condition{
		InputID: "var_bmi_float", Comparator: "str_contains", Value: "x",
	}}}
	_, errs = Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeInvalidCondition))

	w = base()
	w.Nodes = []Node{{ID: "d", Type: NodeDecision, Label: "?", Condition: &Condition{
		InputID: "var_bmi_float", Comparator: "within_range", Value: float64(10),
	}}}
	_, errs = Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeInvalidCondition), "within_range without value2")

	w = base()
	w.Nodes = []Node{{ID: "d", Type: NodeDecision, Label: "?", Condition: &Condition{
		InputID: "var_level_enum", Comparator: "enum_eq", Value: "medium",
	}}}
	_, errs = Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeInvalidCondition), "value outside the enum's values")

	// A decision without a condition is fine while editing, not for publishing.
	w = base()
	w.Nodes = []Node{{ID: "d", Type: NodeDecision, Label: "?"}}
	_, errs = Validate(w, Lenient)
	assert.False(t, hasCode(errs, CodeInvalidCondition))
	_, errs = Validate(w, Strict)
	assert.True(t, hasCode(errs, CodeInvalidCondition))
}

func TestValidate_SubprocessStructure(t *testing.T) {
	w := New("u", "Sub", "string")
	w.Nodes = []Node{{ID: "sp", Type: NodeSubprocess, Label: "Compute"}}

	_, errs := Validate(w, Lenient)
	assert.True(t, hasCode(errs, CodeSubprocessValidationFailed))
}

func TestValidate_StrictCompletion(t *testing.T) {
	w := buildBMIWorkflow(t)

	ok, errs := Validate(w, Strict)
	assert.True(t, ok, "complete workflow should pass strict validation: %+v", errs)

	// Drop the false branch: the decision is incomplete and Healthy is
	// unreachable.
	w2 := w.Clone()
	w2.RemoveEdge("node_check01", "node_healthy1")
	ok, errs = Validate(w2, Strict)
	require.False(t, ok)
	assert.True(t, hasCode(errs, CodeValidationFailed))

	// Same graph is fine in lenient mode.
	ok, _ = Validate(w2, Lenient)
	assert.True(t, ok)
}

func TestValidate_StrictUnusedInputVariable(t *testing.T) {
	w := buildBMIWorkflow(t)
	w.Variables = append(w.Variables, Variable{
		ID: "var_age_int", Name: "Age", Type: TypeInt, Source: SourceInput,
	})

	ok, errs := Validate(w, Strict)
	require.False(t, ok)
	e := findCode(t, errs, CodeValidationFailed)
	assert.Contains(t, e.Message, "Age")

	ok, _ = Validate(w, Lenient)
	assert.True(t, ok, "unused variables only block strict validation")
}

func TestValidate_StrictTemplateResolution(t *testing.T) {
	w := buildBMIWorkflow(t)
	w.Nodes[2].OutputTemplate = "Result: {Weight}"

	_, errs := Validate(w, Strict)
	e := findCode(t, errs, CodeUnknownInputReference)
	assert.Equal(t, "node_obese01", e.NodeID)

	w.Nodes[2].OutputTemplate = "BMI was {BMI}"
	ok, errs := Validate(w, Strict)
	assert.True(t, ok, "%+v", errs)
}

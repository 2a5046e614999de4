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

package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Here is the result: {"a": 1} hope that helps`, `{"a": 1}`},
		{"prose before fence", "Sure thing!\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"array in fence", "```json\n[{\"text\": \"x\"}]\n```", `[{"text": "x"}]`},
		{"unclosed fence", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"no json at all", "nothing to see here", "nothing to see here"},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	raw := "```json\n" + `{
		"variables": [{"id": "var_age_int", "name": "Age", "type": "int", "source": "input"}],
		"outputs": [{"name": "decision", "type": "string"}],
		"tree": [{"id": "n1", "type": "start", "label": "Start", "children": [{"to": "n2"}]}],
		"doubts": ["handwriting on the left is illegible"]
	}` + "\n```"

	a, err := ParseAnalysis(raw)
	require.NoError(t, err)

	require.Len(t, a.Variables, 1)
	assert.Equal(t, "var_age_int", a.Variables[0].ID)
	assert.Equal(t, workflow.TypeInt, a.Variables[0].Type)
	require.Len(t, a.Tree, 1)
	assert.Equal(t, "n2", a.Tree[0].Children[0].To)
	assert.Len(t, a.Doubts, 1)
}

func TestParseAnalysis_NotJSON(t *testing.T) {
	_, err := ParseAnalysis("The flow starts at the top and branches twice.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse analysis JSON")
}

func TestParseGuidance(t *testing.T) {
	notes, err := parseGuidance("```json\n[{\"text\": \"Scores under 600 always decline\", \"location\": \"margin\", \"category\": \"business_rule\"}]\n```")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Scores under 600 always decline", notes[0].Text)
	assert.Equal(t, GuidanceBusinessRule, notes[0].Category)

	notes, err = parseGuidance("[]")
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = parseGuidance("no guidance found")
	require.Error(t, err)
}

func TestNormalize_DedupsVariables(t *testing.T) {
	a := &Analysis{
		Variables: []workflow.Variable{
			{ID: "var_age_int", Name: "Age"},
			{ID: "var_age_int", Name: "Age duplicate"},
			{ID: "var_income_float", Name: "Income"},
		},
	}
	a.Normalize()

	require.Len(t, a.Variables, 2)
	assert.Equal(t, "Age", a.Variables[0].Name)
	assert.Equal(t, "var_income_float", a.Variables[1].ID)
	require.Len(t, a.Doubts, 1)
	assert.Contains(t, a.Doubts[0], `Duplicate variable id "var_age_int"`)
}

func TestNormalize_FiltersUnknownInputIDs(t *testing.T) {
	a := &Analysis{
		Variables: []workflow.Variable{{ID: "var_age_int", Name: "Age"}},
		Tree: []TreeNode{
			{ID: "n1", Type: "process", InputIDs: []string{"var_age_int", "var_ghost_int"}},
			{ID: "n2", Type: "end"},
		},
	}
	a.Normalize()

	assert.Equal(t, []string{"var_age_int"}, a.Tree[0].InputIDs)
	require.Len(t, a.Doubts, 1)
	assert.Contains(t, a.Doubts[0], "n1")
	assert.Contains(t, a.Doubts[0], "var_ghost_int")
}

func TestNormalize_FillsNilLists(t *testing.T) {
	a := &Analysis{}
	a.Normalize()

	assert.NotNil(t, a.Variables)
	assert.NotNil(t, a.Outputs)
	assert.NotNil(t, a.Tree)
	assert.NotNil(t, a.Doubts)
	assert.Empty(t, a.Doubts)
}

func TestMissingFilesAnalysis(t *testing.T) {
	a := MissingFilesAnalysis()

	require.Len(t, a.Doubts, 1)
	assert.Contains(t, a.Doubts[0], "upload")
	assert.NotNil(t, a.Variables)
	assert.Empty(t, a.Variables)
	assert.Empty(t, a.Tree)
}

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

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// seedLibrary stores a published workflow with the given name and domain.
func seedLibrary(t *testing.T, sess *tools.SessionState, name, domain string) *workflow.Workflow {
	t.Helper()
	w := workflow.New(sess.UserID, name, "string")
	w.Metadata.IsDraft = false
	w.Metadata.Domain = domain
	require.NoError(t, sess.Store.Create(context.Background(), w))
	return w
}

func TestCreateWorkflow(t *testing.T) {
	sess := newSession(t)

	res := execOK(t, NewCreateWorkflowTool(), sess, map[string]any{
		"name":        "Loan Approval",
		"output_type": "string",
		"description": "Scores loan applications",
		"domain":      "lending",
		"tags":        []any{"loans", "credit"},
	})
	assert.Contains(t, res.Message, "Created draft workflow")

	id, _ := res.Data["workflow_id"].(string)
	assert.True(t, strings.HasPrefix(id, "wf_"), "workflow_id: %q", id)
	assert.Equal(t, id, sess.WorkflowID, "the session binds to the new draft")
	assert.Contains(t, res.Data, "current_workflow")
	assert.Contains(t, res.Data, "workflow_analysis")

	stored := getStored(t, sess, id)
	assert.True(t, stored.Metadata.IsDraft)
	assert.Equal(t, "lending", stored.Metadata.Domain)
	assert.Equal(t, []string{"loans", "credit"}, stored.Metadata.Tags)
}

func TestCreateWorkflow_InvalidOutputType(t *testing.T) {
	sess := newSession(t)

	res := execFail(t, NewCreateWorkflowTool(), sess, map[string]any{
		"name": "Loan Approval", "output_type": "decimal",
	}, CodeInvalidParams)
	assert.Contains(t, res.Error.Suggestion, "string")
}

func TestSaveWorkflow(t *testing.T) {
	sess := newSession(t)
	w := seedWorkflow(t, sess, "Loan Approval")
	tool := NewSaveWorkflowTool()

	res := execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID,
		"name":        "Loan Approval v2",
		"description": "Scores applicants",
	})
	assert.Equal(t, `Saved "Loan Approval v2" to the library.`, res.Message)
	assert.Equal(t, false, res.Data["already_saved"])

	stored := getStored(t, sess, w.ID)
	assert.False(t, stored.Metadata.IsDraft)
	assert.Equal(t, "Loan Approval v2", stored.Metadata.Name)
	assert.Equal(t, "Scores applicants", stored.Metadata.Description)

	// Saving again is a no-op, not an error.
	res = execOK(t, tool, sess, map[string]any{"workflow_id": w.ID})
	assert.Equal(t, `"Loan Approval v2" is already in the library.`, res.Message)
	assert.Equal(t, true, res.Data["already_saved"])
}

func TestListWorkflows(t *testing.T) {
	sess := newSession(t)
	seedLibrary(t, sess, "Loan Approval", "lending")
	seedLibrary(t, sess, "BMI Checker", "health")
	seedWorkflow(t, sess, "Draft Flow")
	tool := NewListWorkflowsTool()

	// Published only by default.
	res := execOK(t, tool, sess, map[string]any{})
	assert.Equal(t, 2, res.Data["count"])
	assert.Equal(t, "2 workflow(s) found.", res.Message)

	res = execOK(t, tool, sess, map[string]any{"include_drafts": true})
	assert.Equal(t, 3, res.Data["count"])

	res = execOK(t, tool, sess, map[string]any{"drafts_only": true})
	assert.Equal(t, 1, res.Data["count"])
	entries, ok := res.Data["workflows"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, "Draft Flow", entries[0]["name"])
	assert.Equal(t, "draft", entries[0]["status"])

	res = execOK(t, tool, sess, map[string]any{"domain": "health"})
	assert.Equal(t, 1, res.Data["count"])

	res = execOK(t, tool, sess, map[string]any{"search_query": "loan"})
	entries, ok = res.Data["workflows"].([]map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Loan Approval", entries[0]["name"], "fuzzy matches rank first")

	res = execOK(t, tool, sess, map[string]any{"include_drafts": true, "limit": 1})
	assert.Equal(t, 1, res.Data["count"])
}

func TestGetWorkflow(t *testing.T) {
	sess := newSession(t)
	w := seedLibrary(t, sess, "Loan Approval", "lending")

	res := execOK(t, NewGetWorkflowTool(), sess, map[string]any{"workflow_id": w.ID})
	assert.Equal(t, `Loaded workflow "Loan Approval" (`+w.ID+`).`, res.Message)
	assert.Equal(t, w.ID, sess.WorkflowID)

	summary, ok := res.Data["summary"].(string)
	require.True(t, ok)
	assert.Contains(t, summary, "Loan Approval")

	execFail(t, NewGetWorkflowTool(), sess, map[string]any{"workflow_id": "wf_missing1"},
		CodeNotFound)
}

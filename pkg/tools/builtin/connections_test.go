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

func node(typ workflow.NodeType, label string) workflow.Node {
	return workflow.Node{ID: workflow.NewNodeID(), Type: typ, Label: label}
}

// seedNodes stores a draft containing the given nodes and edges.
func seedNodes(t *testing.T, sess *tools.SessionState, name string, nodes []workflow.Node, edges ...workflow.Edge) *workflow.Workflow {
	t.Helper()
	w := workflow.New(sess.UserID, name, "string")
	w.Nodes = append(w.Nodes, nodes...)
	w.Edges = append(w.Edges, edges...)
	require.NoError(t, sess.Store.Create(context.Background(), w))
	return w
}

func TestAddConnection_Basic(t *testing.T) {
	sess := newSession(t)
	start := node(workflow.NodeStart, "Start")
	end := node(workflow.NodeEnd, "Done")
	w := seedNodes(t, sess, "Flow", []workflow.Node{start, end})

	// Target addressed by label, source by id.
	res := execOK(t, NewAddConnectionTool(), sess, map[string]any{
		"workflow_id": w.ID,
		"from":        start.ID,
		"to":          "Done",
	})
	assert.Equal(t, workflow.EdgeID(start.ID, end.ID), res.Data["edge_id"])
	assert.NotContains(t, res.Data, "label")

	stored := getStored(t, sess, w.ID)
	require.Len(t, stored.Edges, 1)
	assert.Equal(t, start.ID, stored.Edges[0].From)
	assert.Equal(t, end.ID, stored.Edges[0].To)
	assert.Empty(t, stored.Edges[0].Label)
}

func TestAddConnection_DecisionAutoLabels(t *testing.T) {
	sess := newSession(t)
	d := node(workflow.NodeDecision, "Approved?")
	yes := node(workflow.NodeEnd, "Yes")
	no := node(workflow.NodeEnd, "No")
	third := node(workflow.NodeEnd, "Maybe")
	w := seedNodes(t, sess, "Flow", []workflow.Node{d, yes, no, third})
	tool := NewAddConnectionTool()

	res := execOK(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": d.ID, "to": yes.ID})
	assert.Equal(t, "true", res.Data["label"], "the free true branch is taken first")
	assert.Contains(t, res.Message, `"true" branch`)

	res = execOK(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": d.ID, "to": no.ID})
	assert.Equal(t, "false", res.Data["label"])

	execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": d.ID, "to": third.ID},
		workflow.CodeMaxBranchesReached)
	assert.Len(t, getStored(t, sess, w.ID).Edges, 2)
}

func TestAddConnection_ExplicitLabels(t *testing.T) {
	sess := newSession(t)
	d := node(workflow.NodeDecision, "Approved?")
	yes := node(workflow.NodeEnd, "Yes")
	no := node(workflow.NodeEnd, "No")
	w := seedNodes(t, sess, "Flow", []workflow.Node{d, yes, no})
	tool := NewAddConnectionTool()

	// Labels are case-insensitive on the way in.
	res := execOK(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "from": d.ID, "to": yes.ID, "label": "True",
	})
	assert.Equal(t, "true", res.Data["label"])

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "from": d.ID, "to": no.ID, "label": "true",
	}, workflow.CodeDuplicateEdgeLabel)

	execFail(t, tool, sess, map[string]any{
		"workflow_id": w.ID, "from": d.ID, "to": no.ID, "label": "maybe",
	}, workflow.CodeInvalidEdgeLabel)
}

func TestAddConnection_DuplicatePair(t *testing.T) {
	sess := newSession(t)
	start := node(workflow.NodeStart, "Start")
	end := node(workflow.NodeEnd, "Done")
	w := seedNodes(t, sess, "Flow", []workflow.Node{start, end})
	tool := NewAddConnectionTool()

	execOK(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": start.ID, "to": end.ID})
	res := execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": start.ID, "to": end.ID},
		CodeInvalidParams)
	assert.Contains(t, res.Error.Message, "already connected")
}

func TestAddConnection_SelfLoopRejected(t *testing.T) {
	sess := newSession(t)
	p := node(workflow.NodeProcess, "Loop")
	w := seedNodes(t, sess, "Flow", []workflow.Node{p})

	execFail(t, NewAddConnectionTool(), sess, map[string]any{
		"workflow_id": w.ID, "from": p.ID, "to": p.ID,
	}, workflow.CodeSelfLoop)
	assert.Empty(t, getStored(t, sess, w.ID).Edges, "the rejected edge never commits")
}

func TestAddConnection_CycleRejected(t *testing.T) {
	sess := newSession(t)
	p1 := node(workflow.NodeProcess, "First")
	p2 := node(workflow.NodeProcess, "Second")
	w := seedNodes(t, sess, "Flow", []workflow.Node{p1, p2},
		workflow.Edge{ID: workflow.EdgeID(p1.ID, p2.ID), From: p1.ID, To: p2.ID},
	)

	res := execFail(t, NewAddConnectionTool(), sess, map[string]any{
		"workflow_id": w.ID, "from": p2.ID, "to": p1.ID,
	}, workflow.CodeCycleDetected)
	assert.Contains(t, res.Error.Message, "cycle")
	assert.Len(t, getStored(t, sess, w.ID).Edges, 1)
}

func TestAddConnection_UnknownNode(t *testing.T) {
	sess := newSession(t)
	start := node(workflow.NodeStart, "Start")
	w := seedNodes(t, sess, "Flow", []workflow.Node{start})

	execFail(t, NewAddConnectionTool(), sess, map[string]any{
		"workflow_id": w.ID, "from": start.ID, "to": "node_missing1",
	}, workflow.CodeNodeNotFound)
}

func TestDeleteConnection(t *testing.T) {
	sess := newSession(t)
	start := node(workflow.NodeStart, "Start")
	end := node(workflow.NodeEnd, "Done")
	w := seedNodes(t, sess, "Flow", []workflow.Node{start, end},
		workflow.Edge{ID: workflow.EdgeID(start.ID, end.ID), From: start.ID, To: end.ID},
	)
	tool := NewDeleteConnectionTool()

	res := execOK(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": "Start", "to": "Done"})
	assert.Equal(t, start.ID, res.Data["from"])
	assert.Empty(t, getStored(t, sess, w.ID).Edges)

	res = execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": "Start", "to": "Done"},
		CodeNotFound)
	assert.Contains(t, res.Error.Message, "no connection from")

	execFail(t, tool, sess, map[string]any{"workflow_id": w.ID, "from": "Start"}, CodeInvalidParams)
}

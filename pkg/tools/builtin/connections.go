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
	"fmt"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// AddConnectionTool links two nodes with a directed edge.
type AddConnectionTool struct{}

func NewAddConnectionTool() *AddConnectionTool { return &AddConnectionTool{} }

func (t *AddConnectionTool) Name() string      { return "add_connection" }
func (t *AddConnectionTool) Aliases() []string { return []string{"add_edge"} }

func (t *AddConnectionTool) Description() string {
	return "Connect two nodes. Nodes can be addressed by id or by unique " +
		"label. Edges leaving a decision node are labelled true or false; " +
		"when the label is omitted the free branch is picked automatically, " +
		"true first."
}

func (t *AddConnectionTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for connecting two nodes",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"from":        tools.NewStringSchema("Source node id or unique label."),
			"to":          tools.NewStringSchema("Target node id or unique label."),
			"label":       tools.NewStringSchema("Branch label for decision sources: true or false."),
		},
		[]string{"workflow_id", "from", "to"},
	)
}

func (t *AddConnectionTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	fromRef := strArg(args, "from")
	if fromRef == "" {
		return missingParam("from"), nil
	}
	toRef := strArg(args, "to")
	if toRef == "" {
		return missingParam("to"), nil
	}

	var added workflow.Edge
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		e, terr := stageAddConnection(w, args)
		if terr != nil {
			return terr
		}
		added = *e
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["edge_id"] = added.ID
	data["from"] = added.From
	data["to"] = added.To
	if added.Label != "" {
		data["label"] = added.Label
	}

	msg := fmt.Sprintf("Connected %s to %s.", added.From, added.To)
	if added.Label != "" {
		msg = fmt.Sprintf("Connected %s to %s on the %q branch.", added.From, added.To, added.Label)
	}
	return &tools.Result{Success: true, Message: msg, Data: data}, nil
}

// stageAddConnection resolves both endpoints, picks or checks the branch
// label for decision sources, and appends the edge to w. It returns a
// pointer into w.Edges.
func stageAddConnection(w *workflow.Workflow, args map[string]any) (*workflow.Edge, *tools.ToolError) {
	fromRef := strArg(args, "from")
	if fromRef == "" {
		return nil, toolError(CodeInvalidParams, "from is required", "")
	}
	toRef := strArg(args, "to")
	if toRef == "" {
		return nil, toolError(CodeInvalidParams, "to is required", "")
	}

	from, err := w.NodeByRef(fromRef)
	if err != nil {
		return nil, toolError(workflow.CodeNodeNotFound, err.Error(),
			"Use node ids from get_current_workflow.")
	}
	to, err := w.NodeByRef(toRef)
	if err != nil {
		return nil, toolError(workflow.CodeNodeNotFound, err.Error(),
			"Use node ids from get_current_workflow.")
	}

	for _, e := range w.Edges {
		if e.From == from.ID && e.To == to.ID {
			return nil, toolError(CodeInvalidParams,
				fmt.Sprintf("nodes %s and %s are already connected", from.ID, to.ID),
				"Delete the existing connection first if you want to relabel it.")
		}
	}

	label := strings.ToLower(strArg(args, "label"))
	if from.Type == workflow.NodeDecision {
		var hasTrue, hasFalse bool
		for _, e := range w.EdgesFrom(from.ID) {
			switch strings.ToLower(e.Label) {
			case "true":
				hasTrue = true
			case "false":
				hasFalse = true
			}
		}
		switch label {
		case "":
			if !hasTrue {
				label = "true"
			} else if !hasFalse {
				label = "false"
			} else {
				return nil, toolError(workflow.CodeMaxBranchesReached,
					fmt.Sprintf("decision node %s already has both branches", from.ID),
					"Delete one of its connections before adding another.")
			}
		case "true", "false":
			if (label == "true" && hasTrue) || (label == "false" && hasFalse) {
				return nil, toolError(workflow.CodeDuplicateEdgeLabel,
					fmt.Sprintf("decision node %s already has a %q branch", from.ID, label),
					"Use the other branch label or delete the existing connection.")
			}
		default:
			return nil, toolError(workflow.CodeInvalidEdgeLabel,
				fmt.Sprintf("edges leaving a decision node must be labelled true or false, got %q", label),
				"Pass \"true\", \"false\", or omit the label.")
		}
	}

	w.Edges = append(w.Edges, workflow.Edge{
		ID:    workflow.EdgeID(from.ID, to.ID),
		From:  from.ID,
		To:    to.ID,
		Label: label,
	})
	return &w.Edges[len(w.Edges)-1], nil
}

// DeleteConnectionTool removes the edge between two nodes.
type DeleteConnectionTool struct{}

func NewDeleteConnectionTool() *DeleteConnectionTool { return &DeleteConnectionTool{} }

func (t *DeleteConnectionTool) Name() string      { return "delete_connection" }
func (t *DeleteConnectionTool) Aliases() []string { return []string{"remove_connection"} }

func (t *DeleteConnectionTool) Description() string {
	return "Remove the connection between two nodes. The nodes themselves " +
		"are left in place."
}

func (t *DeleteConnectionTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for removing a connection",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"from":        tools.NewStringSchema("Source node id or unique label."),
			"to":          tools.NewStringSchema("Target node id or unique label."),
		},
		[]string{"workflow_id", "from", "to"},
	)
}

func (t *DeleteConnectionTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	fromRef := strArg(args, "from")
	if fromRef == "" {
		return missingParam("from"), nil
	}
	toRef := strArg(args, "to")
	if toRef == "" {
		return missingParam("to"), nil
	}

	var fromID, toID string
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		var terr *tools.ToolError
		fromID, toID, terr = stageRemoveConnection(w, args)
		if terr != nil {
			return terr
		}
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["from"] = fromID
	data["to"] = toID
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Removed the connection from %s to %s.", fromID, toID),
		Data:    data,
	}, nil
}

// stageRemoveConnection deletes the edge between the two nodes named by
// args["from"] and args["to"].
func stageRemoveConnection(w *workflow.Workflow, args map[string]any) (string, string, *tools.ToolError) {
	fromRef := strArg(args, "from")
	if fromRef == "" {
		return "", "", toolError(CodeInvalidParams, "from is required", "")
	}
	toRef := strArg(args, "to")
	if toRef == "" {
		return "", "", toolError(CodeInvalidParams, "to is required", "")
	}

	from, err := w.NodeByRef(fromRef)
	if err != nil {
		return "", "", toolError(workflow.CodeNodeNotFound, err.Error(),
			"Use node ids from get_current_workflow.")
	}
	to, err := w.NodeByRef(toRef)
	if err != nil {
		return "", "", toolError(workflow.CodeNodeNotFound, err.Error(),
			"Use node ids from get_current_workflow.")
	}
	if !w.RemoveEdge(from.ID, to.ID) {
		return "", "", toolError(CodeNotFound,
			fmt.Sprintf("no connection from %s to %s", from.ID, to.ID),
			"Check the workflow's edges with get_current_workflow.")
	}
	return from.ID, to.ID, nil
}

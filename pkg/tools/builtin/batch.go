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

// batchOps names the operations a batch can carry, in the vocabulary the
// single-op tools use.
var batchOps = []string{
	"add_variable", "add_node", "add_connection",
	"modify_node", "delete_node", "delete_connection", "set_output",
}

// BatchEditTool applies a sequence of edits as one transaction. Every
// operation stages onto the same candidate state; the workflow is validated
// once at the end and committed only when the whole batch succeeds.
type BatchEditTool struct{}

func NewBatchEditTool() *BatchEditTool { return &BatchEditTool{} }

func (t *BatchEditTool) Name() string      { return "batch_edit_workflow" }
func (t *BatchEditTool) Aliases() []string { return []string{"batch_edit"} }

func (t *BatchEditTool) Description() string {
	return "Apply several edits in one all-or-nothing transaction. " +
		"Operations run in order; an add_node operation may declare a " +
		"temp_id that later operations use in from, to, or node_id. " +
		"Conditions may reference variables declared earlier in the same " +
		"batch by name. If any operation fails, nothing is committed."
}

func (t *BatchEditTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for a batch edit",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"operations": tools.NewArraySchema(
				"Edits to apply in order.",
				tools.NewObjectSchema("One edit operation. Carries the op name plus that operation's own parameters.", map[string]*tools.JSONSchema{
					"op": tools.NewStringSchema("Operation to perform.").
						WithEnum("add_variable", "add_node", "add_connection",
							"modify_node", "delete_node", "delete_connection", "set_output"),
					"temp_id": tools.NewStringSchema("Handle for a node created by add_node, usable in later operations."),
				}, []string{"op"}),
			),
		},
		[]string{"workflow_id", "operations"},
	)
}

func (t *BatchEditTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	rawOps, ok := args["operations"].([]any)
	if !ok || len(rawOps) == 0 {
		return tools.Fail(CodeInvalidParams, "operations must be a non-empty array"), nil
	}

	var applied []map[string]any
	var tempIDs map[string]string
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		applied = nil
		tempIDs = make(map[string]string)

		for i, raw := range rawOps {
			m, ok := raw.(map[string]any)
			if !ok {
				return toolError(CodeInvalidParams,
					fmt.Sprintf("operation %d is not an object", i), "")
			}
			op := strings.ToLower(firstString(m, "op", "tool", "action"))
			opArgs := resolveTempRefs(m, tempIDs)

			var terr *tools.ToolError
			entry := map[string]any{"op": op}

			switch op {
			case "add_variable", "add_workflow_variable":
				var v *workflow.Variable
				if v, terr = stageAddVariable(w, opArgs); terr == nil {
					entry["id"] = v.ID
				}

			case "add_node":
				var n *workflow.Node
				if n, terr = stageAddNode(ctx, sess, w, opArgs); terr == nil {
					entry["id"] = n.ID
					if tempID := strArg(m, "temp_id"); tempID != "" {
						if _, exists := tempIDs[tempID]; exists {
							return toolError(CodeInvalidParams,
								fmt.Sprintf("operation %d reuses temp_id %q", i, tempID),
								"Give every add_node in the batch a distinct temp_id.")
						}
						tempIDs[tempID] = n.ID
					}
				}

			case "add_connection", "add_edge":
				var e *workflow.Edge
				if e, terr = stageAddConnection(w, opArgs); terr == nil {
					entry["id"] = e.ID
				}

			case "modify_node", "update_node":
				var n *workflow.Node
				if n, terr = stageModifyNode(ctx, sess, w, opArgs); terr == nil {
					entry["id"] = n.ID
				}

			case "delete_node", "remove_node":
				var n workflow.Node
				if n, _, terr = stageRemoveNode(w, opArgs); terr == nil {
					entry["id"] = n.ID
				}

			case "delete_connection", "remove_connection":
				var from, to string
				if from, to, terr = stageRemoveConnection(w, opArgs); terr == nil {
					entry["id"] = workflow.EdgeID(from, to)
				}

			case "set_output", "set_workflow_output":
				var out workflow.Output
				if out, _, terr = stageSetOutput(w, opArgs); terr == nil {
					entry["id"] = out.Name
				}

			default:
				return toolError(CodeInvalidParams,
					fmt.Sprintf("operation %d has unknown op %q", i, op),
					"Use one of: "+strings.Join(batchOps, ", "))
			}

			if terr != nil {
				return &tools.ToolError{
					Code:       terr.Code,
					Message:    fmt.Sprintf("operation %d (%s): %s", i, op, terr.Message),
					Retryable:  terr.Retryable,
					Suggestion: terr.Suggestion,
				}
			}
			applied = append(applied, entry)
		}
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["operations_applied"] = len(applied)
	data["operations"] = applied
	if len(tempIDs) > 0 {
		resolved := make(map[string]any, len(tempIDs))
		for k, v := range tempIDs {
			resolved[k] = v
		}
		data["temp_ids"] = resolved
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Applied %d operation(s).", len(applied)),
		Data:    data,
	}, nil
}

// resolveTempRefs copies one batch operation's arguments, replacing temp ids
// in the node-reference fields with the real node ids assigned so far.
func resolveTempRefs(m map[string]any, tempIDs map[string]string) map[string]any {
	opArgs := make(map[string]any, len(m))
	for k, v := range m {
		opArgs[k] = v
	}
	for _, key := range []string{"from", "to", "node_id"} {
		if id, ok := tempIDs[strArg(opArgs, key)]; ok {
			opArgs[key] = id
		}
	}
	return opArgs
}

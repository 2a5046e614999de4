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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// AddNodeTool appends a node to the workflow graph.
type AddNodeTool struct{}

func NewAddNodeTool() *AddNodeTool { return &AddNodeTool{} }

func (t *AddNodeTool) Name() string      { return "add_node" }
func (t *AddNodeTool) Aliases() []string { return nil }

func (t *AddNodeTool) Description() string {
	return "Add a node to the workflow. Decision nodes require a condition " +
		"referencing a declared variable. Subprocess nodes require " +
		"subworkflow_id and output_variable; the output variable is " +
		"registered automatically. End nodes take output_type, " +
		"output_template, or output_value."
}

func (t *AddNodeTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for adding a node",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"type": tools.NewStringSchema("Node type.").
				WithEnum("start", "process", "decision", "subprocess", "end"),
			"label": tools.NewStringSchema("Display label, e.g. the text inside the flowchart shape."),
			"x":     tools.NewNumberSchema("Canvas x position."),
			"y":     tools.NewNumberSchema("Canvas y position."),
			"color": tools.NewStringSchema("Canvas colour hint."),
			"condition": tools.NewObjectSchema("Decision predicate.", map[string]*tools.JSONSchema{
				"input_id":   tools.NewStringSchema("Variable id or name the decision tests."),
				"comparator": tools.NewStringSchema("Comparator, e.g. gte, str_eq, is_true."),
				"value":      {Description: "Comparison operand."},
				"value2":     {Description: "Upper bound for within_range and date_between."},
			}, nil),
			"subworkflow_id":  tools.NewStringSchema("Published workflow a subprocess node calls."),
			"input_mapping":   tools.NewObjectSchema("Parent variable -> subworkflow input name.", nil, nil),
			"output_variable": tools.NewStringSchema("Variable that receives the subprocess result."),
			"output_type":     tools.NewStringSchema("End node result type override.").WithEnum(outputTypeEnum()...),
			"output_template": tools.NewStringSchema("End node template, {Variable Name} placeholders allowed."),
			"output_value":    {Description: "End node literal result."},
		},
		[]string{"workflow_id", "type", "label"},
	)
}

func (t *AddNodeTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	var added workflow.Node
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		n, terr := stageAddNode(ctx, sess, w, args)
		if terr != nil {
			return terr
		}
		added = *n
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["node_id"] = added.ID
	data["node"] = nodeMap(&added)
	if added.Type == workflow.NodeSubprocess {
		if v := after.VariableByName(added.OutputVariable); v != nil {
			data["output_variable_id"] = v.ID
		}
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Added %s node %q (%s).", added.Type, added.Label, added.ID),
		Data:    data,
	}, nil
}

// stageAddNode validates the node arguments and appends the node to w.
// It returns a pointer into w.Nodes.
func stageAddNode(ctx context.Context, sess *tools.SessionState, w *workflow.Workflow, args map[string]any) (*workflow.Node, *tools.ToolError) {
	label := strArg(args, "label")
	if label == "" {
		return nil, toolError(CodeInvalidParams, "label is required", "")
	}
	nodeType := workflow.NodeType(strArg(args, "type"))
	if !workflow.ValidNodeType(nodeType) {
		return nil, toolError(workflow.CodeInvalidNodeType,
			fmt.Sprintf("node type %q is not valid", nodeType),
			"Use one of: start, process, decision, subprocess, end.")
	}

	n := workflow.Node{
		ID:    workflow.NewNodeID(),
		Type:  nodeType,
		Label: label,
		Color: strArg(args, "color"),
	}
	if x, ok := floatArg(args, "x"); ok {
		n.X = x
	}
	if y, ok := floatArg(args, "y"); ok {
		n.Y = y
	}

	switch nodeType {
	case workflow.NodeDecision:
		cond, terr := parseCondition(w, mapArg(args, "condition"))
		if terr != nil {
			return nil, terr
		}
		n.Condition = cond

	case workflow.NodeSubprocess:
		if terr := stageSubprocess(ctx, sess, w, &n, args); terr != nil {
			return nil, terr
		}

	case workflow.NodeEnd:
		if ot := strArg(args, "output_type"); ot != "" {
			if !workflow.ValidOutputType(ot) {
				return nil, toolError(CodeInvalidParams,
					fmt.Sprintf("output_type %q is not valid", ot),
					"Use one of: "+strings.Join(workflow.OutputTypes, ", "))
			}
			n.OutputType = ot
		}
		n.OutputTemplate = strArg(args, "output_template")
		n.OutputValue = args["output_value"]
	}

	w.Nodes = append(w.Nodes, n)
	return &w.Nodes[len(w.Nodes)-1], nil
}

// stageSubprocess fills the subprocess fields of n, checking the referenced
// workflow through the store and registering the output variable.
func stageSubprocess(ctx context.Context, sess *tools.SessionState, w *workflow.Workflow, n *workflow.Node, args map[string]any) *tools.ToolError {
	subID := strArg(args, "subworkflow_id")
	if subID == "" {
		return toolError(workflow.CodeSubprocessValidationFailed,
			"subprocess nodes require subworkflow_id",
			"Pass the id of a workflow from list_workflows_in_library.")
	}
	outputVar := strArg(args, "output_variable")
	if outputVar == "" {
		return toolError(workflow.CodeSubprocessValidationFailed,
			"subprocess nodes require output_variable",
			"Name the variable that will hold the subworkflow result.")
	}
	if subID == w.ID {
		return toolError(workflow.CodeSubprocessValidationFailed,
			"a workflow cannot call itself as a subprocess", "")
	}

	sub, err := sess.Store.Get(ctx, subID, sess.UserID)
	if err != nil {
		return toolError(workflow.CodeSubprocessValidationFailed,
			fmt.Sprintf("subworkflow %s not found", subID),
			"Call list_workflows_in_library to see the workflows you can reference.")
	}

	mapping := strMapArg(args, "input_mapping")
	for parentRef, subInput := range mapping {
		if resolveVariable(w, parentRef) == nil {
			return toolError(workflow.CodeSubprocessValidationFailed,
				fmt.Sprintf("input_mapping references unknown variable %q in this workflow", parentRef),
				"Map from a declared variable id or name.")
		}
		if sub.VariableByName(subInput) == nil && sub.VariableByID(subInput) == nil {
			return toolError(workflow.CodeSubprocessValidationFailed,
				fmt.Sprintf("subworkflow %q has no input named %q", sub.Metadata.Name, subInput),
				"Check the subworkflow's declared inputs with get_current_workflow.")
		}
	}

	n.SubworkflowID = sub.ID
	n.InputMapping = mapping
	n.OutputVariable = outputVar

	// The result variable is registered on first use so decisions can
	// reference it immediately.
	if w.VariableByName(outputVar) == nil {
		varType := subprocessVarType(sub.Metadata.OutputType)
		w.Variables = append(w.Variables, workflow.Variable{
			ID:          workflow.VariableID(outputVar, workflow.SourceSubprocess, varType),
			Name:        outputVar,
			Type:        varType,
			Source:      workflow.SourceSubprocess,
			Description: fmt.Sprintf("Result of %s", sub.Metadata.Name),
		})
	}
	return nil
}

// subprocessVarType maps a workflow output type onto the variable type the
// subprocess result gets in the parent.
func subprocessVarType(outputType string) workflow.VariableType {
	switch outputType {
	case "int":
		return workflow.TypeInt
	case "float":
		return workflow.TypeFloat
	case "bool":
		return workflow.TypeBool
	default:
		return workflow.TypeString
	}
}

// ModifyNodeTool updates fields of an existing node.
type ModifyNodeTool struct{}

func NewModifyNodeTool() *ModifyNodeTool { return &ModifyNodeTool{} }

func (t *ModifyNodeTool) Name() string      { return "modify_node" }
func (t *ModifyNodeTool) Aliases() []string { return []string{"update_node"} }

func (t *ModifyNodeTool) Description() string {
	return "Update a node addressed by id or by unique label. Only the " +
		"fields you pass change. Conditions apply to decision nodes, output " +
		"fields to end nodes, subprocess fields to subprocess nodes."
}

func (t *ModifyNodeTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for modifying a node",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"node_id":     tools.NewStringSchema("Node id, or its label when unique."),
			"label":       tools.NewStringSchema("New label."),
			"x":           tools.NewNumberSchema("New canvas x position."),
			"y":           tools.NewNumberSchema("New canvas y position."),
			"color":       tools.NewStringSchema("New colour hint."),
			"condition": tools.NewObjectSchema("Replacement decision predicate.", map[string]*tools.JSONSchema{
				"input_id":   tools.NewStringSchema("Variable id or name."),
				"comparator": tools.NewStringSchema("Comparator."),
				"value":      {Description: "Comparison operand."},
				"value2":     {Description: "Upper bound for range comparators."},
			}, nil),
			"subworkflow_id":  tools.NewStringSchema("New subworkflow reference."),
			"input_mapping":   tools.NewObjectSchema("Replacement input mapping.", nil, nil),
			"output_variable": tools.NewStringSchema("New subprocess result variable."),
			"output_type":     tools.NewStringSchema("End node result type.").WithEnum(outputTypeEnum()...),
			"output_template": tools.NewStringSchema("End node template."),
			"output_value":    {Description: "End node literal result."},
		},
		[]string{"workflow_id", "node_id"},
	)
}

func (t *ModifyNodeTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if strArg(args, "node_id") == "" {
		return missingParam("node_id"), nil
	}

	var modified workflow.Node
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		n, terr := stageModifyNode(ctx, sess, w, args)
		if terr != nil {
			return terr
		}
		modified = *n
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["node_id"] = modified.ID
	data["node"] = nodeMap(&modified)
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Updated node %q (%s).", modified.Label, modified.ID),
		Data:    data,
	}, nil
}

// stageModifyNode applies the provided fields to the node named by
// args["node_id"].
func stageModifyNode(ctx context.Context, sess *tools.SessionState, w *workflow.Workflow, args map[string]any) (*workflow.Node, *tools.ToolError) {
	ref := strArg(args, "node_id")
	if ref == "" {
		return nil, toolError(CodeInvalidParams, "node_id is required", "")
	}
	n, err := w.NodeByRef(ref)
	if err != nil {
		return nil, toolError(workflow.CodeNodeNotFound, err.Error(),
			"Use the node id from get_current_workflow.")
	}

	if label := strArg(args, "label"); label != "" {
		n.Label = label
	}
	if x, ok := floatArg(args, "x"); ok {
		n.X = x
	}
	if y, ok := floatArg(args, "y"); ok {
		n.Y = y
	}
	if color := strArg(args, "color"); color != "" {
		n.Color = color
	}

	if condArg := mapArg(args, "condition"); condArg != nil {
		if n.Type != workflow.NodeDecision {
			return nil, toolError(CodeInvalidParams,
				fmt.Sprintf("node %s is a %s node and cannot carry a condition", n.ID, n.Type),
				"Conditions apply to decision nodes only.")
		}
		cond, terr := parseCondition(w, condArg)
		if terr != nil {
			return nil, terr
		}
		n.Condition = cond
	}

	if n.Type == workflow.NodeSubprocess {
		if strArg(args, "subworkflow_id") != "" || args["input_mapping"] != nil || strArg(args, "output_variable") != "" {
			merged := map[string]any{
				"subworkflow_id":  n.SubworkflowID,
				"output_variable": n.OutputVariable,
			}
			if subID := strArg(args, "subworkflow_id"); subID != "" {
				merged["subworkflow_id"] = subID
			}
			if ov := strArg(args, "output_variable"); ov != "" {
				merged["output_variable"] = ov
			}
			if im := mapArg(args, "input_mapping"); im != nil {
				merged["input_mapping"] = im
			} else if n.InputMapping != nil {
				im := make(map[string]any, len(n.InputMapping))
				for k, v := range n.InputMapping {
					im[k] = v
				}
				merged["input_mapping"] = im
			}
			if terr := stageSubprocess(ctx, sess, w, n, merged); terr != nil {
				return nil, terr
			}
		}
	}

	if n.Type == workflow.NodeEnd {
		if ot := strArg(args, "output_type"); ot != "" {
			if !workflow.ValidOutputType(ot) {
				return nil, toolError(CodeInvalidParams,
					fmt.Sprintf("output_type %q is not valid", ot),
					"Use one of: "+strings.Join(workflow.OutputTypes, ", "))
			}
			n.OutputType = ot
		}
		if tmpl := strArg(args, "output_template"); tmpl != "" {
			n.OutputTemplate = tmpl
		}
		if v, ok := args["output_value"]; ok {
			n.OutputValue = v
		}
	}

	return n, nil
}

// DeleteNodeTool removes a node and every edge touching it.
type DeleteNodeTool struct{}

func NewDeleteNodeTool() *DeleteNodeTool { return &DeleteNodeTool{} }

func (t *DeleteNodeTool) Name() string      { return "delete_node" }
func (t *DeleteNodeTool) Aliases() []string { return []string{"remove_node"} }

func (t *DeleteNodeTool) Description() string {
	return "Delete a node addressed by id or unique label. Every connection " +
		"into or out of the node is removed with it."
}

func (t *DeleteNodeTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for deleting a node",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"node_id":     tools.NewStringSchema("Node id, or its label when unique."),
		},
		[]string{"workflow_id", "node_id"},
	)
}

func (t *DeleteNodeTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if strArg(args, "node_id") == "" {
		return missingParam("node_id"), nil
	}

	var removed workflow.Node
	var removedEdges int
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		var terr *tools.ToolError
		removed, removedEdges, terr = stageRemoveNode(w, args)
		if terr != nil {
			return terr
		}
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["node_id"] = removed.ID
	data["removed_edges"] = removedEdges
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Deleted node %q (%s) and %d connection(s).", removed.Label, removed.ID, removedEdges),
		Data:    data,
	}, nil
}

// stageRemoveNode deletes the node named by args["node_id"] along with its
// incident edges, reporting how many edges went with it.
func stageRemoveNode(w *workflow.Workflow, args map[string]any) (workflow.Node, int, *tools.ToolError) {
	ref := strArg(args, "node_id")
	if ref == "" {
		return workflow.Node{}, 0, toolError(CodeInvalidParams, "node_id is required", "")
	}
	n, err := w.NodeByRef(ref)
	if err != nil {
		return workflow.Node{}, 0, toolError(workflow.CodeNodeNotFound, err.Error(),
			"Use the node id from get_current_workflow.")
	}
	removed := *n
	removedEdges := 0
	for _, e := range w.Edges {
		if e.From == n.ID || e.To == n.ID {
			removedEdges++
		}
	}
	w.RemoveNode(n.ID)
	return removed, removedEdges, nil
}

func nodeMap(n *workflow.Node) map[string]any {
	raw, err := json.Marshal(n)
	if err != nil {
		return map[string]any{"id": n.ID}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"id": n.ID}
	}
	return m
}
